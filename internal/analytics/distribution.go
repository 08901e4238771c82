package analytics

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// MinSampleSize is the smallest sample the profiler will fit.
const MinSampleSize = 5

var (
	ErrInsufficientSample = errors.New("sample has fewer than 5 observations")
	ErrNonPositiveSample  = errors.New("sample contains zero or negative values")
	ErrNoFit              = errors.New("no candidate distribution could be fitted")
	errNotConverged       = errors.New("maximum likelihood did not converge")
	errDegenerate         = errors.New("sample has no spread")
)

// Family is a candidate distribution family.
type Family string

const (
	FamilyNormal    Family = "normal"
	FamilyLogNormal Family = "lognormal"
	FamilyGamma     Family = "gamma"
	FamilyBeta      Family = "beta"
)

// CandidateFamilies is the fitting order. When two families reach the same
// p-value the earlier one wins.
var CandidateFamilies = []Family{FamilyNormal, FamilyLogNormal, FamilyGamma, FamilyBeta}

// Fit is a fitted family scored by a one-sample Kolmogorov-Smirnov test.
// Param1/Param2 are (mu, sigma) for normal and lognormal, (shape, rate)
// for gamma and (alpha, beta) for beta on the [Loc, Loc+Scale] window.
type Fit struct {
	Family      Family   `json:"distribution_type"`
	Param1      float64  `json:"param1"`
	Param2      float64  `json:"param2"`
	Loc         *float64 `json:"loc,omitempty"`
	Scale       *float64 `json:"scale,omitempty"`
	KSStatistic float64  `json:"ks_statistic"`
	PValue      float64  `json:"p_value"`
}

// FitResult is the outcome of profiling one sample.
type FitResult struct {
	Best       Fit               `json:"best"`
	Candidates []Fit             `json:"candidates"`
	Failures   map[Family]string `json:"failures,omitempty"`
}

// ValidateSample rejects samples the profiler must not fit.
func ValidateSample(xs []float64) error {
	if len(xs) < MinSampleSize {
		return fmt.Errorf("%w: got %d", ErrInsufficientSample, len(xs))
	}
	for _, x := range xs {
		if !(x > 0) || math.IsInf(x, 0) {
			return ErrNonPositiveSample
		}
	}
	return nil
}

// FitBest fits every candidate family and keeps the one with the highest
// KS p-value. A family whose fit fails is left out. ErrNoFit is returned
// when all of them fail or none has a p-value above 0.
func FitBest(xs []float64) (FitResult, error) {
	if err := ValidateSample(xs); err != nil {
		return FitResult{}, err
	}

	res := FitResult{Failures: map[Family]string{}}
	for _, family := range CandidateFamilies {
		fit, err := FitFamily(family, xs)
		if err != nil {
			res.Failures[family] = err.Error()
			continue
		}
		res.Candidates = append(res.Candidates, fit)
	}

	best, ok := selectBest(res.Candidates)
	if !ok {
		return res, ErrNoFit
	}
	res.Best = best
	return res, nil
}

// selectBest keeps the first candidate with the highest p-value. Only a
// strictly positive p-value can be selected.
func selectBest(candidates []Fit) (Fit, bool) {
	var (
		best  Fit
		bestP float64
		found bool
	)
	for _, fit := range candidates {
		if fit.PValue > bestP {
			bestP = fit.PValue
			best = fit
			found = true
		}
	}
	return best, found
}

// FitFamily fits one family by maximum likelihood and scores it.
func FitFamily(family Family, xs []float64) (Fit, error) {
	var (
		fit Fit
		cdf func(float64) float64
		err error
	)
	switch family {
	case FamilyNormal:
		fit, cdf, err = fitNormal(xs)
	case FamilyLogNormal:
		fit, cdf, err = fitLogNormal(xs)
	case FamilyGamma:
		fit, cdf, err = fitGamma(xs)
	case FamilyBeta:
		fit, cdf, err = fitBeta(xs)
	default:
		return Fit{}, fmt.Errorf("unknown family %q", family)
	}
	if err != nil {
		return Fit{}, fmt.Errorf("%s: %w", family, err)
	}

	fit.Family = family
	fit.KSStatistic = KSStatistic(xs, cdf)
	fit.PValue = KSPValue(fit.KSStatistic, len(xs))
	if math.IsNaN(fit.KSStatistic) || math.IsNaN(fit.PValue) {
		return Fit{}, fmt.Errorf("%s: goodness of fit is undefined", family)
	}
	return fit, nil
}

func fitNormal(xs []float64) (Fit, func(float64) float64, error) {
	mu, sigma := popMeanStdDev(xs)
	if !(sigma > 0) {
		return Fit{}, nil, errDegenerate
	}
	d := distuv.Normal{Mu: mu, Sigma: sigma}
	return Fit{Param1: mu, Param2: sigma}, d.CDF, nil
}

func fitLogNormal(xs []float64) (Fit, func(float64) float64, error) {
	logs := make([]float64, len(xs))
	for i, x := range xs {
		logs[i] = math.Log(x)
	}
	mu, sigma := popMeanStdDev(logs)
	if !(sigma > 0) {
		return Fit{}, nil, errDegenerate
	}
	d := distuv.LogNormal{Mu: mu, Sigma: sigma}
	return Fit{Param1: mu, Param2: sigma}, d.CDF, nil
}

const (
	mleMaxIter = 200
	mleTol     = 1e-10
)

// fitGamma solves ln(a) - digamma(a) = ln(mean) - mean(ln x) by Newton's
// method from Minka's closed form start. The rate is a / mean.
func fitGamma(xs []float64) (Fit, func(float64) float64, error) {
	if slices.Min(xs) == slices.Max(xs) {
		return Fit{}, nil, errDegenerate
	}
	mean := stat.Mean(xs, nil)
	var meanLog float64
	for _, x := range xs {
		meanLog += math.Log(x)
	}
	meanLog /= float64(len(xs))

	s := math.Log(mean) - meanLog
	if !(s > 0) {
		return Fit{}, nil, errDegenerate
	}

	a := (3 - s + math.Sqrt((s-3)*(s-3)+24*s)) / (12 * s)
	converged := false
	for i := 0; i < mleMaxIter; i++ {
		f := math.Log(a) - mathext.Digamma(a) - s
		df := 1/a - trigamma(a)
		next := a - f/df
		if next <= 0 {
			next = a / 2
		}
		if math.Abs(next-a) <= mleTol*a {
			a = next
			converged = true
			break
		}
		a = next
	}
	if !converged || math.IsNaN(a) || math.IsInf(a, 0) {
		return Fit{}, nil, errNotConverged
	}

	rate := a / mean
	d := distuv.Gamma{Alpha: a, Beta: rate}
	return Fit{Param1: a, Param2: rate}, d.CDF, nil
}

// fitBeta maps the sample onto (0, 1) with a window padded by range/n on
// each side, then solves the two likelihood equations by Newton's method
// from a method of moments start.
func fitBeta(xs []float64) (Fit, func(float64) float64, error) {
	lo, hi := slices.Min(xs), slices.Max(xs)
	span := hi - lo
	if !(span > 0) {
		return Fit{}, nil, errDegenerate
	}
	pad := span / float64(len(xs))
	loc := lo - pad
	scale := span + 2*pad

	var meanLogY, meanLog1mY float64
	ys := make([]float64, len(xs))
	for i, x := range xs {
		y := (x - loc) / scale
		ys[i] = y
		meanLogY += math.Log(y)
		meanLog1mY += math.Log1p(-y)
	}
	n := float64(len(xs))
	meanLogY /= n
	meanLog1mY /= n

	m, sd := popMeanStdDev(ys)
	a, b := 1.0, 1.0
	if common := m*(1-m)/(sd*sd) - 1; common > 0 {
		a, b = m*common, (1-m)*common
	}

	converged := false
	for i := 0; i < mleMaxIter; i++ {
		psiAB := mathext.Digamma(a + b)
		g1 := psiAB - mathext.Digamma(a) + meanLogY
		g2 := psiAB - mathext.Digamma(b) + meanLog1mY

		tAB := trigamma(a + b)
		j11, j12, j22 := tAB-trigamma(a), tAB, tAB-trigamma(b)
		det := j11*j22 - j12*j12
		if det == 0 || math.IsNaN(det) {
			break
		}
		da := (-g1*j22 + g2*j12) / det
		db := (-g2*j11 + g1*j12) / det

		step := 1.0
		for a+step*da <= 0 || b+step*db <= 0 {
			step /= 2
		}
		a, b = a+step*da, b+step*db

		if math.Abs(step*da) <= mleTol*a && math.Abs(step*db) <= mleTol*b {
			converged = true
			break
		}
	}
	if !converged || math.IsNaN(a) || math.IsNaN(b) {
		return Fit{}, nil, errNotConverged
	}

	d := distuv.Beta{Alpha: a, Beta: b}
	cdf := func(x float64) float64 {
		y := (x - loc) / scale
		switch {
		case y <= 0:
			return 0
		case y >= 1:
			return 1
		}
		return d.CDF(y)
	}
	return Fit{Param1: a, Param2: b, Loc: &loc, Scale: &scale}, cdf, nil
}

// trigamma is the derivative of the digamma function, using the
// recurrence to push x above 10 and then the asymptotic series.
func trigamma(x float64) float64 {
	var acc float64
	for x < 10 {
		acc += 1 / (x * x)
		x++
	}
	x2 := 1 / (x * x)
	series := 1/x + x2/2 + x2/x*(1.0/6-x2*(1.0/30-x2*(1.0/42-x2/30)))
	return acc + series
}

// KSStatistic is the two-sided one-sample Kolmogorov-Smirnov distance
// between the empirical distribution of xs and cdf.
func KSStatistic(xs []float64, cdf func(float64) float64) float64 {
	sorted := slices.Clone(xs)
	slices.Sort(sorted)
	n := float64(len(sorted))

	var d float64
	for i, x := range sorted {
		f := cdf(x)
		d = math.Max(d, math.Max(float64(i+1)/n-f, f-float64(i)/n))
	}
	return d
}

// KSPValue is the asymptotic Kolmogorov p-value with Stephens' small
// sample correction of the statistic.
func KSPValue(d float64, n int) float64 {
	if n <= 0 || math.IsNaN(d) {
		return math.NaN()
	}
	sqrtN := math.Sqrt(float64(n))
	lambda := (sqrtN + 0.12 + 0.11/sqrtN) * d
	return clamp(kolmogorovQ(lambda), 0, 1)
}

// kolmogorovQ is P(K > lambda) for the Kolmogorov distribution.
func kolmogorovQ(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	if lambda < 1.18 {
		// Jacobi theta form converges fast for small lambda.
		y := math.Exp(-math.Pi * math.Pi / (8 * lambda * lambda))
		var sum float64
		for k := 1; k <= 50; k += 2 {
			term := math.Pow(y, float64(k*k))
			sum += term
			if term < 1e-16*sum {
				break
			}
		}
		return 1 - math.Sqrt(2*math.Pi)/lambda*sum
	}

	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := math.Exp(-2 * float64(k*k) * lambda * lambda)
		sum += sign * term
		if term < 1e-16 {
			break
		}
		sign = -sign
	}
	return 2 * sum
}
