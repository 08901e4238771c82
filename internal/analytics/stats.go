package analytics

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Moments summarizes one series. StdDev is the sample standard deviation
// and is 0 for fewer than two points. CV is 0 when the mean is not positive.
type Moments struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	CV     float64 `json:"cv"`
}

func SeriesMoments(xs []float64) Moments {
	m := Moments{Count: len(xs)}
	switch len(xs) {
	case 0:
		return m
	case 1:
		m.Mean = xs[0]
	default:
		m.Mean, m.StdDev = stat.MeanStdDev(xs, nil)
	}
	if m.Mean > 0 {
		m.CV = m.StdDev / m.Mean
	}
	return m
}

// popMeanStdDev returns the mean and the maximum likelihood (population)
// standard deviation.
func popMeanStdDev(xs []float64) (float64, float64) {
	n := float64(len(xs))
	if n < 2 {
		return stat.Mean(xs, nil), 0
	}
	mean, variance := stat.MeanVariance(xs, nil)
	return mean, math.Sqrt(variance * (n - 1) / n)
}

// Round rounds half away from zero to the given number of decimal places.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}
