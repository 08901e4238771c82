package analytics

import (
	"math"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"gonum.org/v1/gonum/stat"
)

// Valid threshold ranges.
const (
	DemandThresholdMin     = 0.3
	DemandThresholdMax     = 0.9
	DecouplingThresholdMin = 0.5
	DecouplingThresholdMax = 0.95

	// PriorVariance is the fixed variance of the current threshold in the
	// Bayesian update.
	PriorVariance = 0.01
)

// Thresholds is a pair of tuned global thresholds.
type Thresholds struct {
	DemandVariability float64 `json:"demand_variability_threshold"`
	Decoupling        float64 `json:"decoupling_threshold"`
}

func clamp(x, lo, hi float64) float64 {
	return math.Min(math.Max(x, lo), hi)
}

func ClampDemandThreshold(x float64) float64 {
	return clamp(x, DemandThresholdMin, DemandThresholdMax)
}

func ClampDecouplingThreshold(x float64) float64 {
	return clamp(x, DecouplingThresholdMin, DecouplingThresholdMax)
}

// PerformanceRates averages stockout and overstock counts per period.
// ok is false when there are no records.
func PerformanceRates(records []domain.PerformanceRecord) (stockoutRate, overstockRate float64, ok bool) {
	if len(records) == 0 {
		return 0, 0, false
	}
	for _, r := range records {
		stockoutRate += r.StockoutCount
		overstockRate += r.OverstockCount
	}
	n := float64(len(records))
	return stockoutRate / n, overstockRate / n, true
}

// LinearThresholds applies the linear heuristic and clamps both results.
func LinearThresholds(stockoutRate, overstockRate float64) Thresholds {
	return Thresholds{
		DemandVariability: ClampDemandThreshold(0.6 + 0.2*stockoutRate - 0.1*overstockRate),
		Decoupling:        ClampDecouplingThreshold(0.75 + 0.1*stockoutRate - 0.05*overstockRate),
	}
}

// ServiceLevelStats returns the mean and sample variance of the achieved
// service level over the records that carry one. Variance is 0 below two
// observations.
func ServiceLevelStats(records []domain.PerformanceRecord) (mean, variance float64, n int) {
	levels := make([]float64, 0, len(records))
	for _, r := range records {
		if r.ServiceLevelAchieved != nil && !math.IsNaN(*r.ServiceLevelAchieved) {
			levels = append(levels, *r.ServiceLevelAchieved)
		}
	}
	switch len(levels) {
	case 0:
		return 0, 0, 0
	case 1:
		return levels[0], 0, 1
	}
	mean, variance = stat.MeanVariance(levels, nil)
	return mean, variance, len(levels)
}

// BayesianPosterior is the precision weighted mean of prior and observation.
// With both variances zero the prior is returned unchanged.
func BayesianPosterior(priorMean, priorVariance, observedMean, observedVariance float64) float64 {
	denom := priorVariance + observedVariance
	if denom == 0 {
		return priorMean
	}
	return (priorVariance*observedMean + observedVariance*priorMean) / denom
}
