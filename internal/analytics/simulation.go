package analytics

import (
	"hash/fnv"
	"iter"
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// DefaultSimulationTrials is used when a non-positive trial count is given.
const DefaultSimulationTrials = 1000

// leadTimeStdDev is the spread of simulated lead time around its mean.
const leadTimeStdDev = 1.0

// SimulationInput is one product-location. DemandVariability must be > 0.
type SimulationInput struct {
	ProductID         string  `json:"product_id"`
	LocationID        string  `json:"location_id"`
	DemandVariability float64 `json:"demand_variability"`
	LeadTimeDays      float64 `json:"lead_time_days"`
}

// Trial is one retained Monte Carlo draw. Run is 1-based and counts
// discarded draws too, so gaps mark discarded trials.
type Trial struct {
	Run         int     `json:"simulation_run"`
	Demand      float64 `json:"simulated_demand"`
	LeadTime    float64 `json:"simulated_lead_time"`
	SafetyStock float64 `json:"calculated_safety_stock"`
}

// UnitSeed derives a per product-location seed so units in one batch draw
// independent streams from a single run seed.
func UnitSeed(seed uint64, productID, locationID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(productID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(locationID))
	return seed ^ h.Sum64()
}

// SimulateSafetyStock returns a lazy sequence of trials. Every iteration
// restarts from seed and yields the same trials. Draws whose safety stock
// is NaN or infinite, such as a negative simulated lead time, are skipped.
func SimulateSafetyStock(in SimulationInput, trials int, seed uint64) iter.Seq[Trial] {
	if trials <= 0 {
		trials = DefaultSimulationTrials
	}
	return func(yield func(Trial) bool) {
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for run := 1; run <= trials; run++ {
			demand := rng.NormFloat64() * in.DemandVariability
			leadTime := in.LeadTimeDays + rng.NormFloat64()*leadTimeStdDev

			ss := demand * math.Sqrt(leadTime)
			if math.IsNaN(ss) || math.IsInf(ss, 0) {
				continue
			}
			if !yield(Trial{Run: run, Demand: demand, LeadTime: leadTime, SafetyStock: math.Max(0, ss)}) {
				return
			}
		}
	}
}

// SimulationSummary describes the retained safety stock distribution.
type SimulationSummary struct {
	Retained int     `json:"retained"`
	Mean     float64 `json:"mean"`
	P50      float64 `json:"p50"`
	P90      float64 `json:"p90"`
	P95      float64 `json:"p95"`
}

// Summarize computes the mean and linearly interpolated percentiles.
func Summarize(stocks []float64) SimulationSummary {
	if len(stocks) == 0 {
		return SimulationSummary{}
	}
	sorted := slices.Clone(stocks)
	slices.Sort(sorted)
	return SimulationSummary{
		Retained: len(sorted),
		Mean:     stat.Mean(sorted, nil),
		P50:      stat.Quantile(0.50, stat.LinInterp, sorted, nil),
		P90:      stat.Quantile(0.90, stat.LinInterp, sorted, nil),
		P95:      stat.Quantile(0.95, stat.LinInterp, sorted, nil),
	}
}
