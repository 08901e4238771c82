package analytics

import (
	"math"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
)

func TestLinearThresholdsBaseline(t *testing.T) {
	got := LinearThresholds(0, 0)
	if got.DemandVariability != 0.6 || got.Decoupling != 0.75 {
		t.Fatalf("expected 0.6/0.75, got %+v", got)
	}
}

func TestLinearThresholdsStayInRange(t *testing.T) {
	for s := 0.0; s <= 1.0; s += 0.05 {
		for o := 0.0; o <= 1.0; o += 0.05 {
			got := LinearThresholds(s, o)
			if got.DemandVariability < DemandThresholdMin || got.DemandVariability > DemandThresholdMax {
				t.Fatalf("demand threshold %v out of range for %v/%v", got.DemandVariability, s, o)
			}
			if got.Decoupling < DecouplingThresholdMin || got.Decoupling > DecouplingThresholdMax {
				t.Fatalf("decoupling threshold %v out of range for %v/%v", got.Decoupling, s, o)
			}
		}
	}

	extreme := LinearThresholds(50, 0)
	if extreme.DemandVariability != DemandThresholdMax || extreme.Decoupling != DecouplingThresholdMax {
		t.Errorf("expected clamping to maxima, got %+v", extreme)
	}
	extreme = LinearThresholds(0, 50)
	if extreme.DemandVariability != DemandThresholdMin || extreme.Decoupling != DecouplingThresholdMin {
		t.Errorf("expected clamping to minima, got %+v", extreme)
	}
}

func TestPerformanceRates(t *testing.T) {
	if _, _, ok := PerformanceRates(nil); ok {
		t.Fatalf("expected no rates for empty records")
	}
	s, o, ok := PerformanceRates([]domain.PerformanceRecord{
		{StockoutCount: 2, OverstockCount: 0},
		{StockoutCount: 0, OverstockCount: 1},
	})
	if !ok || s != 1 || o != 0.5 {
		t.Errorf("unexpected rates %v %v", s, o)
	}
}

func ptr(v float64) *float64 { return &v }

func TestServiceLevelStats(t *testing.T) {
	mean, variance, n := ServiceLevelStats([]domain.PerformanceRecord{
		{ServiceLevelAchieved: ptr(0.9)},
		{ServiceLevelAchieved: ptr(0.8)},
		{},
		{ServiceLevelAchieved: ptr(0.7)},
	})
	if n != 3 || math.Abs(mean-0.8) > 1e-12 || math.Abs(variance-0.01) > 1e-12 {
		t.Errorf("unexpected stats mean=%v variance=%v n=%d", mean, variance, n)
	}
}

func TestBayesianPosterior(t *testing.T) {
	// equal variances average the two means
	if got := BayesianPosterior(0.7, 0.01, 0.9, 0.01); math.Abs(got-0.8) > 1e-12 {
		t.Errorf("expected 0.8, got %v", got)
	}
	// zero observed variance trusts the observation
	if got := BayesianPosterior(0.7, 0.01, 0.9, 0); math.Abs(got-0.9) > 1e-12 {
		t.Errorf("expected 0.9, got %v", got)
	}
	if got := BayesianPosterior(0.7, 0, 0.9, 0); got != 0.7 {
		t.Errorf("expected prior when both variances are zero, got %v", got)
	}
}
