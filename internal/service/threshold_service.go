package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/rs/zerolog/log"
)

// Threshold update strategies. Callers pick exactly one per call.
const (
	StrategyLinear   = "linear"
	StrategyBayesian = "bayesian"
	StrategyManual   = "manual"
)

// Thresholds targeted by a Bayesian update.
const (
	TargetDecoupling        = "decoupling"
	TargetDemandVariability = "demand_variability"
)

const (
	defaultDemandThreshold     = 0.6
	defaultDecouplingThreshold = 0.75
	defaultCASRetries          = 3
	versionField               = "version"
)

var ErrUnknownTarget = errors.New("unknown threshold target")

// ThresholdUpdate reports one tuning call. Current is the configuration the
// call computed, whether or not it was saved.
type ThresholdUpdate struct {
	Strategy        string                 `json:"strategy"`
	Status          string                 `json:"status"`
	Previous        domain.ThresholdConfig `json:"previous"`
	Current         domain.ThresholdConfig `json:"current"`
	StockoutRate    *float64               `json:"stockout_rate,omitempty"`
	OverstockRate   *float64               `json:"overstock_rate,omitempty"`
	ObservedMean    *float64               `json:"observed_mean,omitempty"`
	ObservedVar     *float64               `json:"observed_variance,omitempty"`
	PeriodsAnalyzed int                    `json:"periods_analyzed"`
	Write           domain.WriteResult     `json:"write"`
}

// ThresholdService owns the single ThresholdConfig record. Every write is a
// read-modify-write guarded by the record version.
type ThresholdService struct {
	store   repository.VersionedStore
	retries int
	now     func() time.Time
}

func NewThresholdService(store repository.VersionedStore, casRetries int) *ThresholdService {
	if casRetries < 1 {
		casRetries = defaultCASRetries
	}
	return &ThresholdService{store: store, retries: casRetries, now: time.Now}
}

// Get returns the live configuration, or the defaults when none was saved.
func (s *ThresholdService) Get(ctx context.Context) (domain.ThresholdConfig, error) {
	recs, err := s.store.Get(ctx, repository.CollectionThresholdConfig, repository.Eq("id", domain.ThresholdConfigID).WithLimit(1))
	if err != nil {
		return domain.ThresholdConfig{}, fmt.Errorf("load threshold config: %w", err)
	}
	if len(recs) == 0 {
		return domain.ThresholdConfig{
			ID:                         domain.ThresholdConfigID,
			DemandVariabilityThreshold: defaultDemandThreshold,
			DecouplingThreshold:        defaultDecouplingThreshold,
		}, nil
	}
	var cfg domain.ThresholdConfig
	if err := repository.Decode(recs[0], &cfg); err != nil {
		return domain.ThresholdConfig{}, err
	}
	return cfg, nil
}

// RunLinear derives both thresholds from average stockout and overstock
// counts per period.
func (s *ThresholdService) RunLinear(ctx context.Context) (ThresholdUpdate, error) {
	records, err := s.performance(ctx)
	if err != nil {
		return ThresholdUpdate{}, err
	}
	stockout, overstock, ok := analytics.PerformanceRates(records)
	if !ok {
		return s.unchanged(ctx, StrategyLinear)
	}

	next := analytics.LinearThresholds(stockout, overstock)
	upd, err := s.update(ctx, StrategyLinear, func(cfg *domain.ThresholdConfig) {
		cfg.DemandVariabilityThreshold = next.DemandVariability
		cfg.DecouplingThreshold = next.Decoupling
	})
	upd.StockoutRate, upd.OverstockRate = &stockout, &overstock
	upd.PeriodsAnalyzed = len(records)
	return upd, err
}

// RunBayesian moves one threshold toward the observed service level, using
// the current value as a prior with PriorVariance.
func (s *ThresholdService) RunBayesian(ctx context.Context, target string) (ThresholdUpdate, error) {
	if target == "" {
		target = TargetDecoupling
	}
	if target != TargetDecoupling && target != TargetDemandVariability {
		return ThresholdUpdate{}, fmt.Errorf("%w: %q", ErrUnknownTarget, target)
	}

	records, err := s.performance(ctx)
	if err != nil {
		return ThresholdUpdate{}, err
	}
	mean, variance, n := analytics.ServiceLevelStats(records)
	if n == 0 {
		return s.unchanged(ctx, StrategyBayesian)
	}

	upd, err := s.update(ctx, StrategyBayesian, func(cfg *domain.ThresholdConfig) {
		if target == TargetDemandVariability {
			post := analytics.BayesianPosterior(cfg.DemandVariabilityThreshold, analytics.PriorVariance, mean, variance)
			cfg.DemandVariabilityThreshold = analytics.ClampDemandThreshold(post)
			return
		}
		post := analytics.BayesianPosterior(cfg.DecouplingThreshold, analytics.PriorVariance, mean, variance)
		cfg.DecouplingThreshold = analytics.ClampDecouplingThreshold(post)
	})
	upd.ObservedMean, upd.ObservedVar = &mean, &variance
	upd.PeriodsAnalyzed = n
	return upd, err
}

// ApplyManual sets both thresholds from onboarding input and marks the
// configuration as adjusted.
func (s *ThresholdService) ApplyManual(ctx context.Context, demandThreshold, decouplingThreshold float64) (ThresholdUpdate, error) {
	return s.update(ctx, StrategyManual, func(cfg *domain.ThresholdConfig) {
		cfg.DemandVariabilityThreshold = analytics.ClampDemandThreshold(demandThreshold)
		cfg.DecouplingThreshold = analytics.ClampDecouplingThreshold(decouplingThreshold)
		cfg.FirstTimeAdjusted = true
	})
}

func (s *ThresholdService) performance(ctx context.Context) ([]domain.PerformanceRecord, error) {
	recs, err := s.store.Get(ctx, repository.CollectionPerformance, repository.Filter{})
	if err != nil {
		return nil, fmt.Errorf("load performance: %w", err)
	}
	return repository.DecodeAll[domain.PerformanceRecord](recs)
}

func (s *ThresholdService) unchanged(ctx context.Context, strategy string) (ThresholdUpdate, error) {
	cfg, err := s.Get(ctx)
	if err != nil {
		return ThresholdUpdate{}, err
	}
	return ThresholdUpdate{
		Strategy: strategy,
		Status:   domain.StatusInsufficientData,
		Previous: cfg,
		Current:  cfg,
		Write:    domain.WriteResult{Saved: false, Reason: "no performance data"},
	}, nil
}

// update applies mutate to the live configuration and writes it back only if
// no other writer got there first, retrying from a fresh read on conflict.
// Exhausted retries return ErrVersionConflict along with the last computed
// configuration.
func (s *ThresholdService) update(ctx context.Context, strategy string, mutate func(*domain.ThresholdConfig)) (ThresholdUpdate, error) {
	upd := ThresholdUpdate{Strategy: strategy, Status: domain.StatusSuccess}
	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		upd.Write.Attempts = attempt

		prev, err := s.Get(ctx)
		if err != nil {
			return upd, err
		}
		next := prev
		mutate(&next)
		next.ID = domain.ThresholdConfigID
		next.Version = prev.Version + 1
		next.UpdatedAt = s.now().UTC()
		upd.Previous, upd.Current = prev, next

		rec, err := repository.Encode(next)
		if err != nil {
			return upd, err
		}
		lastErr = s.store.CompareAndSwap(ctx, repository.CollectionThresholdConfig, rec, versionField, prev.Version)
		if lastErr == nil {
			upd.Write.Saved = true
			log.Info().
				Str("strategy", strategy).
				Float64("demand_variability_threshold", next.DemandVariabilityThreshold).
				Float64("decoupling_threshold", next.DecouplingThreshold).
				Int64("version", next.Version).
				Msg("thresholds updated")
			return upd, nil
		}
		if !errors.Is(lastErr, repository.ErrVersionConflict) {
			break
		}
		log.Debug().Str("strategy", strategy).Int("attempt", attempt).Msg("threshold config changed concurrently, retrying")
	}

	upd.Write.Reason = lastErr.Error()
	log.Warn().Err(lastErr).Str("strategy", strategy).Msg("threshold config not saved")
	if errors.Is(lastErr, repository.ErrVersionConflict) {
		return upd, fmt.Errorf("update thresholds: %w", lastErr)
	}
	return upd, nil
}
