package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
)

// DistributionResult is the profiling outcome of one node. Profile is set
// only on success; Reason explains any other status.
type DistributionResult struct {
	ProductID  string                            `json:"product_id"`
	LocationID string                            `json:"location_id"`
	Status     string                            `json:"status"`
	SampleSize int                               `json:"sample_size"`
	Reason     string                            `json:"reason,omitempty"`
	Profile    *domain.DemandDistributionProfile `json:"profile,omitempty"`
	Candidates []analytics.Fit                   `json:"candidates,omitempty"`
	Write      *domain.WriteResult               `json:"write,omitempty"`
}

type DistributionBatchReport struct {
	Run      pipeline.Run         `json:"run"`
	Inserted int                  `json:"inserted"`
	Skipped  int                  `json:"skipped"`
	Results  []DistributionResult `json:"results"`
	Failures map[string]string    `json:"failures,omitempty"`
}

type DistributionService struct {
	store        repository.RecordStore
	persist      *Persister
	orchestrator *pipeline.Orchestrator
	now          func() time.Time
}

func NewDistributionService(store repository.RecordStore, persist *Persister, orchestrator *pipeline.Orchestrator) *DistributionService {
	return &DistributionService{
		store:        store,
		persist:      persist,
		orchestrator: orchestrator,
		now:          time.Now,
	}
}

// Profile fits the node's full sales history.
func (s *DistributionService) Profile(ctx context.Context, productID, locationID string) (DistributionResult, error) {
	recs, err := s.store.Get(ctx, repository.CollectionSales, repository.Eq("product_id", productID).And("location_id", locationID))
	if err != nil {
		return DistributionResult{}, fmt.Errorf("load sales: %w", err)
	}
	sales, err := repository.DecodeAll[domain.SalesRecord](recs)
	if err != nil {
		return DistributionResult{}, err
	}
	sample := make([]float64, len(sales))
	for i, r := range sales {
		sample[i] = r.QuantitySold
	}
	return s.ProfileSample(ctx, productID, locationID, sample), nil
}

// ProfileSample fits sample and saves the best family as the node's
// profile, replacing any earlier one.
func (s *DistributionService) ProfileSample(ctx context.Context, productID, locationID string, sample []float64) DistributionResult {
	res := DistributionResult{ProductID: productID, LocationID: locationID, SampleSize: len(sample)}

	fit, err := analytics.FitBest(sample)
	res.Candidates = fit.Candidates
	switch {
	case errors.Is(err, analytics.ErrInsufficientSample), errors.Is(err, analytics.ErrNonPositiveSample):
		res.Status = domain.StatusInsufficientData
		res.Reason = err.Error()
		return res
	case err != nil:
		res.Status = domain.StatusNoFit
		res.Reason = err.Error()
		return res
	}

	best := fit.Best
	param2 := best.Param2
	profile := domain.DemandDistributionProfile{
		ProductID:        productID,
		LocationID:       locationID,
		DistributionType: string(best.Family),
		Param1:           best.Param1,
		Param2:           &param2,
		Loc:              best.Loc,
		Scale:            best.Scale,
		KSStatistic:      best.KSStatistic,
		PValue:           best.PValue,
		SampleSize:       len(sample),
		UpdatedAt:        s.now().UTC(),
	}
	res.Status = domain.StatusSuccess
	res.Profile = &profile

	rec, err := repository.Encode(profile)
	if err != nil {
		res.Write = &domain.WriteResult{Reason: err.Error()}
		return res
	}
	write := s.persist.Upsert(ctx, repository.CollectionDistribution, []repository.Record{rec})
	res.Write = &write
	return res
}

// RunBatch profiles every active demand node.
func (s *DistributionService) RunBatch(ctx context.Context) (DistributionBatchReport, error) {
	report, err := s.orchestrator.Run(ctx, &distributionJob{svc: s})
	out := DistributionBatchReport{Run: report.Run, Results: []DistributionResult{}}
	if err != nil {
		return out, err
	}
	for _, res := range report.Results {
		if res.Error != "" {
			if out.Failures == nil {
				out.Failures = map[string]string{}
			}
			out.Failures[res.Key] = res.Error
			out.Skipped++
			continue
		}
		dist, ok := res.Value.(DistributionResult)
		if !ok {
			continue
		}
		out.Results = append(out.Results, dist)
		if dist.Status == domain.StatusSuccess && dist.Write != nil && dist.Write.Saved {
			out.Inserted++
		} else {
			out.Skipped++
		}
	}
	return out, nil
}

type distributionJob struct {
	svc *DistributionService
}

func (j *distributionJob) Name() string { return "distribution_profile" }

func (j *distributionJob) Units(ctx context.Context) ([]pipeline.Unit, error) {
	nodes, err := loadNodes(ctx, j.svc.store, repository.CollectionActiveDemandNodes)
	if err != nil {
		return nil, err
	}
	return nodeUnits(nodes), nil
}

func (j *distributionJob) Process(ctx context.Context, unit pipeline.Unit) (pipeline.UnitResult, error) {
	res, err := j.svc.Profile(ctx, unit.ProductID, unit.LocationID)
	if err != nil {
		return pipeline.UnitResult{}, err
	}
	return pipeline.UnitResult{Status: res.Status, Value: res}, nil
}
