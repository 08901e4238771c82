package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
)

const (
	dateLayout           = "2006-01-02"
	defaultAnalysisDays  = 90
	defaultTopCandidates = 10
	locationTopCount     = 5

	// A ratio at or above this counts as critical in a location summary.
	locationCriticalRatio = 2.0
)

// BullwhipAnalysis is one node's analysis over a window.
type BullwhipAnalysis struct {
	ProductID   string                   `json:"product_id"`
	LocationID  string                   `json:"location_id"`
	PeriodStart string                   `json:"analysis_period_start"`
	PeriodEnd   string                   `json:"analysis_period_end"`
	Result      analytics.BullwhipResult `json:"result"`
	Write       *domain.WriteResult      `json:"write,omitempty"`
}

type BullwhipBatchReport struct {
	Run           pipeline.Run       `json:"run"`
	TotalAnalyzed int                `json:"total_analyzed"`
	Successful    int                `json:"successful"`
	CriticalCount int                `json:"critical_count"`
	HighCount     int                `json:"high_count"`
	ModerateCount int                `json:"moderate_count"`
	AverageRatio  float64            `json:"average_ratio"`
	Results       []BullwhipAnalysis `json:"results"`
	Failures      map[string]string  `json:"failures,omitempty"`
}

type LocationCandidate struct {
	ProductID     string  `json:"product_id"`
	BullwhipRatio float64 `json:"bullwhip_ratio"`
	BullwhipScore int     `json:"bullwhip_score"`
}

// LocationSummary aggregates the stored analyses of one location.
type LocationSummary struct {
	LocationID         string              `json:"location_id"`
	Status             string              `json:"status"`
	TotalProducts      int                 `json:"total_products"`
	AverageRatio       float64             `json:"avg_bullwhip_ratio"`
	MaxRatio           float64             `json:"max_bullwhip_ratio"`
	CriticalCount      int                 `json:"critical_count"`
	AmplificationCount int                 `json:"amplification_count"`
	TopCandidates      []LocationCandidate `json:"top_candidates"`
}

type BullwhipService struct {
	store        repository.RecordStore
	persist      *Persister
	orchestrator *pipeline.Orchestrator
	days         int
	topLimit     int
	now          func() time.Time
}

func NewBullwhipService(store repository.RecordStore, persist *Persister, orchestrator *pipeline.Orchestrator, days, topLimit int) *BullwhipService {
	if days <= 0 {
		days = defaultAnalysisDays
	}
	if topLimit <= 0 {
		topLimit = defaultTopCandidates
	}
	return &BullwhipService{
		store:        store,
		persist:      persist,
		orchestrator: orchestrator,
		days:         days,
		topLimit:     topLimit,
		now:          time.Now,
	}
}

// Analyze compares order and demand variability of one node over the last
// days. Successful analyses are saved keyed by the period end.
func (s *BullwhipService) Analyze(ctx context.Context, productID, locationID string, days int) (BullwhipAnalysis, error) {
	if days <= 0 {
		days = s.days
	}
	end := s.now().UTC()
	start := end.AddDate(0, 0, -days)
	out := BullwhipAnalysis{
		ProductID:   productID,
		LocationID:  locationID,
		PeriodStart: start.Format(dateLayout),
		PeriodEnd:   end.Format(dateLayout),
	}

	node := repository.Eq("product_id", productID).And("location_id", locationID)
	salesRecs, err := s.store.Get(ctx, repository.CollectionSales, node.Between("sales_date", out.PeriodStart, out.PeriodEnd))
	if err != nil {
		return out, fmt.Errorf("load sales: %w", err)
	}
	orderRecs, err := s.store.Get(ctx, repository.CollectionOpenPOs, node.Between("order_date", out.PeriodStart, out.PeriodEnd))
	if err != nil {
		return out, fmt.Errorf("load orders: %w", err)
	}
	sales, err := repository.DecodeAll[domain.SalesRecord](salesRecs)
	if err != nil {
		return out, err
	}
	orders, err := repository.DecodeAll[domain.PurchaseOrder](orderRecs)
	if err != nil {
		return out, err
	}

	demand := make([]float64, len(sales))
	for i, r := range sales {
		demand[i] = r.QuantitySold
	}
	ordered := make([]float64, len(orders))
	for i, o := range orders {
		ordered[i] = o.OrderedQty
	}

	// the record keeps full precision; only the response is rounded
	raw := analytics.AnalyzeBullwhip(demand, ordered)
	out.Result = roundBullwhip(raw)
	if raw.Status != domain.StatusSuccess {
		return out, nil
	}

	rec, err := repository.Encode(domain.BullwhipRecord{
		ProductID:            productID,
		LocationID:           locationID,
		AnalysisPeriodStart:  out.PeriodStart,
		AnalysisPeriodEnd:    out.PeriodEnd,
		CustomerDemandMean:   raw.Demand.Mean,
		CustomerDemandStdDev: raw.Demand.StdDev,
		OrderQtyMean:         raw.Orders.Mean,
		OrderQtyStdDev:       raw.Orders.StdDev,
		BullwhipRatio:        raw.Ratio,
		BullwhipScore:        raw.Score,
	})
	if err != nil {
		return out, err
	}
	write := s.persist.Upsert(ctx, repository.CollectionBullwhip, []repository.Record{rec})
	out.Write = &write
	return out, nil
}

func roundBullwhip(r analytics.BullwhipResult) analytics.BullwhipResult {
	r.Ratio = analytics.Round(r.Ratio, 2)
	for _, m := range []*analytics.Moments{&r.Demand, &r.Orders} {
		m.Mean = analytics.Round(m.Mean, 2)
		m.StdDev = analytics.Round(m.StdDev, 2)
		m.CV = analytics.Round(m.CV, 3)
	}
	return r
}

// AnalyzeBatch analyzes every node, defaulting to all decoupling points.
func (s *BullwhipService) AnalyzeBatch(ctx context.Context, nodes []domain.DemandNode, days int) (BullwhipBatchReport, error) {
	report, err := s.orchestrator.Run(ctx, &bullwhipJob{svc: s, nodes: nodes, days: days})
	if err != nil {
		return BullwhipBatchReport{Run: report.Run}, err
	}

	out := BullwhipBatchReport{
		Run:           report.Run,
		TotalAnalyzed: len(report.Results),
		Results:       []BullwhipAnalysis{},
	}
	var ratioSum float64
	for _, res := range report.Results {
		if res.Error != "" {
			if out.Failures == nil {
				out.Failures = map[string]string{}
			}
			out.Failures[res.Key] = res.Error
			continue
		}
		analysis, ok := res.Value.(BullwhipAnalysis)
		if !ok {
			continue
		}
		out.Results = append(out.Results, analysis)
		if analysis.Result.Status != domain.StatusSuccess {
			continue
		}
		out.Successful++
		ratioSum += analysis.Result.Ratio
		switch analytics.SeverityTier(analysis.Result.Ratio) {
		case analytics.TierCritical:
			out.CriticalCount++
		case analytics.TierHigh:
			out.HighCount++
		case analytics.TierModerate:
			out.ModerateCount++
		}
	}
	if out.Successful > 0 {
		out.AverageRatio = analytics.Round(ratioSum/float64(out.Successful), 2)
	}
	return out, nil
}

// TopCandidates returns stored analyses with the highest ratios first.
func (s *BullwhipService) TopCandidates(ctx context.Context, limit int) ([]domain.BullwhipRecord, error) {
	if limit <= 0 {
		limit = s.topLimit
	}
	records, err := s.records(ctx, repository.Filter{})
	if err != nil {
		return nil, err
	}
	return records[:min(limit, len(records))], nil
}

// LocationSummary aggregates the stored analyses of a location.
func (s *BullwhipService) LocationSummary(ctx context.Context, locationID string) (LocationSummary, error) {
	records, err := s.records(ctx, repository.Eq("location_id", locationID))
	if err != nil {
		return LocationSummary{}, err
	}

	summary := LocationSummary{LocationID: locationID, TopCandidates: []LocationCandidate{}}
	if len(records) == 0 {
		summary.Status = "no_data"
		return summary, nil
	}

	summary.Status = domain.StatusSuccess
	summary.TotalProducts = len(records)
	summary.MaxRatio = analytics.Round(records[0].BullwhipRatio, 2)
	var sum float64
	for i, r := range records {
		sum += r.BullwhipRatio
		if r.BullwhipRatio >= locationCriticalRatio {
			summary.CriticalCount++
		}
		if r.BullwhipRatio > 1.0 {
			summary.AmplificationCount++
		}
		if i < locationTopCount {
			summary.TopCandidates = append(summary.TopCandidates, LocationCandidate{
				ProductID:     r.ProductID,
				BullwhipRatio: analytics.Round(r.BullwhipRatio, 2),
				BullwhipScore: r.BullwhipScore,
			})
		}
	}
	summary.AverageRatio = analytics.Round(sum/float64(len(records)), 2)
	return summary, nil
}

// records loads stored analyses sorted by ratio, highest first.
func (s *BullwhipService) records(ctx context.Context, filter repository.Filter) ([]domain.BullwhipRecord, error) {
	recs, err := s.store.Get(ctx, repository.CollectionBullwhip, filter)
	if err != nil {
		return nil, fmt.Errorf("load bullwhip analyses: %w", err)
	}
	records, err := repository.DecodeAll[domain.BullwhipRecord](recs)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(records, func(a, b domain.BullwhipRecord) int {
		return cmp.Compare(b.BullwhipRatio, a.BullwhipRatio)
	})
	return records, nil
}

type bullwhipJob struct {
	svc   *BullwhipService
	nodes []domain.DemandNode
	days  int
}

func (j *bullwhipJob) Name() string { return "bullwhip" }

func (j *bullwhipJob) Units(ctx context.Context) ([]pipeline.Unit, error) {
	nodes := j.nodes
	if len(nodes) == 0 {
		var err error
		if nodes, err = loadNodes(ctx, j.svc.store, repository.CollectionDecouplingPoints); err != nil {
			return nil, err
		}
	}
	return nodeUnits(nodes), nil
}

func (j *bullwhipJob) Process(ctx context.Context, unit pipeline.Unit) (pipeline.UnitResult, error) {
	analysis, err := j.svc.Analyze(ctx, unit.ProductID, unit.LocationID, j.days)
	if err != nil {
		return pipeline.UnitResult{}, err
	}
	return pipeline.UnitResult{Status: analysis.Result.Status, Value: analysis}, nil
}
