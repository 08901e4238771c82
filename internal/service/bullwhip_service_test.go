package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
)

func newBullwhipService(store repository.RecordStore) *BullwhipService {
	s := NewBullwhipService(store, newPersister(store), newOrchestrator(), 0, 0)
	s.now = clock
	return s
}

func seedSeries(t *testing.T, store repository.RecordStore, product, location string, demand, orders []float64) {
	t.Helper()
	for i, q := range demand {
		seed(t, store, repository.CollectionSales, domain.SalesRecord{
			ProductID:    product,
			LocationID:   location,
			SalesDate:    fmt.Sprintf("2024-06-%02d", i+1),
			QuantitySold: q,
		})
	}
	for i, q := range orders {
		seed(t, store, repository.CollectionOpenPOs, domain.PurchaseOrder{
			ProductID:  product,
			LocationID: location,
			OrderDate:  fmt.Sprintf("2024-05-%02d", i+1),
			OrderedQty: q,
		})
	}
}

func TestAnalyzeBullwhip(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newBullwhipService(store)

	seedSeries(t, store, "P1", "L1", []float64{9, 11, 10, 10, 9, 11}, []float64{0, 30, 0, 30, 0, 0})
	// outside the 90 day window
	seed(t, store, repository.CollectionSales, domain.SalesRecord{ProductID: "P1", LocationID: "L1", SalesDate: "2023-01-01", QuantitySold: 500})

	res, err := svc.Analyze(ctx, "P1", "L1", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PeriodStart != "2024-04-01" || res.PeriodEnd != "2024-06-30" {
		t.Errorf("unexpected window %s..%s", res.PeriodStart, res.PeriodEnd)
	}
	if res.Result.Status != domain.StatusSuccess || res.Result.Demand.Count != 6 {
		t.Fatalf("unexpected result %+v", res.Result)
	}
	if res.Result.Demand.Mean != 10 || res.Result.Score != 100 {
		t.Errorf("unexpected result %+v", res.Result)
	}
	if res.Result.Ratio != analytics.Round(res.Result.Ratio, 2) {
		t.Errorf("ratio not rounded: %v", res.Result.Ratio)
	}
	if res.Write == nil || !res.Write.Saved {
		t.Fatalf("expected saved analysis, got %+v", res.Write)
	}

	recs, _ := store.Get(ctx, repository.CollectionBullwhip, repository.Eq("product_id", "P1"))
	if len(recs) != 1 || recs[0]["analysis_period_end"] != "2024-06-30" {
		t.Fatalf("unexpected stored analyses %v", recs)
	}
	raw := analytics.AnalyzeBullwhip([]float64{9, 11, 10, 10, 9, 11}, []float64{0, 30, 0, 30, 0, 0})
	var stored domain.BullwhipRecord
	if err := repository.Decode(recs[0], &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.BullwhipRatio != raw.Ratio || stored.OrderQtyStdDev != raw.Orders.StdDev || stored.CustomerDemandStdDev != raw.Demand.StdDev {
		t.Errorf("expected unrounded values to be stored, got %+v want %+v", stored, raw)
	}
	if raw.Ratio == res.Result.Ratio {
		t.Errorf("expected the response ratio %v to be rounded from %v", res.Result.Ratio, raw.Ratio)
	}

	// same period overwrites
	if _, err := svc.Analyze(ctx, "P1", "L1", 0); err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if n := store.Len(repository.CollectionBullwhip); n != 1 {
		t.Errorf("expected one analysis per period end, got %d", n)
	}
}

func TestAnalyzeBullwhipInsufficientData(t *testing.T) {
	store := memory.NewStore()
	svc := newBullwhipService(store)
	seedSeries(t, store, "P1", "L1", []float64{5, 6}, nil)

	res, err := svc.Analyze(context.Background(), "P1", "L1", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Result.Status != domain.StatusInsufficientData || res.Result.Ratio != 1.0 || res.Result.Score != 50 {
		t.Errorf("unexpected result %+v", res.Result)
	}
	if res.Write != nil || store.Len(repository.CollectionBullwhip) != 0 {
		t.Errorf("insufficient data must not be saved")
	}
}

func TestAnalyzeBatchAndSummaries(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newBullwhipService(store)

	flat := []float64{9, 11, 10, 10, 9, 11}
	seedSeries(t, store, "P1", "L1", flat, []float64{0, 30, 0, 30, 0, 0})
	seedSeries(t, store, "P2", "L1", flat, []float64{9, 11, 10, 10, 9, 11})
	seedSeries(t, store, "P3", "L2", nil, []float64{1, 2})
	seed(t, store, repository.CollectionDecouplingPoints,
		domain.DemandNode{ProductID: "P1", LocationID: "L1"},
		domain.DemandNode{ProductID: "P2", LocationID: "L1"},
		domain.DemandNode{ProductID: "P3", LocationID: "L2"},
	)

	report, err := svc.AnalyzeBatch(ctx, nil, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.TotalAnalyzed != 3 || report.Successful != 2 || report.CriticalCount != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Run.Skipped != 1 || report.Run.Succeeded != 2 {
		t.Errorf("unexpected run counts %+v", report.Run)
	}

	top, err := svc.TopCandidates(ctx, 1)
	if err != nil {
		t.Fatalf("top candidates: %v", err)
	}
	if len(top) != 1 || top[0].ProductID != "P1" {
		t.Fatalf("unexpected top candidates %+v", top)
	}

	summary, err := svc.LocationSummary(ctx, "L1")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Status != domain.StatusSuccess || summary.TotalProducts != 2 || summary.CriticalCount != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.AmplificationCount != 1 || len(summary.TopCandidates) != 2 || summary.TopCandidates[0].ProductID != "P1" {
		t.Errorf("unexpected summary %+v", summary)
	}

	empty, err := svc.LocationSummary(ctx, "L9")
	if err != nil || empty.Status != "no_data" {
		t.Errorf("expected no_data, got %+v (%v)", empty, err)
	}
}
