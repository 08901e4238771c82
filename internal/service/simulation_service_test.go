package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/analytics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/ddmrp"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/storage"
)

func newSimulationService(store repository.RecordStore, exporter storage.ObjectStorage) *SimulationService {
	s := NewSimulationService(store, newPersister(store), newOrchestrator(), exporter, SimulationSettings{
		Trials:    200,
		MaxTrials: 500,
		BatchSize: 64,
		Export:    exporter != nil,
	})
	s.now = clock
	return s
}

func TestSimulatePersistsRetainedSamples(t *testing.T) {
	store := memory.NewStore()
	svc := newSimulationService(store, nil)
	in := analytics.SimulationInput{ProductID: "P1", LocationID: "L1", DemandVariability: 3, LeadTimeDays: 1}

	res, err := svc.Simulate(context.Background(), in, SimulationOptions{Seed: 11, Persist: true, IncludeSamples: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Trials != 200 || res.Seed != 11 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Summary.Retained+res.Discarded != 200 || res.Discarded == 0 {
		t.Errorf("expected discarded draws near a 1 day lead time, got %d retained", res.Summary.Retained)
	}
	if len(res.Samples) != res.Summary.Retained {
		t.Errorf("expected %d samples, got %d", res.Summary.Retained, len(res.Samples))
	}
	if res.Write == nil || !res.Write.Saved {
		t.Fatalf("expected samples to be saved, got %+v", res.Write)
	}
	if n := store.Len(repository.CollectionSafetyStockSamples); n != res.Summary.Retained {
		t.Errorf("stored %d samples, want %d", n, res.Summary.Retained)
	}

	again, _ := svc.Simulate(context.Background(), in, SimulationOptions{Seed: 11})
	if again.Summary != res.Summary {
		t.Errorf("same seed gave a different summary: %+v vs %+v", again.Summary, res.Summary)
	}
	if again.Write != nil {
		t.Errorf("expected no write without persist")
	}
}

func TestSimulatePicksSeed(t *testing.T) {
	svc := newSimulationService(memory.NewStore(), nil)
	in := analytics.SimulationInput{DemandVariability: 1, LeadTimeDays: 5}
	res, err := svc.Simulate(context.Background(), in, SimulationOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Seed == 0 {
		t.Errorf("expected a reported seed")
	}

	if _, err := svc.Simulate(context.Background(), analytics.SimulationInput{LeadTimeDays: 5}, SimulationOptions{}); !errors.Is(err, ddmrp.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestSimulateReportsFailedSampleWrites(t *testing.T) {
	svc := newSimulationService(newFlakyStore(-1), nil)
	in := analytics.SimulationInput{DemandVariability: 1, LeadTimeDays: 5}
	res, err := svc.Simulate(context.Background(), in, SimulationOptions{Seed: 3, Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Summary.Retained == 0 || res.Write == nil || res.Write.Saved || res.Write.Reason == "" {
		t.Errorf("expected summary with a failed write, got %+v", res)
	}
}

func TestSimulateExportsCSV(t *testing.T) {
	root := t.TempDir()
	fs, err := storage.NewFSStorage(root)
	if err != nil {
		t.Fatalf("fs storage: %v", err)
	}
	svc := newSimulationService(memory.NewStore(), fs)

	in := analytics.SimulationInput{ProductID: "P1", LocationID: "L1", DemandVariability: 2, LeadTimeDays: 4}
	res, err := svc.Simulate(context.Background(), in, SimulationOptions{Seed: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.ExportKey != "simulations/5/P1_L1.csv" {
		t.Fatalf("unexpected export key %q", res.ExportKey)
	}
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(res.ExportKey)))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != res.Summary.Retained+1 || !strings.HasPrefix(lines[0], "simulation_run,") {
		t.Errorf("unexpected csv with %d lines", len(lines))
	}
}

func TestSimulationRunBatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newSimulationService(store, nil)

	seed(t, store, repository.CollectionActiveDemandNodes,
		domain.DemandNode{ProductID: "P1", LocationID: "L1"},
		domain.DemandNode{ProductID: "P2", LocationID: "L1"},
		domain.DemandNode{ProductID: "P3", LocationID: "L1"},
		domain.DemandNode{ProductID: "P4", LocationID: "L1"},
	)
	seed(t, store, repository.CollectionDemandVariability,
		domain.DemandVariability{ProductID: "P1", LocationID: "L1", DemandVariability: 2, LeadTimeDays: ptrTo(6)},
		domain.DemandVariability{ProductID: "P2", LocationID: "L1", DemandVariability: 0, LeadTimeDays: ptrTo(6)},
		domain.DemandVariability{ProductID: "P3", LocationID: "L1", DemandVariability: 2},
	)

	report, err := svc.RunBatch(ctx, SimulationOptions{Seed: 99, Trials: 50, Persist: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Simulated != 1 || len(report.Excluded) != 3 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Results[0].ProductID != "P1" || report.Results[0].Seed != analytics.UnitSeed(99, "P1", "L1") {
		t.Errorf("unexpected unit result %+v", report.Results[0])
	}
	if n := store.Len(repository.CollectionSafetyStockSamples); n != report.Results[0].Summary.Retained {
		t.Errorf("stored %d samples, want %d", n, report.Results[0].Summary.Retained)
	}
}

func TestSimulationRunBatchWithoutPersist(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := newSimulationService(store, nil)

	seed(t, store, repository.CollectionActiveDemandNodes, domain.DemandNode{ProductID: "P1", LocationID: "L1"})
	seed(t, store, repository.CollectionDemandVariability,
		domain.DemandVariability{ProductID: "P1", LocationID: "L1", DemandVariability: 2, LeadTimeDays: ptrTo(6)},
	)

	report, err := svc.RunBatch(ctx, SimulationOptions{Seed: 7, Trials: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Simulated != 1 || report.Results[0].Write != nil {
		t.Fatalf("expected one unsaved result, got %+v", report)
	}
	if n := store.Len(repository.CollectionSafetyStockSamples); n != 0 {
		t.Errorf("expected no stored samples, got %d", n)
	}
}

func TestSimulateRejectsTrialsAboveCap(t *testing.T) {
	ctx := context.Background()
	svc := newSimulationService(memory.NewStore(), nil)
	in := analytics.SimulationInput{DemandVariability: 1, LeadTimeDays: 5}

	tests := []struct {
		name   string
		trials int
		ok     bool
	}{
		{"at cap", 500, true},
		{"above cap", 501, false},
		{"huge", 1 << 60, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.Simulate(ctx, in, SimulationOptions{Seed: 1, Trials: tt.trials})
			if tt.ok {
				if err != nil || res.Trials != tt.trials {
					t.Fatalf("expected %d trials, got %+v (%v)", tt.trials, res, err)
				}
				return
			}
			if !errors.Is(err, ddmrp.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if _, err := svc.RunBatch(ctx, SimulationOptions{Trials: 501}); !errors.Is(err, ddmrp.ErrInvalidInput) {
		t.Errorf("expected batch to reject the trial count, got %v", err)
	}
}
