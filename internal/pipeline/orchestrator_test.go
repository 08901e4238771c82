package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
)

type stubJob struct {
	units    []Unit
	listErr  error
	statuses map[string]string
	failOn   map[string]bool
}

func (j *stubJob) Name() string { return "stub" }

func (j *stubJob) Units(ctx context.Context) ([]Unit, error) {
	return j.units, j.listErr
}

func (j *stubJob) Process(ctx context.Context, unit Unit) (UnitResult, error) {
	if j.failOn[unit.ProductID] {
		return UnitResult{}, errors.New("store unavailable")
	}
	if unit.ProductID == "panic" {
		panic("boom")
	}
	status := domain.StatusSuccess
	if s, ok := j.statuses[unit.ProductID]; ok {
		status = s
	}
	return UnitResult{Status: status, Value: unit.ProductID}, nil
}

type countingObserver struct {
	mu     sync.Mutex
	counts map[string]int
}

func (o *countingObserver) ObserveUnit(job, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.counts == nil {
		o.counts = map[string]int{}
	}
	o.counts[outcome]++
}

func TestOrchestratorCountsOutcomesAndContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	repo := NewRepository(store)
	obs := &countingObserver{}

	job := &stubJob{
		units: []Unit{
			{ProductID: "A", LocationID: "L1"},
			{ProductID: "B", LocationID: "L1"},
			{ProductID: "C", LocationID: "L1"},
			{ProductID: "panic", LocationID: "L1"},
			{ProductID: "D", LocationID: "L1"},
		},
		statuses: map[string]string{"C": domain.StatusInsufficientData},
		failOn:   map[string]bool{"B": true},
	}

	report, err := NewOrchestrator(repo, Config{WorkerCount: 3}, obs).Run(ctx, job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run := report.Run
	if run.TotalUnits != 5 || run.Succeeded != 2 || run.Skipped != 1 || run.Failed != 2 {
		t.Fatalf("unexpected counts %+v", run)
	}
	if run.Status != RunCompleted {
		t.Errorf("expected completed run, got %s", run.Status)
	}
	if len(report.Results) != 5 || report.Results[4].Key != "D@L1" {
		t.Fatalf("expected results in unit order, got %+v", report.Results)
	}
	if report.Results[1].Error == "" {
		t.Errorf("expected failure reason for B")
	}
	if obs.counts[OutcomeFailed] != 2 || obs.counts[OutcomeSucceeded] != 2 {
		t.Errorf("unexpected observed outcomes %v", obs.counts)
	}

	saved, err := repo.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if saved.Status != RunCompleted || saved.Failed != 2 || saved.CompletedAt == nil {
		t.Errorf("unexpected persisted run %+v", saved)
	}
}

func TestOrchestratorListFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(memory.NewStore())

	report, err := NewOrchestrator(repo, DefaultConfig("stub"), nil).Run(ctx, &stubJob{listErr: errors.New("no nodes")})
	if err == nil {
		t.Fatalf("expected error")
	}
	if report.Run.Status != RunFailed {
		t.Errorf("expected failed run, got %s", report.Run.Status)
	}

	runs, err := repo.ListRuns(ctx, "stub")
	if err != nil || len(runs) != 1 || runs[0].Status != RunFailed {
		t.Fatalf("expected one failed run persisted, got %v (%v)", runs, err)
	}
}

func TestOrchestratorWithoutRepository(t *testing.T) {
	job := &stubJob{units: []Unit{{ProductID: "A"}}}
	report, err := NewOrchestrator(nil, Config{}, nil).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Run.Succeeded != 1 {
		t.Errorf("expected 1 success, got %+v", report.Run)
	}
}

func TestSampleWriterFlushesInBatches(t *testing.T) {
	ctx := context.Background()
	var batches []int
	w := NewSampleWriter("test", 3, func(ctx context.Context, recs []repository.Record) error {
		batches = append(batches, len(recs))
		return nil
	})

	for i := 0; i < 7; i++ {
		if err := w.Add(ctx, repository.Record{"simulation_run": i}); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if len(batches) != 3 || batches[0] != 3 || batches[1] != 3 || batches[2] != 1 {
		t.Fatalf("unexpected batches %v", batches)
	}
	written, failed, buffered, _ := w.Stats()
	if written != 7 || failed != 0 || buffered != 0 {
		t.Errorf("unexpected stats %d/%d/%d", written, failed, buffered)
	}
}

func TestSampleWriterCountsFailedBatches(t *testing.T) {
	ctx := context.Background()
	calls := 0
	w := NewSampleWriter("test", 2, func(ctx context.Context, recs []repository.Record) error {
		calls++
		if calls == 1 {
			return errors.New("write rejected")
		}
		return nil
	})

	_ = w.Add(ctx, repository.Record{})
	if err := w.Add(ctx, repository.Record{}); err == nil {
		t.Fatalf("expected flush error")
	}
	_ = w.Add(ctx, repository.Record{})
	if err := w.Finalize(ctx); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	written, failed, _, lastErr := w.Stats()
	if written != 1 || failed != 2 || lastErr == nil {
		t.Errorf("unexpected stats written=%d failed=%d err=%v", written, failed, lastErr)
	}
}
