package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Orchestrator runs a Job over its units and tracks the run.
type Orchestrator struct {
	repo     *Repository
	cfg      Config
	observer UnitObserver
	now      func() time.Time
}

// NewOrchestrator creates a new Orchestrator. repo and observer may be nil.
func NewOrchestrator(repo *Repository, cfg Config, observer UnitObserver) *Orchestrator {
	return &Orchestrator{
		repo:     repo,
		cfg:      cfg,
		observer: observer,
		now:      time.Now,
	}
}

// Run lists the job's units and processes them on the worker pool. Only a
// failure to list units fails the run; unit failures are counted.
func (o *Orchestrator) Run(ctx context.Context, job Job) (*Report, error) {
	run := &Run{
		ID:        uuid.NewString(),
		JobName:   job.Name(),
		Status:    RunPending,
		StartedAt: o.now().UTC(),
	}
	logger := log.With().Str("job", run.JobName).Str("run_id", run.ID).Logger()

	units, err := job.Units(ctx)
	if err != nil {
		o.finish(ctx, run, fmt.Errorf("list units: %w", err))
		return &Report{Run: *run}, fmt.Errorf("%s: list units: %w", run.JobName, err)
	}

	run.TotalUnits = len(units)
	run.Status = RunProcessing
	o.save(ctx, run)
	logger.Info().Int("units", len(units)).Msg("starting run")

	results := processUnits(ctx, job, units, o.cfg.WorkerCount)
	for _, res := range results {
		outcome := outcomeOf(res.Status)
		switch outcome {
		case OutcomeSucceeded:
			run.Succeeded++
		case OutcomeSkipped:
			run.Skipped++
		default:
			run.Failed++
		}
		if o.observer != nil {
			o.observer.ObserveUnit(run.JobName, outcome)
		}
	}

	o.finish(ctx, run, ctx.Err())
	logger.Info().
		Int("succeeded", run.Succeeded).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("run completed")

	return &Report{Run: *run, Results: results}, nil
}

func (o *Orchestrator) finish(ctx context.Context, run *Run, err error) {
	now := o.now().UTC()
	run.CompletedAt = &now
	run.Status = RunCompleted
	if err != nil {
		run.Status = RunFailed
		run.ErrorMessage = err.Error()
	}
	o.save(context.WithoutCancel(ctx), run)
}

func (o *Orchestrator) save(ctx context.Context, run *Run) {
	if o.repo == nil {
		return
	}
	if err := o.repo.SaveRun(ctx, run); err != nil {
		log.Warn().Err(err).Str("job", run.JobName).Str("run_id", run.ID).Msg("failed to persist run")
	}
}
