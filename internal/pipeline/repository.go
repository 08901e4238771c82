package pipeline

import (
	"context"
	"fmt"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
)

// Repository persists job runs in the pipeline_runs collection.
type Repository struct {
	store repository.RecordStore
}

// NewRepository creates a new run repository
func NewRepository(store repository.RecordStore) *Repository {
	return &Repository{store: store}
}

// SaveRun creates or replaces a run record
func (r *Repository) SaveRun(ctx context.Context, run *Run) error {
	rec, err := repository.Encode(run)
	if err != nil {
		return err
	}
	return r.store.Upsert(ctx, repository.CollectionPipelineRuns, []repository.Record{rec})
}

// GetRun retrieves a run by ID
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	recs, err := r.store.Get(ctx, repository.CollectionPipelineRuns, repository.Eq("id", id))
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if len(recs) == 0 {
		return nil, repository.ErrNotFound
	}
	var run Run
	if err := repository.Decode(recs[0], &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every run of a job in creation order
func (r *Repository) ListRuns(ctx context.Context, jobName string) ([]Run, error) {
	recs, err := r.store.Get(ctx, repository.CollectionPipelineRuns, repository.Eq("job_name", jobName))
	if err != nil {
		return nil, fmt.Errorf("list runs of %s: %w", jobName, err)
	}
	return repository.DecodeAll[Run](recs)
}
