package pipeline

import (
	"context"
	"time"
)

// Job is a batch computation over independent units. Process must carry a
// unit through its full read-compute-persist cycle without touching state
// owned by sibling units.
type Job interface {
	// Name returns the unique identifier for this job
	Name() string

	// Units lists the work items of one run
	Units(ctx context.Context) ([]Unit, error)

	// Process handles a single unit and reports its status
	Process(ctx context.Context, unit Unit) (UnitResult, error)
}

// Unit is one product-location (or item) processed by a job.
type Unit struct {
	ProductID  string
	LocationID string
	// Payload carries job specific input resolved while listing units.
	Payload interface{}
}

// Key identifies the unit in logs and reports.
func (u Unit) Key() string {
	if u.LocationID == "" {
		return u.ProductID
	}
	return u.ProductID + "@" + u.LocationID
}

// UnitResult is the outcome of processing one unit.
type UnitResult struct {
	Unit   Unit        `json:"-"`
	Key    string      `json:"key"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
	Value  interface{} `json:"value,omitempty"`
}

// Config holds configuration for a job run
type Config struct {
	Name        string
	WorkerCount int // Number of concurrent workers
	BatchSize   int // Records buffered before a SampleWriter flush
}

// DefaultConfig returns sensible defaults
func DefaultConfig(name string) Config {
	return Config{
		Name:        name,
		WorkerCount: 4,
		BatchSize:   500,
	}
}

// RunStatus represents the current state of a job run
type RunStatus string

const (
	RunPending    RunStatus = "pending"
	RunProcessing RunStatus = "processing"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Unit outcomes used for counting and metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// Run tracks a single execution of a job and is persisted to pipeline_runs.
type Run struct {
	ID           string     `json:"id"`
	JobName      string     `json:"job_name"`
	Status       RunStatus  `json:"status"`
	TotalUnits   int        `json:"total_units"`
	Succeeded    int        `json:"succeeded"`
	Skipped      int        `json:"skipped"`
	Failed       int        `json:"failed"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// Report is returned by Orchestrator.Run.
type Report struct {
	Run     Run          `json:"run"`
	Results []UnitResult `json:"results"`
}

// UnitObserver receives one call per processed unit.
type UnitObserver interface {
	ObserveUnit(job, outcome string)
}
