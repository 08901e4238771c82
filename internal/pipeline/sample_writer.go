package pipeline

import (
	"context"
	"sync"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/rs/zerolog/log"
)

// FlushFunc writes one batch of buffered records.
type FlushFunc func(ctx context.Context, records []repository.Record) error

// SampleWriter buffers records and hands them to a FlushFunc in batches of
// at most batchSize. A failed batch is dropped and counted, not retried.
type SampleWriter struct {
	name      string
	batchSize int
	flush     FlushFunc

	mu      sync.Mutex
	buffer  []repository.Record
	written int
	failed  int
	lastErr error
}

// NewSampleWriter creates a writer that flushes every batchSize records.
func NewSampleWriter(name string, batchSize int, flush FlushFunc) *SampleWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	return &SampleWriter{
		name:      name,
		batchSize: batchSize,
		flush:     flush,
		buffer:    make([]repository.Record, 0, batchSize),
	}
}

// Add buffers a record, flushing when the batch is full.
func (w *SampleWriter) Add(ctx context.Context, rec repository.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, rec)
	if len(w.buffer) >= w.batchSize {
		return w.flushLocked(ctx)
	}
	return nil
}

// Finalize flushes any remaining records.
func (w *SampleWriter) Finalize(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked(ctx)
}

// flushLocked must be called with w.mu held.
func (w *SampleWriter) flushLocked(ctx context.Context) error {
	if len(w.buffer) == 0 {
		return nil
	}

	batch := w.buffer
	w.buffer = make([]repository.Record, 0, w.batchSize)

	if err := w.flush(ctx, batch); err != nil {
		w.failed += len(batch)
		w.lastErr = err
		log.Warn().Err(err).Str("writer", w.name).Int("records", len(batch)).Msg("batch flush failed")
		return err
	}
	w.written += len(batch)
	log.Debug().Str("writer", w.name).Int("records", len(batch)).Msg("flushed batch")
	return nil
}

// Stats returns the number of records written, dropped and still buffered,
// plus the last flush error.
func (w *SampleWriter) Stats() (written, failed, buffered int, lastErr error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failed, len(w.buffer), w.lastErr
}
