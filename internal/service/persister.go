package service

import (
	"context"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/domain"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/metrics"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/rs/zerolog/log"
)

// Persister performs the engine's store writes. A write is retried with a
// linear backoff and its outcome is reported as a WriteResult, never as an
// error, so the computed value it accompanies is always returned.
type Persister struct {
	store    repository.RecordStore
	attempts int
	backoff  time.Duration
	metrics  *metrics.Recorder
}

func NewPersister(store repository.RecordStore, cfg config.StoreConfig, recorder *metrics.Recorder) *Persister {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Persister{
		store:    store,
		attempts: attempts,
		backoff:  cfg.RetryBackoff,
		metrics:  recorder,
	}
}

// Upsert writes records keyed by conflictKey (or the collection default).
func (p *Persister) Upsert(ctx context.Context, collection string, records []repository.Record, conflictKey ...string) domain.WriteResult {
	return p.write(ctx, collection, func(ctx context.Context) error {
		return p.store.Upsert(ctx, collection, records, conflictKey...)
	})
}

// Insert appends records.
func (p *Persister) Insert(ctx context.Context, collection string, records []repository.Record) domain.WriteResult {
	return p.write(ctx, collection, func(ctx context.Context) error {
		return p.store.Insert(ctx, collection, records)
	})
}

func (p *Persister) write(ctx context.Context, collection string, fn func(context.Context) error) domain.WriteResult {
	var (
		res domain.WriteResult
		err error
	)
	for attempt := 1; attempt <= p.attempts; attempt++ {
		res.Attempts = attempt
		if err = fn(ctx); err == nil {
			res.Saved = true
			return res
		}
		if attempt == p.attempts || !p.wait(ctx, attempt) {
			break
		}
	}

	res.Reason = err.Error()
	p.metrics.ObservePersistenceFailure(collection)
	log.Warn().Err(err).Str("collection", collection).Int("attempts", res.Attempts).Msg("store write failed")
	return res
}

// wait sleeps attempt*backoff and reports false if ctx ended first.
func (p *Persister) wait(ctx context.Context, attempt int) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	if p.backoff <= 0 {
		return true
	}
	timer := time.NewTimer(time.Duration(attempt) * p.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
