package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/pipeline"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository/memory"
)

var errStoreDown = errors.New("store unavailable")

var fixedNow = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

// flakyStore fails the next failWrites writes, then delegates.
type flakyStore struct {
	*memory.Store
	mu         sync.Mutex
	failWrites int
	writes     int
}

func (s *flakyStore) fail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failWrites != 0 {
		if s.failWrites > 0 {
			s.failWrites--
		}
		return true
	}
	return false
}

func (s *flakyStore) Upsert(ctx context.Context, collection string, records []repository.Record, conflictKey ...string) error {
	if s.fail() {
		return errStoreDown
	}
	return s.Store.Upsert(ctx, collection, records, conflictKey...)
}

func (s *flakyStore) Insert(ctx context.Context, collection string, records []repository.Record) error {
	if s.fail() {
		return errStoreDown
	}
	return s.Store.Insert(ctx, collection, records)
}

// newFlakyStore fails n writes; a negative n fails every write.
func newFlakyStore(n int) *flakyStore {
	return &flakyStore{Store: memory.NewStore(), failWrites: n}
}

func newPersister(store repository.RecordStore) *Persister {
	return NewPersister(store, config.StoreConfig{RetryAttempts: 2}, nil)
}

func newOrchestrator() *pipeline.Orchestrator {
	return pipeline.NewOrchestrator(nil, pipeline.Config{WorkerCount: 2}, nil)
}

func seed(t *testing.T, store repository.RecordStore, collection string, values ...interface{}) {
	t.Helper()
	recs := make([]repository.Record, 0, len(values))
	for _, v := range values {
		rec, err := repository.Encode(v)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		recs = append(recs, rec)
	}
	if err := store.Insert(context.Background(), collection, recs); err != nil {
		t.Fatalf("seed %s: %v", collection, err)
	}
}
