package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
)

func TestUpsertReplacesByConflictKey(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.Upsert(ctx, repository.CollectionBuffers, []repository.Record{{"item_id": "A", "red_zone": 10.0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, repository.CollectionBuffers, []repository.Record{{"item_id": "A", "red_zone": 20.0}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	recs, err := s.Get(ctx, repository.CollectionBuffers, repository.Eq("item_id", "A"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0]["red_zone"] != 20.0 {
		t.Errorf("expected last write to win, got %v", recs[0]["red_zone"])
	}
}

func TestUpsertRejectsMissingKey(t *testing.T) {
	s := NewStore()
	err := s.Upsert(context.Background(), repository.CollectionBuffers, []repository.Record{{"red_zone": 1.0}})
	if !errors.Is(err, repository.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if s.Len(repository.CollectionBuffers) != 0 {
		t.Fatalf("expected nothing written")
	}
}

func TestInsertNeverReplaces(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rec := repository.Record{"item_id": "A", "color": "red"}

	for i := 0; i < 2; i++ {
		if err := s.Insert(ctx, repository.CollectionAlerts, []repository.Record{rec}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if n := s.Len(repository.CollectionAlerts); n != 2 {
		t.Fatalf("expected 2 alerts, got %d", n)
	}
}

func TestGetKeepsInsertionOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Upsert(ctx, repository.CollectionItems, []repository.Record{{"item_id": id}}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	recs, err := s.Get(ctx, repository.CollectionItems, repository.Filter{}.WithLimit(2))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(recs) != 2 || recs[0]["item_id"] != "c" || recs[1]["item_id"] != "a" {
		t.Fatalf("unexpected order %v", recs)
	}
}

func TestGetReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Upsert(ctx, repository.CollectionItems, []repository.Record{{"item_id": "A", "min_order_quantity": 5.0}})

	recs, _ := s.Get(ctx, repository.CollectionItems, repository.Filter{})
	recs[0]["min_order_quantity"] = 99.0

	again, _ := s.Get(ctx, repository.CollectionItems, repository.Filter{})
	if again[0]["min_order_quantity"] != 5.0 {
		t.Fatalf("expected stored record to be unaffected, got %v", again[0]["min_order_quantity"])
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.Insert(ctx, repository.CollectionAlerts, []repository.Record{
		{"item_id": "A"}, {"item_id": "B"}, {"item_id": "A"},
	})

	n, err := s.Delete(ctx, repository.CollectionAlerts, repository.Eq("item_id", "A"))
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 2 || s.Len(repository.CollectionAlerts) != 1 {
		t.Fatalf("expected 2 removed and 1 left, got %d removed, %d left", n, s.Len(repository.CollectionAlerts))
	}
}

func TestCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	col := repository.CollectionThresholdConfig

	if err := s.CompareAndSwap(ctx, col, repository.Record{"id": 1, "version": 1}, "version", 0); err != nil {
		t.Fatalf("initial swap: %v", err)
	}
	if err := s.CompareAndSwap(ctx, col, repository.Record{"id": 1, "version": 2}, "version", 0); !errors.Is(err, repository.ErrVersionConflict) {
		t.Fatalf("expected conflict on stale version, got %v", err)
	}
	if err := s.CompareAndSwap(ctx, col, repository.Record{"id": 1, "version": 2}, "version", 1); err != nil {
		t.Fatalf("expected swap from version 1, got %v", err)
	}
}

func TestConcurrentCompareAndSwapSingleWinner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	col := repository.CollectionThresholdConfig
	_ = s.CompareAndSwap(ctx, col, repository.Record{"id": 1, "version": 1}, "version", 0)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.CompareAndSwap(ctx, col, repository.Record{"id": 1, "version": 2}, "version", 1); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewStore().Get(ctx, repository.CollectionItems, repository.Filter{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
