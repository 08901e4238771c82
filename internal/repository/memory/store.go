// Package memory provides an in-memory record store used by tests and
// ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/repository"
	"github.com/google/uuid"
)

var _ repository.VersionedStore = (*Store)(nil)

type entry struct {
	rec repository.Record
	seq int64
}

// Store keeps every collection in a map guarded by one RWMutex, so each
// call is atomic with respect to every other call.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	seq         int64
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]*entry)}
}

func (s *Store) Get(ctx context.Context, collection string, filter repository.Filter) ([]repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*entry, 0, len(s.collections[collection]))
	for _, e := range s.collections[collection] {
		if filter.Matches(e.rec) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	if filter.Limit > 0 && len(entries) > filter.Limit {
		entries = entries[:filter.Limit]
	}
	out := make([]repository.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec.Clone()
	}
	return out, nil
}

func (s *Store) Upsert(ctx context.Context, collection string, records []repository.Record, conflictKey ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := repository.ConflictKey(collection, conflictKey)
	if err != nil {
		return err
	}
	keys := make([]string, len(records))
	for i, rec := range records {
		if keys[i], err = repository.KeyOf(rec, fields); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rec := range records {
		s.putLocked(collection, keys[i], rec)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, collection string, records []repository.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.putLocked(collection, uuid.NewString(), rec)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection string, filter repository.Filter) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, e := range s.collections[collection] {
		if filter.Matches(e.rec) {
			delete(s.collections[collection], key)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) CompareAndSwap(ctx context.Context, collection string, record repository.Record, versionField string, expected int64, conflictKey ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields, err := repository.ConflictKey(collection, conflictKey)
	if err != nil {
		return err
	}
	key, err := repository.KeyOf(record, fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	if e, ok := s.collections[collection][key]; ok {
		current = repository.VersionOf(e.rec, versionField)
	}
	if current != expected {
		return repository.ErrVersionConflict
	}
	s.putLocked(collection, key, record)
	return nil
}

func (s *Store) putLocked(collection, key string, rec repository.Record) {
	bucket, ok := s.collections[collection]
	if !ok {
		bucket = make(map[string]*entry)
		s.collections[collection] = bucket
	}
	if e, ok := bucket[key]; ok {
		e.rec = rec.Clone()
		return
	}
	s.seq++
	bucket[key] = &entry{rec: rec.Clone(), seq: s.seq}
}

// Len returns the number of records in a collection.
func (s *Store) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}
