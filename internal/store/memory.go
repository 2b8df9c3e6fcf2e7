package store

import (
	"context"
	"sort"
	"sync"

	"dppengine/internal/passport"
)

// InMemoryRecordStore keeps the default implementation lightweight and
// testable. Records are deep-copied on the way in and out so no caller ever
// aliases live store state.
//
// Locking is two-level: the outer mutex guards the maps, a lazily created
// per-id mutex serializes read-modify-write sequences for one record without
// blocking mutations to other records. Per-id locks are never removed because
// records are never hard-deleted.
type InMemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]passport.Record
	locks   map[string]*sync.Mutex
}

func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{
		records: make(map[string]passport.Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

func (s *InMemoryRecordStore) recordLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *InMemoryRecordStore) Get(_ context.Context, id string) (passport.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[id]; ok {
		return record.Clone(), nil
	}
	return passport.Record{}, ErrNotFound
}

func (s *InMemoryRecordStore) Upsert(_ context.Context, record passport.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryRecordStore) Find(_ context.Context, predicate func(passport.Record) bool) ([]passport.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []passport.Record
	for _, record := range s.records {
		if predicate(record) {
			out = append(out, record.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemoryRecordStore) List(_ context.Context) ([]passport.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]passport.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record.Clone())
	}
	sortByID(out)
	return out, nil
}

// Update runs mutate against a private copy of the record under the record's
// lock and writes the result back, so the whole sequence is all-or-nothing to
// other readers. A mutate error leaves the stored record untouched.
func (s *InMemoryRecordStore) Update(_ context.Context, id string, mutate func(*passport.Record) error) (passport.Record, error) {
	lock := s.recordLock(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	stored, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return passport.Record{}, ErrNotFound
	}

	working := stored.Clone()
	if err := mutate(&working); err != nil {
		return passport.Record{}, err
	}
	working.ID = id // the id is immutable regardless of what mutate did

	s.mu.Lock()
	s.records[id] = working
	s.mu.Unlock()
	return working.Clone(), nil
}

func sortByID(records []passport.Record) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}
