package session

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements the Store interface using an in-memory map.
// Suitable for tests and single-process hosts that do not need session
// records to survive a restart.
type MemoryStore struct {
	records map[string]*Record
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// Save inserts or updates a record.
func (s *MemoryStore) Save(ctx context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to decouple the stored record from later mutation
	recordCopy := *record
	s.records[record.ID] = &recordCopy

	return nil
}

// Get retrieves a record by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}

	recordCopy := *record
	return &recordCopy, nil
}

// List retrieves records matching the query, most recently updated first.
func (s *MemoryStore) List(ctx context.Context, query *Query) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Record
	for _, record := range s.records {
		if matchesQuery(record, query) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].UpdatedAt.After(results[j].UpdatedAt)
	})

	start := query.Offset
	if start > len(results) {
		return []*Record{}, nil
	}
	results = results[start:]

	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// Delete removes records matching the query.
func (s *MemoryStore) Delete(ctx context.Context, query *Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, record := range s.records {
		if matchesQuery(record, query) {
			delete(s.records, id)
			deleted++
		}
	}

	return deleted, nil
}

// Close releases resources held by the store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*Record)
	return nil
}

// Size returns the number of records in the store (for testing).
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}

// matchesQuery checks whether a record matches the query filters.
func matchesQuery(record *Record, query *Query) bool {
	if len(query.States) > 0 {
		found := false
		for _, state := range query.States {
			if record.State == state {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if query.Rule != "" && record.Rule != query.Rule {
		return false
	}

	if query.UpdatedBefore != nil && !record.UpdatedAt.Before(*query.UpdatedBefore) {
		return false
	}

	return true
}
