package judgments

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory judgment store for tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[key]RelevanceJudgment
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[key]RelevanceJudgment),
	}
}

// Get returns the judgment for a pair, or nil when unjudged.
func (s *MemoryStore) Get(ctx context.Context, query, docID string) (*RelevanceJudgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.data[key{query, docID}]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// Put creates or replaces the judgment for a pair.
func (s *MemoryStore) Put(ctx context.Context, judgment RelevanceJudgment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key{judgment.Query, judgment.DocID}] = judgment
	return nil
}

// List returns all judgments ordered by query then doc id.
func (s *MemoryStore) List(ctx context.Context) ([]RelevanceJudgment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RelevanceJudgment, 0, len(s.data))
	for _, j := range s.data {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Query != out[k].Query {
			return out[i].Query < out[k].Query
		}
		return out[i].DocID < out[k].DocID
	})
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
