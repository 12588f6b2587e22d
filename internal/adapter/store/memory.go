package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"divrag/internal/adapter/compute"
	"divrag/internal/port"
)

// MemoryVectorStore keeps vectors in process memory. Search is brute
// force over all stored vectors.
type MemoryVectorStore struct {
	mu        sync.RWMutex
	dimension int
	items     map[string]port.VectorItem
	backend   compute.Backend
}

func NewMemoryVectorStore(dimension int) *MemoryVectorStore {
	return &MemoryVectorStore{
		dimension: dimension,
		items:     make(map[string]port.VectorItem),
		backend:   compute.NewSequentialBackend(),
	}
}

func (s *MemoryVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
		}
		s.items[item.ID] = item
	}
	return nil
}

func (s *MemoryVectorStore) Search(ctx context.Context, query []float32, k int, filter *port.Filter) ([]port.VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	matched := make([]port.VectorItem, 0, len(s.items))
	vectors := make([][]float32, 0, len(s.items))
	for _, item := range s.items {
		if !filter.Matches(item.Metadata) {
			continue
		}
		matched = append(matched, item)
		vectors = append(vectors, item.Vector)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	scores, err := s.backend.BatchSimilarity(query, vectors)
	if err != nil {
		return nil, err
	}

	results := make([]port.VectorResult, len(matched))
	for i, item := range matched {
		results[i] = port.VectorResult{
			ID:       item.ID,
			Score:    scores[i],
			Content:  item.Content,
			Metadata: item.Metadata,
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

func (s *MemoryVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.items, id)
	}
	return nil
}

func (s *MemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *MemoryVectorStore) Close() error { return nil }

var _ port.VectorStore = (*MemoryVectorStore)(nil)
