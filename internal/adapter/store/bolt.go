package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"divrag/internal/adapter/compute"
	"divrag/internal/port"
)

var bucketVectors = []byte("vectors")

// BoltVectorStore persists vectors in BoltDB and mirrors them in
// memory for brute-force search.
type BoltVectorStore struct {
	db        *bbolt.DB
	dimension int
	backend   compute.Backend
	mu        sync.RWMutex
	items     map[string]port.VectorItem
}

type storedVector struct {
	Vector   []float32         `json:"v"`
	Content  string            `json:"c,omitempty"`
	Metadata map[string]string `json:"m,omitempty"`
}

// NewBoltVectorStore opens (or creates) a BoltDB-backed vector store
// at the given path and loads existing vectors into memory.
func NewBoltVectorStore(path string, dimension int) (*BoltVectorStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketVectors)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vectors bucket: %w", err)
	}

	s := &BoltVectorStore{
		db:        db,
		dimension: dimension,
		backend:   compute.NewSequentialBackend(),
		items:     make(map[string]port.VectorItem),
	}
	if err := s.loadVectors(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	return s, nil
}

func (s *BoltVectorStore) loadVectors() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			s.items[string(k)] = port.VectorItem{
				ID:       string(k),
				Vector:   stored.Vector,
				Content:  stored.Content,
				Metadata: stored.Metadata,
			}
			return nil
		})
	})
}

func (s *BoltVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return fmt.Errorf("vectors bucket not found")
		}

		for _, item := range items {
			if len(item.Vector) != s.dimension {
				return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
			}

			data, err := json.Marshal(storedVector{
				Vector:   item.Vector,
				Content:  item.Content,
				Metadata: item.Metadata,
			})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(item.ID), data); err != nil {
				return err
			}
			s.items[item.ID] = item
		}
		return nil
	})
}

func (s *BoltVectorStore) Search(ctx context.Context, query []float32, k int, filter *port.Filter) ([]port.VectorResult, error) {
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

func (s *BoltVectorStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
			delete(s.items, id)
		}
		return nil
	})
}

func (s *BoltVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

var _ port.VectorStore = (*BoltVectorStore)(nil)
