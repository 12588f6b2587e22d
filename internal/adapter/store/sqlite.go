package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	_ "modernc.org/sqlite"

	"divrag/internal/adapter/compute"
	"divrag/internal/port"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS vectors (
	id       TEXT PRIMARY KEY,
	content  TEXT NOT NULL,
	vector   BLOB NOT NULL,
	metadata TEXT
);
`

// SQLiteVectorStore persists vectors in a SQLite database using the
// pure-Go driver. Similarity is computed in Go over the candidate
// rows, so no native extension is required.
type SQLiteVectorStore struct {
	db        *sql.DB
	dimension int
	backend   compute.Backend
}

func NewSQLiteVectorStore(path string, dimension int) (*SQLiteVectorStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteVectorStore{
		db:        db,
		dimension: dimension,
		backend:   compute.NewSequentialBackend(),
	}, nil
}

// serializeVector encodes a vector as little-endian float32 bytes.
func serializeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func deserializeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

func (s *SQLiteVectorStore) Upsert(ctx context.Context, items []port.VectorItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO vectors (id, content, vector, metadata) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET content=excluded.content, vector=excluded.vector, metadata=excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
		}
		var metadata []byte
		if len(item.Metadata) > 0 {
			metadata, err = json.Marshal(item.Metadata)
			if err != nil {
				return err
			}
		}
		if _, err := stmt.ExecContext(ctx, item.ID, item.Content, serializeVector(item.Vector), metadata); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteVectorStore) Search(ctx context.Context, query []float32, k int, filter *port.Filter) ([]port.VectorResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", s.dimension, len(query))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, vector, metadata FROM vectors`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var items []port.VectorItem
	var vectors [][]float32
	for rows.Next() {
		var id, content string
		var blob []byte
		var metadata sql.NullString
		if err := rows.Scan(&id, &content, &blob, &metadata); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var meta map[string]string
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &meta); err != nil {
				continue // Skip corrupted entries
			}
		}
		if !filter.Matches(meta) {
			continue
		}

		items = append(items, port.VectorItem{ID: id, Content: content, Metadata: meta})
		vectors = append(vectors, deserializeVector(blob))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	scores, err := s.backend.BatchSimilarity(query, vectors)
	if err != nil {
		return nil, err
	}

	results := make([]port.VectorResult, len(items))
	for i, item := range items {
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

func (s *SQLiteVectorStore) Delete(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", id, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

func (s *SQLiteVectorStore) Close() error {
	return s.db.Close()
}

var _ port.VectorStore = (*SQLiteVectorStore)(nil)
