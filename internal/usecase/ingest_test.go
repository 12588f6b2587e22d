package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"divrag/internal/adapter/cache"
	"divrag/internal/adapter/chunker"
	"divrag/internal/adapter/embedding"
	"divrag/internal/adapter/fs"
	"divrag/internal/adapter/store"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestIngestIndexesFilesIntoStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", strings.Repeat("package a\n", 5))
	writeFile(t, dir, "docs/readme.md", "hello\nworld\n")
	writeFile(t, dir, "skip.bin", "binary")

	walker := fs.NewWalker([]string{"**/*.go", "**/*.md"}, nil)
	vs := store.NewMemoryVectorStore(8)
	dispatcher := embedding.NewDispatcher(embedding.NewMockEmbedder(8), 2, 2, nil)

	u := NewIngestUseCase(walker, chunker.NewLineChunker(4, 0), dispatcher, vs, nil, nil)
	result, err := u.Ingest(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.FilesProcessed)
	assert.Greater(t, result.PassagesCreated, 0)
	assert.Empty(t, result.Errors)

	count, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, result.PassagesCreated, count)
}

func TestIngestAttachesMetadata(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "main.go", "package main\n")

	vs := store.NewMemoryVectorStore(8)
	embedder := embedding.NewMockEmbedder(8)
	dispatcher := embedding.NewDispatcher(embedder, 0, 1, nil)

	u := NewIngestUseCase(fs.NewWalker(nil, nil), chunker.NewLineChunker(10, 0), dispatcher, vs, nil, nil)
	_, err := u.Ingest(context.Background(), dir, nil)
	require.NoError(t, err)

	query, err := embedder.Embed(context.Background(), []string{"package main"})
	require.NoError(t, err)
	results, err := vs.Search(context.Background(), query[0], 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "go", results[0].Metadata["lang"])
	assert.Equal(t, filepath.Join(dir, "main.go"), results[0].Metadata["path"])
	assert.Equal(t, "1", results[0].Metadata["start_line"])
}

func TestIngestReportsProgress(t *testing.T) {
	dir := t.TempDir()
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "line")
	}
	writeFile(t, dir, "big.txt", strings.Join(lines, "\n"))

	vs := store.NewMemoryVectorStore(8)
	dispatcher := embedding.NewDispatcher(embedding.NewMockEmbedder(8), 1, 1, nil)

	var calls int
	var lastTotal int
	progress := func(completed, total int) {
		calls++
		lastTotal = total
	}

	u := NewIngestUseCase(fs.NewWalker(nil, nil), chunker.NewLineChunker(4, 0), dispatcher, vs, nil, nil)
	result, err := u.Ingest(context.Background(), dir, progress)
	require.NoError(t, err)

	// Batch size 1 means one progress call per passage.
	assert.Equal(t, result.PassagesCreated, calls)
	assert.Equal(t, result.PassagesCreated, lastTotal)
}

func TestIngestInvalidatesQueryCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "content\n")

	qc := cache.NewQueryCache(10, time.Minute)
	qc.Put("query", 3, nil, nil)
	require.Equal(t, 1, qc.Size())

	vs := store.NewMemoryVectorStore(8)
	dispatcher := embedding.NewDispatcher(embedding.NewMockEmbedder(8), 0, 1, nil)

	u := NewIngestUseCase(fs.NewWalker(nil, nil), chunker.NewLineChunker(4, 0), dispatcher, vs, qc, nil)
	_, err := u.Ingest(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, qc.Size())
}

func TestIngestEmptyDirectory(t *testing.T) {
	vs := store.NewMemoryVectorStore(8)
	dispatcher := embedding.NewDispatcher(embedding.NewMockEmbedder(8), 0, 1, nil)

	u := NewIngestUseCase(fs.NewWalker(nil, nil), chunker.NewLineChunker(4, 0), dispatcher, vs, nil, nil)
	result, err := u.Ingest(context.Background(), t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, result.FilesProcessed)
	assert.Equal(t, 0, result.PassagesCreated)
}

func TestIngestReingestOverwrites(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "stable content\n")

	vs := store.NewMemoryVectorStore(8)
	dispatcher := embedding.NewDispatcher(embedding.NewMockEmbedder(8), 0, 1, nil)
	u := NewIngestUseCase(fs.NewWalker(nil, nil), chunker.NewLineChunker(4, 0), dispatcher, vs, nil, nil)

	_, err := u.Ingest(context.Background(), dir, nil)
	require.NoError(t, err)
	first, err := vs.Count(context.Background())
	require.NoError(t, err)

	_, err = u.Ingest(context.Background(), dir, nil)
	require.NoError(t, err)
	second, err := vs.Count(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
