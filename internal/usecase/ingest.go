package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"divrag/internal/adapter/embedding"
	"divrag/internal/adapter/fs"
	"divrag/internal/domain"
	"divrag/internal/port"
)

// Invalidator is notified after ingest mutates the index so stale
// cached results are dropped.
type Invalidator interface {
	Invalidate()
}

// IngestUseCase walks a directory, chunks each file into passages,
// embeds them through the dispatcher, and upserts the vectors into
// the store.
type IngestUseCase struct {
	walker     port.Walker
	chunker    port.Chunker
	dispatcher *embedding.Dispatcher
	store      port.VectorStore
	cache      Invalidator // optional
	logger     *zap.Logger
}

func NewIngestUseCase(
	walker port.Walker,
	chunker port.Chunker,
	dispatcher *embedding.Dispatcher,
	store port.VectorStore,
	cache Invalidator,
	logger *zap.Logger,
) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		walker:     walker,
		chunker:    chunker,
		dispatcher: dispatcher,
		store:      store,
		cache:      cache,
		logger:     logger,
	}
}

// IngestResult summarizes one ingest run.
type IngestResult struct {
	FilesProcessed  int
	PassagesCreated int
	Errors          []string
	Duration        time.Duration
}

// Ingest indexes all files under root. Passage IDs are derived from
// document ID and line range, so re-ingesting an unchanged file
// overwrites its vectors in place. The progress callback, if non-nil,
// is driven by the dispatcher as embedding batches complete.
func (u *IngestUseCase) Ingest(ctx context.Context, root string, progress embedding.ProgressFunc) (*IngestResult, error) {
	started := time.Now()
	result := &IngestResult{}

	files, err := u.walker.Walk(root)
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var passages []domain.Passage
	var docs = make(map[string]domain.Document)
	for _, file := range files {
		content, err := fs.ReadFile(file.Path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("read %s: %v", file.Path, err))
			continue
		}

		doc := domain.Document{
			ID:      docID(file.Path),
			Path:    file.Path,
			ModTime: time.Unix(file.ModTime, 0),
		}
		docs[doc.ID] = doc

		chunks := u.chunker.Chunk(doc, content)
		passages = append(passages, chunks...)
		result.FilesProcessed++
	}

	if len(passages) == 0 {
		result.Duration = time.Since(started)
		return result, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}

	vectors, err := u.dispatcher.EmbedAllWithProgress(ctx, texts, progress)
	if err != nil {
		return nil, fmt.Errorf("embed passages: %w", err)
	}

	items := make([]port.VectorItem, len(passages))
	for i, p := range passages {
		doc := docs[p.DocID]
		items[i] = port.VectorItem{
			ID:      p.ID,
			Vector:  vectors[i],
			Content: p.Text,
			Metadata: map[string]string{
				"path":       doc.Path,
				"lang":       detectLanguage(doc.Path),
				"start_line": fmt.Sprintf("%d", p.StartLine),
				"end_line":   fmt.Sprintf("%d", p.EndLine),
			},
		}
	}

	if err := u.store.Upsert(ctx, items); err != nil {
		return nil, fmt.Errorf("upsert vectors: %w", err)
	}

	if u.cache != nil {
		u.cache.Invalidate()
	}

	result.PassagesCreated = len(passages)
	result.Duration = time.Since(started)

	u.logger.Info("ingest complete",
		zap.Int("files", result.FilesProcessed),
		zap.Int("passages", result.PassagesCreated),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func docID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}

func detectLanguage(path string) string {
	switch filepath.Ext(path) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rs":
		return "rust"
	case ".java":
		return "java"
	case ".rb":
		return "ruby"
	case ".md":
		return "markdown"
	case ".txt":
		return "text"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".sh", ".bash":
		return "shell"
	default:
		return "unknown"
	}
}
