package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.MMRLambda != 0.7 {
		t.Errorf("expected MMRLambda=0.7, got %f", cfg.Retrieve.MMRLambda)
	}
	if cfg.Retrieve.Oversample != 3 {
		t.Errorf("expected Oversample=3, got %d", cfg.Retrieve.Oversample)
	}
	if cfg.Retrieve.ParallelThreshold != 100 {
		t.Errorf("expected ParallelThreshold=100, got %d", cfg.Retrieve.ParallelThreshold)
	}
	if cfg.Index.ChunkLines != 40 {
		t.Errorf("expected ChunkLines=40, got %d", cfg.Index.ChunkLines)
	}
	if cfg.Store.Backend != "bolt" {
		t.Errorf("expected Backend=bolt, got %s", cfg.Store.Backend)
	}
	if cfg.Embedding.Concurrency != 4 {
		t.Errorf("expected Concurrency=4, got %d", cfg.Embedding.Concurrency)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "divrag.yaml")

	content := `
retrieve:
  top_k: 5
  mmr_lambda: 0.4
embedding:
  provider: ollama
  concurrency: 8
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Retrieve.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Retrieve.MMRLambda != 0.4 {
		t.Errorf("expected MMRLambda=0.4, got %f", cfg.Retrieve.MMRLambda)
	}
	if cfg.Embedding.Provider != "ollama" {
		t.Errorf("expected Provider=ollama, got %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Concurrency != 8 {
		t.Errorf("expected Concurrency=8, got %d", cfg.Embedding.Concurrency)
	}
	// Untouched sections keep their defaults.
	if cfg.Index.ChunkLines != 40 {
		t.Errorf("expected ChunkLines=40, got %d", cfg.Index.ChunkLines)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "divrag.yaml")

	content := `
store:
  backend: sqlite
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("expected Backend=sqlite, got %s", cfg.Store.Backend)
	}
}

func TestLoadFromDir_HiddenConfig(t *testing.T) {
	tmpDir := t.TempDir()
	if err := EnsureDataDir(tmpDir); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(tmpDir, ".divrag", "config.yaml")

	content := `
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected Level=debug, got %s", cfg.Logging.Level)
	}
}
