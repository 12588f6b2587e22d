package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for divrag.
type Config struct {
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`    // "openai", "jina", "ollama", "mock"
	Model       string `yaml:"model"`       // e.g., "text-embedding-3-small"
	APIKeyEnv   string `yaml:"api_key_env"` // Environment variable for API key
	Dimension   int    `yaml:"dimension"`
	BatchSize   int    `yaml:"batch_size"`  // 0 = provider's advisory optimum
	Concurrency int    `yaml:"concurrency"` // max embed requests in flight
	CacheSize   int    `yaml:"cache_size"`  // embedding LRU entries, 0 = disabled
}

// IndexConfig holds ingest configuration.
type IndexConfig struct {
	Includes     []string `yaml:"includes"`
	Excludes     []string `yaml:"excludes"`
	ChunkLines   int      `yaml:"chunk_lines"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK              int     `yaml:"top_k"`
	MMRLambda         float64 `yaml:"mmr_lambda"`
	Oversample        int     `yaml:"oversample"`         // base retrieval fetches top_k * oversample
	ParallelThreshold int     `yaml:"parallel_threshold"` // candidate count at which the parallel backend engages
	MinScoreThreshold float64 `yaml:"min_score_threshold"` // Filter results below this score (0 = disabled)
	CacheSize         int     `yaml:"cache_size"`          // query cache entries, 0 = disabled
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
}

// StoreConfig selects and configures the vector store backend.
type StoreConfig struct {
	Backend    string `yaml:"backend"` // "memory", "bolt", "sqlite", "qdrant"
	Path       string `yaml:"path"`    // bolt/sqlite database path
	QdrantAddr string `yaml:"qdrant_addr"`
	Collection string `yaml:"collection"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Includes:     []string{"**/*.go", "**/*.py", "**/*.js", "**/*.ts", "**/*.java", "**/*.rs", "**/*.rb", "**/*.md", "**/*.txt"},
			Excludes:     []string{"**/node_modules/**", "**/vendor/**", "**/.git/**", "**/dist/**", "**/build/**", "**/__pycache__/**", "**/*.min.js"},
			ChunkLines:   40,
			ChunkOverlap: 5,
		},
		Retrieve: RetrieveConfig{
			TopK:              10,
			MMRLambda:         0.7,
			Oversample:        3,
			ParallelThreshold: 100,
			MinScoreThreshold: 0,
			CacheSize:         100,
			CacheTTLSeconds:   300,
		},
		Embedding: EmbeddingConfig{
			Provider:    "mock",
			Model:       "text-embedding-3-small",
			APIKeyEnv:   "OPENAI_API_KEY",
			Dimension:   1536,
			BatchSize:   0,
			Concurrency: 4,
			CacheSize:   10000,
		},
		Store: StoreConfig{
			Backend:    "bolt",
			Path:       filepath.Join(".divrag", "vectors.db"),
			QdrantAddr: "localhost:6334",
			Collection: "divrag",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for divrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "divrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".divrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EnsureDataDir ensures the .divrag directory exists under dir.
func EnsureDataDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".divrag"), 0755)
}
