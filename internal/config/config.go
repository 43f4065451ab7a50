// Package config provides configuration loading and structs for the tansaku server and CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Corpus    CorpusConfig    `yaml:"corpus"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Evaluator EvaluatorConfig `yaml:"evaluator"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RunTTL is how long a finished run stays readable before it is evicted.
	RunTTL time.Duration `yaml:"run_ttl"`
}

// CorpusConfig describes where rows come from and which columns get embedded.
type CorpusConfig struct {
	// Source is a .jsonl, .xlsx, .db or .sqlite file, or a directory of documents.
	Source    string   `yaml:"source"`
	Sheet     string   `yaml:"sheet"`
	Keys      []string `yaml:"keys"`
	Separator string   `yaml:"separator"`
	BatchSize int      `yaml:"batch_size"`
}

// IndexConfig selects the search backend. Backend and Distance are parsed by the caller.
type IndexConfig struct {
	Backend   string          `yaml:"backend"`
	Distance  string          `yaml:"distance"`
	Threads   int             `yaml:"threads"`
	HNSW      HNSWConfig      `yaml:"hnsw"`
	Whitening WhiteningConfig `yaml:"whitening"`
}

// HNSWConfig tunes the graph backend.
type HNSWConfig struct {
	M              int   `yaml:"m"`
	EfConstruction int   `yaml:"ef_construction"`
	EfSearch       int   `yaml:"ef_search"`
	Seed           int64 `yaml:"seed"`
}

// WhiteningConfig configures the reduced-dimensionality backend.
type WhiteningConfig struct {
	Remains int    `yaml:"remains"`
	Backend string `yaml:"backend"`
}

// EmbeddingConfig holds embedder settings.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// EvaluatorConfig selects how matched rows are scored.
type EvaluatorConfig struct {
	// Type is "column" or "keyword".
	Type      string   `yaml:"type"`
	Key       string   `yaml:"key"`
	Keys      []string `yaml:"keys"`
	Target    string   `yaml:"target"`
	Fuzziness int      `yaml:"fuzziness"`
}

// OptimizerConfig bounds the built-in random search.
type OptimizerConfig struct {
	Steps int   `yaml:"steps"`
	Seed  int64 `yaml:"seed"`
}

// Load reads and parses the config file at path, applies defaults, and expands paths.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	if cfg.Corpus.Source != "" {
		cfg.Corpus.Source = expandPath(cfg.Corpus.Source, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
