package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RunTTL == 0 {
		cfg.Server.RunTTL = time.Hour
	}
	if cfg.Corpus.Separator == "" {
		cfg.Corpus.Separator = " [SEP] "
	}
	if cfg.Corpus.BatchSize == 0 {
		cfg.Corpus.BatchSize = 64
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "hnsw"
	}
	if cfg.Index.Distance == "" {
		cfg.Index.Distance = "INNER_PRODUCT"
	}
	// Threads <= 0 means every CPU.
	if cfg.Index.Threads == 0 {
		cfg.Index.Threads = -1
	}
	if cfg.Index.HNSW.M == 0 {
		cfg.Index.HNSW.M = 16
	}
	if cfg.Index.HNSW.EfConstruction == 0 {
		cfg.Index.HNSW.EfConstruction = 200
	}
	if cfg.Index.HNSW.EfSearch == 0 {
		cfg.Index.HNSW.EfSearch = 50
	}
	if cfg.Index.HNSW.Seed == 0 {
		cfg.Index.HNSW.Seed = 42
	}
	if cfg.Index.Whitening.Backend == "" {
		cfg.Index.Whitening.Backend = "hnsw"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Evaluator.Type == "" {
		cfg.Evaluator.Type = "column"
	}
	if cfg.Optimizer.Steps == 0 {
		cfg.Optimizer.Steps = 30
	}
	if cfg.Optimizer.Seed == 0 {
		cfg.Optimizer.Seed = 42
	}
}
