package main

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/evaluator"
	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/server"
	"github.com/hyperjump/tansaku/internal/storage"
)

// app owns the embedder and every store opened for it. Stores outlive rebuilds because
// runs started before a rebuild keep reading from them.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embedding.Embedder

	mu     sync.Mutex
	stores []storage.Storage
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.Corpus.Source == "" {
		return nil, fmt.Errorf("corpus.source is not set")
	}
	e, err := embedding.New(cfg.Embedding.Provider, embedding.ONNXConfig{
		ModelPath:  cfg.Embedding.ModelPath,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return &app{cfg: cfg, logger: logger, embedder: e}, nil
}

// build loads the corpus source, embeds it and pairs it with the configured evaluator.
func (a *app) build(ctx context.Context) (*server.Snapshot, error) {
	store, err := storage.Open(ctx, a.cfg.Corpus.Source, storage.OpenOptions{Sheet: a.cfg.Corpus.Sheet})
	if err != nil {
		return nil, err
	}
	snap, err := a.buildFrom(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	a.mu.Lock()
	a.stores = append(a.stores, store)
	a.mu.Unlock()
	return snap, nil
}

func (a *app) buildFrom(ctx context.Context, store storage.Storage) (*server.Snapshot, error) {
	idxOpts, err := indexOptions(&a.cfg.Index)
	if err != nil {
		return nil, err
	}
	keys := a.cfg.Corpus.Keys
	if len(keys) == 0 {
		keys = store.Keys()
	}
	sep := a.cfg.Corpus.Separator
	c, err := corpus.FromKeys(ctx, store, a.embedder, keys, idxOpts,
		corpus.WithJoin(func(values []string) string { return strings.Join(values, sep) }),
		corpus.WithBatchSize(a.cfg.Corpus.BatchSize),
		corpus.WithLogger(a.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build corpus: %w", err)
	}
	ev, err := buildEvaluator(ctx, &a.cfg.Evaluator, store, a.logger)
	if err != nil {
		return nil, err
	}
	a.logger.Info("corpus ready",
		zap.String("source", a.cfg.Corpus.Source),
		zap.Int("rows", c.Len()),
		zap.Int("dims", c.Index().Dims()),
		zap.String("backend", string(idxOpts.Backend)),
	)
	return &server.Snapshot{Corpus: c, Evaluator: ev}, nil
}

func (a *app) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range a.stores {
		_ = s.Close()
	}
	a.stores = nil
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
}

func indexOptions(cfg *config.IndexConfig) (index.Options, error) {
	backend, err := index.ParseBackend(cfg.Backend)
	if err != nil {
		return index.Options{}, err
	}
	distance, err := index.ParseDistance(cfg.Distance)
	if err != nil {
		return index.Options{}, err
	}
	opts := index.Options{
		Backend:  backend,
		Distance: distance,
		Threads:  cfg.Threads,
		HNSW: index.HNSWConfig{
			M:              cfg.HNSW.M,
			EfConstruction: cfg.HNSW.EfConstruction,
			EfSearch:       cfg.HNSW.EfSearch,
			Seed:           cfg.HNSW.Seed,
		},
	}
	if backend == index.BackendWhitening {
		inner, err := index.ParseBackend(cfg.Whitening.Backend)
		if err != nil {
			return index.Options{}, fmt.Errorf("whitening: %w", err)
		}
		opts.Whitening = index.WhiteningConfig{Remains: cfg.Whitening.Remains, Backend: inner}
	}
	return opts, nil
}

func buildEvaluator(ctx context.Context, cfg *config.EvaluatorConfig, store storage.Storage, logger *zap.Logger) (evaluator.Evaluator, error) {
	switch cfg.Type {
	case "column", "":
		if cfg.Key == "" {
			return nil, fmt.Errorf("column evaluator needs evaluator.key")
		}
		return evaluator.NewColumnEvaluator(cfg.Key, evaluator.WithLogger(logger)), nil
	case "keyword":
		keys := cfg.Keys
		if len(keys) == 0 {
			keys = store.Keys()
		}
		ev, err := evaluator.NewKeywordEvaluator(ctx, store, evaluator.KeywordOptions{
			Keys:      keys,
			Target:    cfg.Target,
			Fuzziness: cfg.Fuzziness,
		}, evaluator.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to build keyword evaluator: %w", err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown evaluator type: %s (supported: column, keyword)", cfg.Type)
	}
}
