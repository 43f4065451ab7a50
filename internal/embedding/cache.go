package embedding

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache is an LRU cache for embeddings keyed by text.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache creates a cache holding up to size embeddings.
func NewCache(size int) (*Cache, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached embedding for text if present.
func (c *Cache) Get(text string) ([]float32, bool) {
	return c.lru.Get(text)
}

// Set stores the embedding for text, evicting the least recently used entry when full.
func (c *Cache) Set(text string, emb []float32) {
	c.lru.Add(text, emb)
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// CachedEmbedder serves repeated texts from a Cache and forwards misses to the wrapped Embedder.
type CachedEmbedder struct {
	Embedder
	cache *Cache
}

// WithCache wraps e with an LRU cache of the given size.
func WithCache(e Embedder, size int) (*CachedEmbedder, error) {
	c, err := NewCache(size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{Embedder: e, cache: c}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if emb, ok := c.cache.Get(text); ok {
		return emb, nil
	}
	emb, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, emb)
	return emb, nil
}

// EmbedBatch embeds only the texts missing from the cache, in a single call to the wrapped Embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if emb, ok := c.cache.Get(text); ok {
			out[i] = emb
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}
	embs, err := c.Embedder.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embs) != len(missing) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embs), len(missing))
	}
	for j, emb := range embs {
		out[slots[j]] = emb
		c.cache.Set(missing[j], emb)
	}
	return out, nil
}
