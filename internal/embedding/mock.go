package embedding

import (
	"context"
	"math/rand"

	"github.com/hyperjump/tansaku/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests. The same text always gets the
// same unit-length vector, seeded from the text hash.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &MockEmbedder{dimensions: dimensions}
}

func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(int64(HashString(text))))
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(rng.NormFloat64())
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *MockEmbedder) Close() error {
	return nil
}

// RecordingEmbedder wraps an Embedder and keeps every text it was asked to embed.
type RecordingEmbedder struct {
	Embedder
	Texts []string
}

func (r *RecordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	r.Texts = append(r.Texts, texts...)
	return r.Embedder.EmbedBatch(ctx, texts)
}
