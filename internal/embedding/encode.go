package embedding

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/storage"
)

// DefaultBatchSize is the number of rows EncodeStorage embeds per EmbedBatch call.
const DefaultBatchSize = 64

// ErrNoTexts is returned when there is nothing to encode.
var ErrNoTexts = errors.New("embedding: no texts to encode")

// Transform maps a column batch to exactly one string per row, in row order.
type Transform func(batch storage.Batch) ([]string, error)

// Encode embeds texts and stacks the vectors into an N×D matrix.
func Encode(ctx context.Context, e Embedder, texts []string) (*mat.Dense, error) {
	if len(texts) == 0 {
		return nil, ErrNoTexts
	}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	return stack(vecs, e.Dimensions())
}

// EncodeStorage walks store in batches of batchSize rows, applies transform to each batch
// and embeds the result. Row i of the matrix corresponds to row i of the store.
func EncodeStorage(ctx context.Context, e Embedder, store storage.Storage, transform Transform, batchSize int) (*mat.Dense, error) {
	n := store.Len()
	if n == 0 {
		return nil, ErrNoTexts
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	vecs := make([][]float32, 0, n)
	for start := 0; start < n; start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows := storage.Range(start, start+batchSize, n)
		batch, err := store.Select(ctx, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to select rows %d-%d: %w", start, start+len(rows)-1, err)
		}
		texts, err := transform(batch)
		if err != nil {
			return nil, fmt.Errorf("failed to transform rows %d-%d: %w", start, start+len(rows)-1, err)
		}
		if len(texts) != len(rows) {
			return nil, fmt.Errorf("transform returned %d strings for %d rows", len(texts), len(rows))
		}
		out, err := e.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed rows %d-%d: %w", start, start+len(rows)-1, err)
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(out), len(texts))
		}
		vecs = append(vecs, out...)
	}
	return stack(vecs, e.Dimensions())
}

func stack(vecs [][]float32, dims int) (*mat.Dense, error) {
	data := make([]float64, 0, len(vecs)*dims)
	for i, v := range vecs {
		if len(v) != dims {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d", i, len(v), dims)
		}
		for _, x := range v {
			data = append(data, float64(x))
		}
	}
	return mat.NewDense(len(vecs), dims, data), nil
}
