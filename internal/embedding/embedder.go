// Package embedding turns text into vectors and stacks them into embedding matrices.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations must be deterministic
// and return one embedding per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
