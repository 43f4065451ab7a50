// Package evaluator scores corpus rows against a task-specific criterion.
package evaluator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/storage"
)

// Evaluator returns one score per requested row of store, in request order.
type Evaluator interface {
	Evaluate(ctx context.Context, store storage.Storage, rows []int) ([]float64, error)
}

// EvaluateOnCorpus scores rows of c's storage and checks that ev returned one score per row.
func EvaluateOnCorpus(ctx context.Context, ev Evaluator, c *corpus.Corpus, rows []int) ([]float64, error) {
	scores, err := ev.Evaluate(ctx, c.Storage(), rows)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(rows) {
		return nil, fmt.Errorf("evaluator returned %d scores for %d rows", len(scores), len(rows))
	}
	return scores, nil
}

// Option configures an evaluator.
type Option func(*base)

// WithLogger sets the debug logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *base) {
		b.logger = l
	}
}

type base struct {
	logger *zap.Logger
}

func newBase(opts []Option) base {
	b := base{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}
