package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/storage"
)

// ColumnEvaluator reads a precomputed numeric score from one column.
type ColumnEvaluator struct {
	base
	Key string
}

// NewColumnEvaluator scores rows by the value in key.
func NewColumnEvaluator(key string, opts ...Option) *ColumnEvaluator {
	return &ColumnEvaluator{base: newBase(opts), Key: key}
}

func (e *ColumnEvaluator) Evaluate(ctx context.Context, store storage.Storage, rows []int) ([]float64, error) {
	batch, err := store.Select(ctx, rows)
	if err != nil {
		return nil, err
	}
	col, err := batch.Column(e.Key)
	if err != nil {
		return nil, err
	}
	scores := make([]float64, len(col))
	for i, v := range col {
		score, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("row %d column %q: %w", rows[i], e.Key, err)
		}
		scores[i] = score
	}
	e.logger.Debug("column evaluated", zap.String("key", e.Key), zap.Ints("rows", rows), zap.Float64s("scores", scores))
	return scores, nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", x)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported score type %T", v)
	}
}
