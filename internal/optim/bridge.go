// Package optim connects an optimizer's proposed query vectors to corpus evaluation.
package optim

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/evaluator"
	"github.com/hyperjump/tansaku/internal/index"
)

// SingletonK is the number of neighbors one evaluation looks up. Only k=1 is supported here.
const SingletonK = 1

// ErrEmptySearchResult is returned when a result does not hold exactly one query with one match.
var ErrEmptySearchResult = errors.New("optim: search result must hold exactly one match")

// State is the outcome of one evaluation: the search result and its score.
type State struct {
	Result     index.SearchResult `json:"result"`
	Evaluation float64            `json:"evaluation"`
}

// EvaluateFunc scores a search result.
type EvaluateFunc func(ctx context.Context, res index.SearchResult) (float64, error)

// EvaluateIndex searches idx for the single nearest row to query and scores the result with fn.
func EvaluateIndex(ctx context.Context, query []float64, idx index.Index, fn EvaluateFunc) (State, error) {
	res, err := idx.Search([][]float64{query}, SingletonK)
	if err != nil {
		return State{}, err
	}
	score, err := fn(ctx, res)
	if err != nil {
		return State{}, err
	}
	return State{Result: res, Evaluation: score}, nil
}

// EvaluateCorpusFn returns an EvaluateFunc that scores the one matched row of c with ev.
func EvaluateCorpusFn(c *corpus.Corpus, ev evaluator.Evaluator) EvaluateFunc {
	return func(ctx context.Context, res index.SearchResult) (float64, error) {
		row, err := singleRow(res)
		if err != nil {
			return 0, err
		}
		scores, err := evaluator.EvaluateOnCorpus(ctx, ev, c, []int{row})
		if err != nil {
			return 0, fmt.Errorf("failed to evaluate row %d: %w", row, err)
		}
		return scores[0], nil
	}
}

func singleRow(res index.SearchResult) (int, error) {
	if len(res.Indices) != 1 {
		return 0, fmt.Errorf("%w: got %d queries", ErrEmptySearchResult, len(res.Indices))
	}
	if len(res.Indices[0]) != SingletonK {
		return 0, fmt.Errorf("%w: got %d matches", ErrEmptySearchResult, len(res.Indices[0]))
	}
	return res.Indices[0][0], nil
}
