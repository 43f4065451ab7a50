package evaluator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/storage"
)

// ChoiceType selects how a chosen answer is scored against the per-choice reference scores.
type ChoiceType string

const (
	// SumOfScores returns the reference score at the chosen index.
	SumOfScores ChoiceType = "SUM_OF_SCORES"
	// ListOfAnswers returns 1 if the chosen answer has a positive reference score, else 0.
	ListOfAnswers ChoiceType = "LIST_OF_ANSWERS"
)

// ParseChoiceType converts a config token into a ChoiceType.
func ParseChoiceType(token string) (ChoiceType, error) {
	switch ChoiceType(token) {
	case SumOfScores, ListOfAnswers:
		return ChoiceType(token), nil
	default:
		return "", fmt.Errorf("unknown choice type: %s (supported: %s, %s)", token, SumOfScores, ListOfAnswers)
	}
}

func (c ChoiceType) score(chosen int, references []float64) float64 {
	if chosen < 0 || chosen >= len(references) {
		return 0
	}
	switch c {
	case ListOfAnswers:
		if references[chosen] > 0 {
			return 1
		}
		return 0
	default:
		return references[chosen]
	}
}

// Chooser is a language model that answers numbered multiple-choice prompts.
// Choose returns, for every prompt, the 0-based index of the chosen answer among numChoices.
type Chooser interface {
	Choose(ctx context.Context, prompts []string, numChoices int) ([]int, error)
}

// NumericChoices renders a question and its choices as a prompt answered by number.
func NumericChoices(question string, choices []string) string {
	var b strings.Builder
	b.WriteString(question)
	b.WriteString("\nSelect from one of the following (answer in number):")
	for i, c := range choices {
		fmt.Fprintf(&b, "\n%d) %s", i+1, c)
	}
	return b.String()
}

// MultipleChoiceKeys names the columns a MultipleChoiceEvaluator reads.
type MultipleChoiceKeys struct {
	Inputs  string
	Targets string
	Scores  string
}

// DefaultMultipleChoiceKeys are the BIG-bench column names.
var DefaultMultipleChoiceKeys = MultipleChoiceKeys{
	Inputs:  "inputs",
	Targets: "multiple_choice_targets",
	Scores:  "multiple_choice_scores",
}

// MultipleChoiceEvaluator asks a Chooser to answer each row's question and scores the answer.
type MultipleChoiceEvaluator struct {
	base
	keys       MultipleChoiceKeys
	choiceType ChoiceType
	chooser    Chooser
}

// NewMultipleChoiceEvaluator returns an evaluator reading the given columns.
func NewMultipleChoiceEvaluator(chooser Chooser, keys MultipleChoiceKeys, choiceType ChoiceType, opts ...Option) *MultipleChoiceEvaluator {
	if choiceType == "" {
		choiceType = SumOfScores
	}
	return &MultipleChoiceEvaluator{base: newBase(opts), keys: keys, choiceType: choiceType, chooser: chooser}
}

func (e *MultipleChoiceEvaluator) Evaluate(ctx context.Context, store storage.Storage, rows []int) ([]float64, error) {
	batch, err := store.Select(ctx, rows)
	if err != nil {
		return nil, err
	}
	inputs, err := batch.Column(e.keys.Inputs)
	if err != nil {
		return nil, err
	}
	targets, err := batch.Column(e.keys.Targets)
	if err != nil {
		return nil, err
	}
	scores, err := batch.Column(e.keys.Scores)
	if err != nil {
		return nil, err
	}

	prompts := make([]string, len(rows))
	references := make([][]float64, len(rows))
	numChoices := -1
	for i := range rows {
		question, ok := inputs[i].(string)
		if !ok {
			return nil, fmt.Errorf("row %d: inputs must be a string, got %T", rows[i], inputs[i])
		}
		choices, err := stringList(targets[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: multiple choice targets: %w", rows[i], err)
		}
		refs, err := floatList(scores[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: multiple choice scores: %w", rows[i], err)
		}
		if len(refs) == 0 {
			return nil, fmt.Errorf("row %d: multiple choice scores must not be empty", rows[i])
		}
		if numChoices >= 0 && len(refs) != numChoices {
			return nil, fmt.Errorf("all questions must have the same number of choices, got %d and %d", numChoices, len(refs))
		}
		numChoices = len(refs)
		prompts[i] = NumericChoices(question, choices)
		references[i] = refs
	}
	if len(rows) == 0 {
		return []float64{}, nil
	}

	chosen, err := e.chooser.Choose(ctx, prompts, numChoices)
	if err != nil {
		return nil, fmt.Errorf("failed to choose answers: %w", err)
	}
	if len(chosen) != len(prompts) {
		return nil, fmt.Errorf("chooser returned %d answers for %d prompts", len(chosen), len(prompts))
	}

	out := make([]float64, len(rows))
	for i, c := range chosen {
		out[i] = e.choiceType.score(c, references[i])
	}
	e.logger.Debug("multiple choice evaluated",
		zap.String("choice_type", string(e.choiceType)),
		zap.Ints("rows", rows),
		zap.Ints("chosen", chosen),
		zap.Float64s("scores", out),
	)
	return out, nil
}

func stringList(v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("item %d is %T, want string", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T, want a list of strings", v)
	}
}

func floatList(v any) ([]float64, error) {
	switch x := v.(type) {
	case []float64:
		return x, nil
	case []any:
		out := make([]float64, len(x))
		for i, item := range x {
			if _, ok := item.(string); ok {
				return nil, fmt.Errorf("item %d is a string, want a number", i)
			}
			f, err := toFloat(item)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("got %T, want a list of numbers", v)
	}
}
