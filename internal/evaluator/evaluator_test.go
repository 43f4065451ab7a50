package evaluator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/storage"
)

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewMemoryStorage([]string{"title", "body", "score"}, []storage.Row{
		{"title": "bayesian optimization", "body": "gaussian process surrogate", "score": 0.25},
		{"title": "vector search", "body": "hnsw graph for nearest neighbors", "score": "0.75"},
		{"title": "cooking", "body": "a recipe for bread", "score": 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestColumnEvaluator(t *testing.T) {
	ev := NewColumnEvaluator("score")
	got, err := ev.Evaluate(context.Background(), newStore(t), []int{2, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{3, 0.25, 0.75}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("scores=%v, want %v", got, want)
			break
		}
	}

	if _, err := NewColumnEvaluator("title").Evaluate(context.Background(), newStore(t), []int{0}); err == nil {
		t.Error("expected error for non-numeric column")
	}
	if _, err := NewColumnEvaluator("missing").Evaluate(context.Background(), newStore(t), []int{0}); !errors.Is(err, storage.ErrUnknownKey) {
		t.Errorf("err=%v, want ErrUnknownKey", err)
	}
}

func TestKeywordEvaluator(t *testing.T) {
	store := newStore(t)
	ev, err := NewKeywordEvaluator(context.Background(), store, KeywordOptions{
		Keys:   []string{"title", "body"},
		Target: "nearest neighbors graph",
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), store, []int{0, 1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if got[1] <= 0 {
		t.Errorf("matching row score=%v, want > 0", got[1])
	}
	if got[0] != 0 || got[2] != 0 {
		t.Errorf("non-matching rows scored %v and %v, want 0", got[0], got[2])
	}

	if _, err := ev.Evaluate(context.Background(), store, []int{3}); !errors.Is(err, storage.ErrRowOutOfRange) {
		t.Errorf("err=%v, want ErrRowOutOfRange", err)
	}
}

func TestKeywordEvaluator_Fuzzy(t *testing.T) {
	store := newStore(t)
	ev, err := NewKeywordEvaluator(context.Background(), store, KeywordOptions{
		Keys:      []string{"body"},
		Target:    "bred",
		Fuzziness: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	got, err := ev.Evaluate(context.Background(), store, []int{2})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] <= 0 {
		t.Errorf("fuzzy match score=%v, want > 0", got[0])
	}
}

func TestKeywordEvaluator_Invalid(t *testing.T) {
	store := newStore(t)
	if _, err := NewKeywordEvaluator(context.Background(), store, KeywordOptions{Target: "x"}); err == nil {
		t.Error("expected error without keys")
	}
	if _, err := NewKeywordEvaluator(context.Background(), store, KeywordOptions{Keys: []string{"body"}}); err == nil {
		t.Error("expected error without target")
	}
}

type fixedChooser struct {
	answers []int
	prompts []string
	choices int
}

func (f *fixedChooser) Choose(_ context.Context, prompts []string, numChoices int) ([]int, error) {
	f.prompts = prompts
	f.choices = numChoices
	return f.answers[:len(prompts)], nil
}

func newChoiceStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewMemoryStorage([]string{"inputs", "multiple_choice_targets", "multiple_choice_scores"}, []storage.Row{
		{"inputs": "2+2?", "multiple_choice_targets": []any{"3", "4"}, "multiple_choice_scores": []any{0.0, 1.0}},
		{"inputs": "sky?", "multiple_choice_targets": []any{"blue", "green"}, "multiple_choice_scores": []any{1.0, 0.0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestMultipleChoiceEvaluator(t *testing.T) {
	tests := []struct {
		name       string
		choiceType ChoiceType
		answers    []int
		want       []float64
	}{
		{"sum of scores", SumOfScores, []int{1, 1}, []float64{1, 0}},
		{"list of answers", ListOfAnswers, []int{1, 0}, []float64{1, 1}},
		{"out of range", SumOfScores, []int{5, -1}, []float64{0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fixedChooser{answers: tt.answers}
			ev := NewMultipleChoiceEvaluator(ch, DefaultMultipleChoiceKeys, tt.choiceType)
			got, err := ev.Evaluate(context.Background(), newChoiceStore(t), []int{0, 1})
			if err != nil {
				t.Fatal(err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("scores=%v, want %v", got, tt.want)
					break
				}
			}
			if ch.choices != 2 {
				t.Errorf("numChoices=%d, want 2", ch.choices)
			}
		})
	}
}

func TestMultipleChoiceEvaluator_UnevenChoices(t *testing.T) {
	s, err := storage.NewMemoryStorage([]string{"inputs", "multiple_choice_targets", "multiple_choice_scores"}, []storage.Row{
		{"inputs": "a", "multiple_choice_targets": []any{"x", "y"}, "multiple_choice_scores": []any{0.0, 1.0}},
		{"inputs": "b", "multiple_choice_targets": []any{"x"}, "multiple_choice_scores": []any{1.0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	ev := NewMultipleChoiceEvaluator(&fixedChooser{answers: []int{0, 0}}, DefaultMultipleChoiceKeys, SumOfScores)
	if _, err := ev.Evaluate(context.Background(), s, []int{0, 1}); err == nil {
		t.Error("expected error for uneven choice counts")
	}
}

func TestNumericChoices(t *testing.T) {
	got := NumericChoices("Pick one", []string{"red", "blue"})
	want := "Pick one\nSelect from one of the following (answer in number):\n1) red\n2) blue"
	if got != want {
		t.Errorf("NumericChoices=%q, want %q", got, want)
	}
}

func TestParseChoiceType(t *testing.T) {
	if _, err := ParseChoiceType("LIST_OF_ANSWERS"); err != nil {
		t.Error(err)
	}
	if _, err := ParseChoiceType("list_of_answers"); err == nil {
		t.Error("expected error for lowercase token")
	}
}

type shortEvaluator struct{}

func (shortEvaluator) Evaluate(context.Context, storage.Storage, []int) ([]float64, error) {
	return nil, nil
}

func TestEvaluateOnCorpus(t *testing.T) {
	store := newStore(t)
	c, err := corpus.FromEmbeddings(store, mat.NewDense(3, 1, []float64{1, 2, 3}), index.Options{Backend: index.BackendExact, Distance: index.Euclidean})
	if err != nil {
		t.Fatal(err)
	}
	got, err := EvaluateOnCorpus(context.Background(), NewColumnEvaluator("score"), c, []int{1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != 0.75 {
		t.Errorf("scores=%v, want [0.75]", got)
	}

	_, err = EvaluateOnCorpus(context.Background(), shortEvaluator{}, c, []int{0})
	if err == nil || !strings.Contains(err.Error(), "0 scores for 1 rows") {
		t.Errorf("err=%v, want count mismatch", err)
	}
}
