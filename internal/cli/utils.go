// Package cli formats tansaku results for the terminal.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/optim"
	"github.com/hyperjump/tansaku/internal/storage"
	"github.com/hyperjump/tansaku/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one tab-separated line per result.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "compact" or "json"; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(s)) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, compact, json)", s)
	}
}

const previewLen = 120

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResult writes res to w. In text mode each match is followed by a preview of
// its row from store; store may be nil.
func WriteSearchResult(ctx context.Context, w io.Writer, res index.SearchResult, store storage.Storage, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		for q := range res.Indices {
			for rank, row := range res.Indices[q] {
				fmt.Fprintf(w, "%d\t%d\t%d\t%.6f\n", q, rank+1, row, res.Distances[q][rank])
			}
		}
		return nil
	}
	for q := range res.Indices {
		fmt.Fprintf(w, "\nQuery %d: %d matches\n", q, len(res.Indices[q]))
		for rank, row := range res.Indices[q] {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "Rank: %d | Row: %d | Distance: %.4f\n", rank+1, row, res.Distances[q][rank])
			if store != nil {
				writeRowPreview(ctx, w, store, row)
			}
		}
	}
	fmt.Fprintln(w)
	return nil
}

func writeRowPreview(ctx context.Context, w io.Writer, store storage.Storage, row int) {
	r, err := store.Get(ctx, row)
	if err != nil {
		return
	}
	for _, key := range store.Keys() {
		fmt.Fprintf(w, "  %s: %s\n", key, utils.Truncate(fmt.Sprint(r[key]), previewLen))
	}
}

type stateView struct {
	Step       int     `json:"step"`
	Row        int     `json:"row"`
	Distance   float64 `json:"distance"`
	Evaluation float64 `json:"evaluation"`
}

type runSummary struct {
	States []stateView `json:"states"`
	Best   *stateView  `json:"best,omitempty"`
}

func summarize(states []optim.State) runSummary {
	sum := runSummary{States: make([]stateView, 0, len(states))}
	for i, s := range states {
		v := stateView{Step: i + 1, Row: -1, Evaluation: s.Evaluation}
		if len(s.Result.Indices) > 0 && len(s.Result.Indices[0]) > 0 {
			v.Row = s.Result.Indices[0][0]
			v.Distance = s.Result.Distances[0][0]
		}
		sum.States = append(sum.States, v)
	}
	if len(states) > 0 {
		_, best := optim.Best(states)
		b := sum.States[best]
		sum.Best = &b
	}
	return sum
}

// WriteStates writes one line per optimizer step and the best step.
func WriteStates(w io.Writer, states []optim.State, format OutputFormat) error {
	sum := summarize(states)
	switch format {
	case OutputJSON:
		return writeJSON(w, sum)
	case OutputCompact:
		for _, s := range sum.States {
			fmt.Fprintf(w, "%d\t%d\t%.6f\t%.6f\n", s.Step, s.Row, s.Distance, s.Evaluation)
		}
		return nil
	}
	fmt.Fprintf(w, "%-6s %-8s %-12s %s\n", "STEP", "ROW", "DISTANCE", "EVALUATION")
	for _, s := range sum.States {
		fmt.Fprintf(w, "%-6d %-8d %-12.4f %.4f\n", s.Step, s.Row, s.Distance, s.Evaluation)
	}
	if sum.Best != nil {
		fmt.Fprintf(w, "\nBest: step %d, row %d, evaluation %.4f\n", sum.Best.Step, sum.Best.Row, sum.Best.Evaluation)
	}
	return nil
}

// WriteBounds writes the per-dimension lower and upper bounds of a D×2 matrix.
func WriteBounds(w io.Writer, bounds *mat.Dense, format OutputFormat) error {
	r, _ := bounds.Dims()
	rows := make([][2]float64, r)
	for j := range rows {
		rows[j] = [2]float64{bounds.At(j, 0), bounds.At(j, 1)}
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]any{"bounds": rows})
	case OutputCompact:
		for j, b := range rows {
			fmt.Fprintf(w, "%d\t%.6f\t%.6f\n", j, b[0], b[1])
		}
		return nil
	}
	fmt.Fprintf(w, "%-6s %-14s %s\n", "DIM", "LOWER", "UPPER")
	for j, b := range rows {
		fmt.Fprintf(w, "%-6d %-14.6f %.6f\n", j, b[0], b[1])
	}
	return nil
}
