package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/optim"
)

type remoteIndex struct {
	Dims   int          `json:"dims"`
	Bounds [][2]float64 `json:"bounds"`
}

type remoteRun struct {
	ID        string `json:"id"`
	Remaining int    `json:"remaining"`
	Done      bool   `json:"done"`
}

type remoteEvaluation struct {
	State optim.State `json:"state"`
	Done  bool        `json:"done"`
}

// doJSON sends body (if any) to serverURL+path and decodes a 2xx response into out.
func doJSON(ctx context.Context, method, serverURL, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(serverURL, "/")+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// runViaHTTP creates a run on a tansaku server and feeds it proposals until its budget is spent.
func runViaHTTP(ctx context.Context, serverURL string, steps int, proposer optim.Proposer) ([]optim.State, error) {
	var info remoteIndex
	if err := doJSON(ctx, http.MethodGet, serverURL, "/api/v1/index", nil, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch index: %w", err)
	}
	if len(info.Bounds) == 0 {
		return nil, fmt.Errorf("server reported empty bounds")
	}
	bounds := mat.NewDense(len(info.Bounds), 2, nil)
	for j, b := range info.Bounds {
		bounds.Set(j, 0, b[0])
		bounds.Set(j, 1, b[1])
	}

	var run remoteRun
	if err := doJSON(ctx, http.MethodPost, serverURL, "/api/v1/runs", map[string]int{"steps": steps}, &run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	var states []optim.State
	for done := run.Done; !done; {
		query, err := proposer.Propose(ctx, bounds)
		if err != nil {
			return states, err
		}
		var ev remoteEvaluation
		path := "/api/v1/runs/" + run.ID + "/evaluate"
		if err := doJSON(ctx, http.MethodPost, serverURL, path, map[string][]float64{"query": query}, &ev); err != nil {
			return states, fmt.Errorf("step %d: %w", len(states)+1, err)
		}
		states = append(states, ev.State)
		done = ev.Done
	}
	return states, nil
}
