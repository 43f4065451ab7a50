package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/corpus"
	"github.com/hyperjump/tansaku/internal/evaluator"
	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/storage"
)

func newSnapshot(t *testing.T, scores ...float64) *Snapshot {
	t.Helper()
	rows := make([]storage.Row, len(scores))
	data := make([]float64, 0, len(scores)*2)
	for i, s := range scores {
		rows[i] = storage.Row{"score": s}
		data = append(data, float64(i), 0)
	}
	store, err := storage.NewMemoryStorage([]string{"score"}, rows)
	if err != nil {
		t.Fatal(err)
	}
	c, err := corpus.FromEmbeddings(store, mat.NewDense(len(scores), 2, data),
		index.Options{Backend: index.BackendExact, Distance: index.Euclidean})
	if err != nil {
		t.Fatal(err)
	}
	return &Snapshot{Corpus: c, Evaluator: evaluator.NewColumnEvaluator("score")}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return NewServer(newSnapshot(t, 1, 2, 3), &config.ServerConfig{Host: "localhost", Port: 0}, nil)
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
}

func TestIndexInfo(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/api/v1/index", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", w.Code)
	}
	var resp indexResponse
	decode(t, w, &resp)
	if resp.Dims != 2 || resp.Size != 3 || resp.Distance != "EUCLIDEAN" {
		t.Errorf("index=%+v", resp)
	}
	if resp.Bounds[0] != [2]float64{0, 2} {
		t.Errorf("bounds[0]=%v, want [0 2]", resp.Bounds[0])
	}
}

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/v1/search", searchRequest{Query: [][]float64{{1.9, 0}}, K: 2})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200 (%s)", w.Code, w.Body.String())
	}
	var res index.SearchResult
	decode(t, w, &res)
	if len(res.Indices) != 1 || len(res.Indices[0]) != 2 || res.Indices[0][0] != 2 || res.Indices[0][1] != 1 {
		t.Errorf("indices=%v, want [[2 1]]", res.Indices)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/history", nil)
	var hist struct {
		History []index.HistoryEntry `json:"history"`
	}
	decode(t, w, &hist)
	if len(hist.History) != 1 {
		t.Errorf("history length=%d, want 1", len(hist.History))
	}
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"wrong dims", searchRequest{Query: [][]float64{{1, 2, 3}}, K: 1}},
		{"k too large", searchRequest{Query: [][]float64{{1, 2}}, K: 4}},
		{"empty query", searchRequest{K: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			w := do(t, srv, http.MethodPost, "/api/v1/search", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status=%d, want 400 (%s)", w.Code, w.Body.String())
			}
			if n := srv.Current().Corpus.Index().Len(); n != 0 {
				t.Errorf("history length=%d after failed search, want 0", n)
			}
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/v1/runs", createRunRequest{Steps: 2})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status=%d, want 201", w.Code)
	}
	var created runView
	decode(t, w, &created)
	if created.ID == "" || created.Remaining != 2 || created.Done {
		t.Fatalf("created=%+v", created)
	}

	path := "/api/v1/runs/" + created.ID + "/evaluate"
	var resp evaluateResponse
	w = do(t, srv, http.MethodPost, path, evaluateRequest{Query: []float64{2.2, 0.1}})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status=%d (%s)", w.Code, w.Body.String())
	}
	decode(t, w, &resp)
	if resp.State.Evaluation != 3 || resp.Remaining != 1 || resp.Done {
		t.Errorf("first evaluate=%+v", resp)
	}

	w = do(t, srv, http.MethodPost, path, evaluateRequest{Query: []float64{-1, 0}})
	decode(t, w, &resp)
	if resp.State.Evaluation != 1 || !resp.Done {
		t.Errorf("second evaluate=%+v", resp)
	}

	w = do(t, srv, http.MethodPost, path, evaluateRequest{Query: []float64{0, 0}})
	if w.Code != http.StatusConflict {
		t.Errorf("exhausted status=%d, want 409", w.Code)
	}

	w = do(t, srv, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	var got runView
	decode(t, w, &got)
	if len(got.States) != 2 || got.Remaining != 0 {
		t.Errorf("run=%+v", got)
	}
}

func TestRun_Errors(t *testing.T) {
	srv := newTestServer(t)
	if w := do(t, srv, http.MethodPost, "/api/v1/runs", createRunRequest{Steps: 0}); w.Code != http.StatusBadRequest {
		t.Errorf("zero steps status=%d, want 400", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/runs/missing", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown run status=%d, want 404", w.Code)
	}

	w := do(t, srv, http.MethodPost, "/api/v1/runs", createRunRequest{Steps: 1})
	var created runView
	decode(t, w, &created)
	w = do(t, srv, http.MethodPost, "/api/v1/runs/"+created.ID+"/evaluate", evaluateRequest{Query: []float64{1}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad query status=%d, want 400", w.Code)
	}
	w = do(t, srv, http.MethodGet, "/api/v1/runs/"+created.ID, nil)
	decode(t, w, &created)
	if created.Remaining != 1 {
		t.Errorf("remaining=%d after failed evaluate, want 1", created.Remaining)
	}
}

func TestRun_FinishedRunsEvicted(t *testing.T) {
	srv := NewServer(newSnapshot(t, 1, 2, 3), &config.ServerConfig{RunTTL: time.Minute}, nil)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	srv.now = func() time.Time { return clock }

	create := func(steps int) string {
		t.Helper()
		w := do(t, srv, http.MethodPost, "/api/v1/runs", createRunRequest{Steps: steps})
		var created runView
		decode(t, w, &created)
		return created.ID
	}
	finished := create(1)
	open := create(3)
	w := do(t, srv, http.MethodPost, "/api/v1/runs/"+finished+"/evaluate", evaluateRequest{Query: []float64{0, 0}})
	if w.Code != http.StatusOK {
		t.Fatalf("evaluate status=%d", w.Code)
	}

	clock = clock.Add(30 * time.Second)
	if w := do(t, srv, http.MethodGet, "/api/v1/runs/"+finished, nil); w.Code != http.StatusOK {
		t.Errorf("finished run within ttl status=%d, want 200", w.Code)
	}

	clock = clock.Add(time.Minute)
	create(1)
	srv.runsMu.Lock()
	_, kept := srv.runs[finished]
	n := len(srv.runs)
	srv.runsMu.Unlock()
	if kept || n != 2 {
		t.Errorf("after eviction kept=%v runs=%d, want false 2", kept, n)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/runs/"+finished, nil); w.Code != http.StatusNotFound {
		t.Errorf("expired run status=%d, want 404", w.Code)
	}
	if w := do(t, srv, http.MethodGet, "/api/v1/runs/"+open, nil); w.Code != http.StatusOK {
		t.Errorf("unfinished run status=%d, want 200", w.Code)
	}
}

func TestSwap(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/v1/runs", createRunRequest{Steps: 5})
	var created runView
	decode(t, w, &created)

	srv.Swap(newSnapshot(t, 10, 20))

	w = do(t, srv, http.MethodGet, "/api/v1/index", nil)
	var info indexResponse
	decode(t, w, &info)
	if info.Size != 2 {
		t.Errorf("size=%d after swap, want 2", info.Size)
	}

	var resp evaluateResponse
	w = do(t, srv, http.MethodPost, "/api/v1/runs/"+created.ID+"/evaluate", evaluateRequest{Query: []float64{2, 0}})
	decode(t, w, &resp)
	if resp.State.Evaluation != 3 {
		t.Errorf("existing run evaluation=%v, want 3 from the original corpus", resp.State.Evaluation)
	}
}
