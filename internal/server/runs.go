package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/optim"
)

// run is one optimizer session with its own step budget.
type run struct {
	id       string
	snapshot *Snapshot
	evaluate optim.EvaluateFunc

	mu        sync.Mutex
	remaining *optim.RemainingSteps
	states    []optim.State
	finished  time.Time
}

type runView struct {
	ID        string        `json:"id"`
	Remaining int           `json:"remaining"`
	Done      bool          `json:"done"`
	States    []optim.State `json:"states"`
}

func (s *Server) newRun(snap *Snapshot, steps int) *run {
	r := &run{
		id:        uuid.New().String(),
		snapshot:  snap,
		evaluate:  optim.EvaluateCorpusFn(snap.Corpus, snap.Evaluator),
		remaining: optim.NewRemainingSteps(steps),
	}
	s.runsMu.Lock()
	s.evictLocked()
	s.runs[r.id] = r
	s.runsMu.Unlock()
	return r
}

// getRun returns a live run. A finished run older than the TTL is evicted and reported
// missing.
func (s *Server) getRun(id string) (*run, bool) {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()
	r, ok := s.runs[id]
	if ok && r.expired(s.now().Add(-s.runTTL)) {
		delete(s.runs, id)
		return nil, false
	}
	return r, ok
}

// evictLocked drops finished runs older than the TTL. Unfinished runs are kept.
func (s *Server) evictLocked() {
	cutoff := s.now().Add(-s.runTTL)
	for id, r := range s.runs {
		if r.expired(cutoff) {
			delete(s.runs, id)
			s.logger.Debug("run evicted", zap.String("run", id))
		}
	}
}

func (r *run) expired(cutoff time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.finished.IsZero() && r.finished.Before(cutoff)
}

func (r *run) view() runView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return runView{
		ID:        r.id,
		Remaining: r.remaining.Count(),
		Done:      r.remaining.Done(),
		States:    append([]optim.State{}, r.states...),
	}
}

// step evaluates query once and consumes one unit of budget. It reports errRunDone
// when the budget is exhausted.
func (r *run) step(ctx context.Context, query []float64, now time.Time) (optim.State, runView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.remaining.Done() {
		return optim.State{}, runView{}, errRunDone
	}
	state, err := optim.EvaluateIndex(ctx, query, r.snapshot.Corpus.Index(), r.evaluate)
	if err != nil {
		return optim.State{}, runView{}, err
	}
	r.states = append(r.states, state)
	r.remaining.Step()
	if r.remaining.Done() {
		r.finished = now
	}
	return state, runView{ID: r.id, Remaining: r.remaining.Count(), Done: r.remaining.Done()}, nil
}
