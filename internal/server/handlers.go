package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tansaku/internal/index"
	"github.com/hyperjump/tansaku/internal/optim"
)

var errRunDone = errors.New("run has no remaining steps")

type searchRequest struct {
	Query [][]float64 `json:"query"`
	K     int         `json:"k"`
}

type createRunRequest struct {
	Steps int `json:"steps"`
}

type evaluateRequest struct {
	Query []float64 `json:"query"`
}

type evaluateResponse struct {
	State     optim.State `json:"state"`
	Remaining int         `json:"remaining"`
	Done      bool        `json:"done"`
}

type indexResponse struct {
	Dims     int          `json:"dims"`
	Distance string       `json:"distance"`
	Size     int          `json:"size"`
	Bounds   [][2]float64 `json:"bounds"`
	Searches int          `json:"searches"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	c := s.Current().Corpus
	idx := c.Index()
	b := idx.Bounds()
	bounds := make([][2]float64, idx.Dims())
	for j := range bounds {
		bounds[j] = [2]float64{b.At(j, 0), b.At(j, 1)}
	}
	s.respondJSON(w, http.StatusOK, indexResponse{
		Dims:     idx.Dims(),
		Distance: idx.Distance().String(),
		Size:     c.Len(),
		Bounds:   bounds,
		Searches: idx.Len(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Query) == 0 {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.K == 0 {
		req.K = 1
	}
	s.logger.Debug("search request", zap.Int("queries", len(req.Query)), zap.Int("k", req.K))
	res, err := s.Current().Corpus.Index().Search(req.Query, req.K)
	if err != nil {
		s.respondFailure(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist := s.Current().Corpus.Index().History()
	if hist == nil {
		hist = []index.HistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"history": hist})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Steps <= 0 {
		s.respondError(w, http.StatusBadRequest, "steps must be positive")
		return
	}
	snap := s.Current()
	if err := optim.CheckBounds(snap.Corpus.Index()); err != nil {
		s.respondFailure(w, "bounds check failed", err)
		return
	}
	run := s.newRun(snap, req.Steps)
	s.logger.Debug("run created", zap.String("id", run.id), zap.Int("steps", req.Steps))
	s.respondJSON(w, http.StatusCreated, run.view())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	s.respondJSON(w, http.StatusOK, run.view())
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	run, ok := s.getRun(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	state, view, err := run.step(r.Context(), req.Query, s.now())
	if err != nil {
		s.respondFailure(w, "evaluation failed", err)
		return
	}
	s.logger.Debug("run evaluated",
		zap.String("id", run.id),
		zap.Int("row", state.Result.Indices[0][0]),
		zap.Float64("evaluation", state.Evaluation),
		zap.Int("remaining", view.Remaining),
	)
	s.respondJSON(w, http.StatusOK, evaluateResponse{State: state, Remaining: view.Remaining, Done: view.Done})
}

// respondFailure maps caller mistakes to 4xx and everything else to 500.
func (s *Server) respondFailure(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, errRunDone):
		s.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, index.ErrDimensionMismatch),
		errors.Is(err, index.ErrInvalidK),
		errors.Is(err, index.ErrInvalidQuery),
		errors.Is(err, optim.ErrInvalidBounds),
		errors.Is(err, optim.ErrEmptySearchResult):
		s.respondError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
