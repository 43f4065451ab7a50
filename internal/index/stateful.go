package index

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// HistoryEntry records one successful search.
type HistoryEntry struct {
	Query  [][]float64  `json:"query"`
	Result SearchResult `json:"result"`
}

// StatefulIndex wraps an Index and records every successful search in call order.
type StatefulIndex struct {
	inner Index

	mu      sync.Mutex
	history []HistoryEntry
}

// NewStatefulIndex takes ownership of idx.
func NewStatefulIndex(idx Index) *StatefulIndex {
	return &StatefulIndex{inner: idx}
}

func (s *StatefulIndex) Embeddings() *mat.Dense { return s.inner.Embeddings() }

func (s *StatefulIndex) Distance() Distance { return s.inner.Distance() }

func (s *StatefulIndex) Dims() int { return s.inner.Dims() }

func (s *StatefulIndex) Bounds() *mat.Dense { return s.inner.Bounds() }

// Unwrap returns the wrapped index.
func (s *StatefulIndex) Unwrap() Index { return s.inner }

// Search forwards to the wrapped index and appends the query and result to the history.
// A failed search leaves the history unchanged.
func (s *StatefulIndex) Search(queries [][]float64, k int) (SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.inner.Search(queries, k)
	if err != nil {
		return SearchResult{}, err
	}
	rec := res.clone()
	s.history = append(s.history, HistoryEntry{Query: rec.Query, Result: rec})
	return res, nil
}

// History returns a copy of the recorded searches, oldest first.
func (s *StatefulIndex) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryEntry(nil), s.history...)
}

// Len returns the number of recorded searches.
func (s *StatefulIndex) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
