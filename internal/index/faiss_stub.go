//go:build !faiss || !cgo
// +build !faiss !cgo

package index

import "gonum.org/v1/gonum/mat"

// FAISS is unavailable in this build. Build with -tags=faiss to enable it.
type FAISS struct {
	*space
}

// NewFAISS returns ErrFAISSUnavailable.
func NewFAISS(embeddings *mat.Dense, distance Distance) (*FAISS, error) {
	return nil, ErrFAISSUnavailable
}

func (f *FAISS) Search(queries [][]float64, k int) (SearchResult, error) {
	return SearchResult{}, ErrFAISSUnavailable
}
