package index

import (
	"github.com/viant/vec/search"
	"github.com/viterin/vek/vek32"
	"gonum.org/v1/gonum/mat"
)

// Exact scans every row for each query. It shares HNSW's result scale and ordering.
type Exact struct {
	*space
	workers int
}

// NewExact validates embeddings and returns a brute-force index.
func NewExact(embeddings *mat.Dense, distance Distance, threads int) (*Exact, error) {
	sp, err := prepare(embeddings, distance)
	if err != nil {
		return nil, err
	}
	return &Exact{space: sp, workers: workerCount(threads)}, nil
}

func (e *Exact) measure(q search.Float32s, row []float32) float64 {
	if e.distance == InnerProduct {
		return 1 - float64(vek32.Dot(q, row))
	}
	d := float64(q.EuclideanDistance(row))
	return d * d
}

func (e *Exact) knn(q []float32, k int) []candidate {
	qv := search.Float32s(q)
	all := make([]candidate, len(e.rows))
	for i, row := range e.rows {
		all[i] = candidate{id: int32(i), distance: e.measure(qv, row)}
	}
	sortCandidates(all)
	return all[:k]
}

// Search returns the exact k nearest rows for every query.
func (e *Exact) Search(queries [][]float64, k int) (SearchResult, error) {
	if err := e.validateQuery(queries, k); err != nil {
		return SearchResult{}, err
	}
	return searchAll(queries, k, e.workers, e.knn), nil
}
