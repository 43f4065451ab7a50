// Package index builds searchable structures over a fixed embedding matrix.
package index

import (
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Index is a k-nearest-neighbor structure over an immutable embedding matrix.
type Index interface {
	// Embeddings returns the N×D matrix the index was built over. Callers must not modify it.
	Embeddings() *mat.Dense
	Distance() Distance
	Dims() int
	// Bounds returns a D×2 matrix of per-dimension minimum and maximum.
	Bounds() *mat.Dense
	// Search returns exactly k rows per query, closest first in the distance's native scale.
	Search(queries [][]float64, k int) (SearchResult, error)
}

// SearchResult holds one entry per query row. Indices and Distances hold k entries each.
type SearchResult struct {
	Query     [][]float64 `json:"query"`
	Indices   [][]int     `json:"indices"`
	Distances [][]float64 `json:"distances"`
}

// clone returns a copy of r that shares no slices with it.
func (r SearchResult) clone() SearchResult {
	return SearchResult{
		Query:     cloneRows(r.Query),
		Indices:   cloneRows(r.Indices),
		Distances: cloneRows(r.Distances),
	}
}

func cloneRows[T any](rows [][]T) [][]T {
	if rows == nil {
		return nil
	}
	out := make([][]T, len(rows))
	for i, row := range rows {
		out[i] = append([]T(nil), row...)
	}
	return out
}

// Backend selects a concrete Index implementation.
type Backend string

const (
	BackendHNSW      Backend = "hnsw"
	BackendExact     Backend = "exact"
	BackendWhitening Backend = "whitening"
	BackendFAISS     Backend = "faiss"
)

// ParseBackend converts a config token into a Backend.
func ParseBackend(token string) (Backend, error) {
	switch Backend(token) {
	case BackendHNSW, BackendExact, BackendWhitening, BackendFAISS:
		return Backend(token), nil
	default:
		return "", fmt.Errorf("%w: %s (supported: %s, %s, %s, %s)", ErrUnknownBackend, token, BackendHNSW, BackendExact, BackendWhitening, BackendFAISS)
	}
}

// WhiteningConfig configures the reduced-dimensionality wrapper.
type WhiteningConfig struct {
	// Remains is the number of principal components kept.
	Remains int
	// Backend is built over the whitened matrix. It must not be BackendWhitening.
	Backend Backend
}

// Options selects and configures a backend for New.
type Options struct {
	Backend   Backend
	Distance  Distance
	Threads   int
	HNSW      HNSWConfig
	Whitening WhiteningConfig
}

// New builds the backend named by opts.Backend. An empty backend means HNSW.
func New(embeddings *mat.Dense, opts Options) (Index, error) {
	switch opts.Backend {
	case BackendHNSW, "":
		h, err := NewHNSW(embeddings, opts.Distance, opts.HNSW, opts.Threads)
		if err != nil {
			return nil, err
		}
		return h, nil
	case BackendExact:
		e, err := NewExact(embeddings, opts.Distance, opts.Threads)
		if err != nil {
			return nil, err
		}
		return e, nil
	case BackendFAISS:
		f, err := NewFAISS(embeddings, opts.Distance)
		if err != nil {
			return nil, err
		}
		return f, nil
	case BackendWhitening:
		inner := opts
		inner.Backend = opts.Whitening.Backend
		if inner.Backend == BackendWhitening {
			return nil, fmt.Errorf("%w: whitening cannot wrap itself", ErrUnknownBackend)
		}
		w, err := NewWhitening(embeddings, opts.Distance, opts.Whitening.Remains, func(whitened *mat.Dense) (Index, error) {
			return New(whitened, inner)
		})
		if err != nil {
			return nil, err
		}
		return w, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// searchAll runs knn for every query on up to workers goroutines and assembles the result.
func searchAll(queries [][]float64, k, workers int, knn func(q []float32, k int) []candidate) SearchResult {
	res := SearchResult{
		Query:     make([][]float64, len(queries)),
		Indices:   make([][]int, len(queries)),
		Distances: make([][]float64, len(queries)),
	}

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, q := range queries {
		i, q := i, q
		res.Query[i] = append([]float64(nil), q...)
		g.Go(func() error {
			found := knn(toFloat32(q), k)
			ids := make([]int, len(found))
			dists := make([]float64, len(found))
			for j, c := range found {
				ids[j] = int(c.id)
				dists[j] = c.distance
			}
			res.Indices[i] = ids
			res.Distances[i] = dists
			return nil
		})
	}
	_ = g.Wait()
	return res
}
