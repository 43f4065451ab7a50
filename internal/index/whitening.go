package index

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// singularTolerance is the smallest kept singular value relative to the largest.
const singularTolerance = 1e-12

// Whitening projects centred embeddings onto their top principal components, scaled to
// unit variance, and serves searches from an inner backend built over the result.
// Dims and Bounds describe the whitened space, and queries are expected in it.
type Whitening struct {
	Index
	mean   []float64
	kernel *mat.Dense
}

// NewWhitening builds an inner index over the whitened matrix. remains must lie in [1, D].
func NewWhitening(embeddings *mat.Dense, distance Distance, remains int, inner func(*mat.Dense) (Index, error)) (*Whitening, error) {
	if !distance.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDistance, string(distance))
	}
	if err := validateEmbeddings(embeddings); err != nil {
		return nil, err
	}
	n, d := embeddings.Dims()
	if remains < 1 || remains > d {
		return nil, fmt.Errorf("%w: remains=%d outside [1, %d]", ErrInvalidEmbedding, remains, d)
	}

	mean := make([]float64, d)
	for j := range mean {
		mean[j] = mat.Sum(embeddings.ColView(j)) / float64(n)
	}
	centred := mat.NewDense(n, d, nil)
	centred.Apply(func(_, j int, v float64) float64 { return v - mean[j] }, embeddings)

	var cov mat.Dense
	cov.Mul(centred.T(), centred)
	cov.Scale(1/float64(n), &cov)

	var svd mat.SVD
	if ok := svd.Factorize(&cov, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: covariance factorization failed", ErrDegenerateEmbedding)
	}
	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	kernel := mat.NewDense(d, remains, nil)
	for j := 0; j < remains; j++ {
		if values[j] <= singularTolerance*values[0] || values[j] <= 0 {
			return nil, fmt.Errorf("%w: component %d has singular value %v", ErrDegenerateEmbedding, j, values[j])
		}
		scale := 1 / math.Sqrt(values[j])
		for i := 0; i < d; i++ {
			kernel.Set(i, j, u.At(i, j)*scale)
		}
	}

	var whitened mat.Dense
	whitened.Mul(centred, kernel)

	idx, err := inner(&whitened)
	if err != nil {
		return nil, fmt.Errorf("failed to build whitened index: %w", err)
	}
	return &Whitening{Index: idx, mean: mean, kernel: kernel}, nil
}

// Project maps a raw D-dimensional vector into the whitened space.
func (w *Whitening) Project(raw []float64) ([]float64, error) {
	d, remains := w.kernel.Dims()
	if len(raw) != d {
		return nil, fmt.Errorf("%w: raw vector has %d dimensions, want %d", ErrDimensionMismatch, len(raw), d)
	}
	centred := make([]float64, d)
	for i, v := range raw {
		centred[i] = v - w.mean[i]
	}
	out := mat.NewVecDense(remains, nil)
	out.MulVec(w.kernel.T(), mat.NewVecDense(d, centred))
	return out.RawVector().Data, nil
}

// Projector is implemented by indexes whose search space differs from the raw embedding space.
type Projector interface {
	Project(raw []float64) ([]float64, error)
}
