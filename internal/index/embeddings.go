package index

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// space is the validated, possibly normalized embedding matrix every backend is built over.
type space struct {
	embeddings *mat.Dense
	distance   Distance
	bounds     *mat.Dense
	rows       [][]float32
}

// prepare validates embeddings, copies and normalizes them when the distance requires it,
// and computes per-dimension bounds. The caller's matrix is never touched.
func prepare(embeddings *mat.Dense, distance Distance) (*space, error) {
	if !distance.valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDistance, string(distance))
	}
	if err := validateEmbeddings(embeddings); err != nil {
		return nil, err
	}

	emb := mat.DenseCopyOf(embeddings)
	n, _ := emb.Dims()
	if distance.RequiresNormalization() {
		for i := 0; i < n; i++ {
			row := emb.RawRowView(i)
			norm := floats.Norm(row, 2)
			if norm == 0 {
				return nil, fmt.Errorf("%w: row %d has zero norm", ErrDegenerateEmbedding, i)
			}
			floats.Scale(1/norm, row)
		}
	}

	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = toFloat32(emb.RawRowView(i))
	}

	return &space{
		embeddings: emb,
		distance:   distance,
		bounds:     computeBounds(emb),
		rows:       rows,
	}, nil
}

func validateEmbeddings(m *mat.Dense) error {
	if m == nil || m.IsEmpty() {
		return fmt.Errorf("%w: matrix is empty", ErrInvalidEmbedding)
	}
	n, d := m.Dims()
	if n < 1 || d < 1 {
		return fmt.Errorf("%w: shape (%d, %d)", ErrInvalidEmbedding, n, d)
	}
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value %v at (%d, %d)", ErrInvalidEmbedding, v, i, j)
			}
		}
	}
	return nil
}

// computeBounds returns a D×2 matrix with the column minimum in column 0 and maximum in column 1.
func computeBounds(m *mat.Dense) *mat.Dense {
	_, d := m.Dims()
	bounds := mat.NewDense(d, 2, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, m)
		bounds.Set(j, 0, floats.Min(col))
		bounds.Set(j, 1, floats.Max(col))
	}
	return bounds
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func (s *space) Embeddings() *mat.Dense { return s.embeddings }

func (s *space) Distance() Distance { return s.distance }

func (s *space) Bounds() *mat.Dense { return s.bounds }

func (s *space) Dims() int {
	_, d := s.embeddings.Dims()
	return d
}

// Len returns the number of indexed rows.
func (s *space) Len() int {
	return len(s.rows)
}

// validateQuery checks k, the batch, and the width and values of every query row before
// any backend work.
func (s *space) validateQuery(queries [][]float64, k int) error {
	if k < 1 || k > len(s.rows) {
		return fmt.Errorf("%w: k=%d with %d rows", ErrInvalidK, k, len(s.rows))
	}
	if len(queries) == 0 {
		return fmt.Errorf("%w: empty query batch", ErrInvalidQuery)
	}
	d := s.Dims()
	for i, q := range queries {
		if len(q) != d {
			return fmt.Errorf("%w: query row %d has %d dimensions, want %d", ErrDimensionMismatch, i, len(q), d)
		}
		for j, v := range q {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: query row %d has non-finite value %v at dimension %d", ErrInvalidQuery, i, v, j)
			}
		}
	}
	return nil
}
