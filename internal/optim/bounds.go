package optim

import (
	"errors"
	"fmt"

	"github.com/hyperjump/tansaku/internal/index"
)

// ErrInvalidBounds is returned when an index's bounds are malformed.
var ErrInvalidBounds = errors.New("optim: invalid bounds")

// CheckBounds verifies that idx's bounds are Dims()×2 and ordered on every dimension.
func CheckBounds(idx index.Index) error {
	b := idx.Bounds()
	if b == nil || b.IsEmpty() {
		return fmt.Errorf("%w: bounds are empty", ErrInvalidBounds)
	}
	r, c := b.Dims()
	if r != idx.Dims() || c != 2 {
		return fmt.Errorf("%w: shape (%d, %d), want (%d, 2)", ErrInvalidBounds, r, c, idx.Dims())
	}
	for j := 0; j < r; j++ {
		if lo, hi := b.At(j, 0), b.At(j, 1); lo > hi {
			return fmt.Errorf("%w: dimension %d has lower %v > upper %v", ErrInvalidBounds, j, lo, hi)
		}
	}
	return nil
}
