package utils

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// NormalizeL2 normalizes the slice in place to unit L2 norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) {
	sum := vek32.Dot(x, x)
	if sum == 0 {
		return
	}
	vek32.MulNumber_Inplace(x, float32(1/math.Sqrt(float64(sum))))
}
