// SPDX-License-Identifier: GPL-2.0-or-later

package math

import (
	"github.com/chewxy/math32"
)

const (
	Pi = math32.Pi

	// DegToRad converts degrees to radians.
	DegToRad = Pi / 180
)

type Number interface {
	int64 | int32 | float64 | float32 | int
}

func Clamp[K Number](min, val, max K) K {
	if min > val {
		return min
	} else if max < val {
		return max
	}
	return val
}

// ClampFrame limits f to [0, n-1]. NaN maps to 0.
func ClampFrame(f float32, n int) float32 {
	if math32.IsNaN(f) {
		return 0
	}
	return Clamp(0, f, float32(max(n, 1)-1))
}

// FractionFrame maps f in [0, 1] to a frame of an n frame sequence. Values
// outside the range are clamped, NaN maps to 0.
func FractionFrame(f float32, n int) float32 {
	if math32.IsNaN(f) {
		return 0
	}
	return Clamp(0, f, 1) * float32(max(n, 1)-1)
}

// Lerp returns (1-frac)*a + frac*b.
func Lerp(a, b, frac float32) float32 {
	return (1-frac)*a + frac*b
}
