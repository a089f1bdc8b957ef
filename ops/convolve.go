package ops

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"roiflow/vol"
)

// SmoothFunc runs a separable Gaussian over a float32 volume and copies out
// the inner region.  src already includes whatever halo the caller fetched;
// sigmas are per-axis with 0 meaning "no smoothing along this axis"; inner
// is given in src-local coordinates and determines the output shape.
type SmoothFunc func(src *vol.Array, sigmas []float64, inner vol.ROI) (*vol.Array, error)

// gaussianTaps returns normalized Gaussian filter taps with support radius
// equal to the halo radius for the same sigma.  The kernel and the halo
// must truncate at the same radius or ROI-restricted smoothing would
// diverge from whole-volume smoothing near region edges.
func gaussianTaps(sigma float64) []float64 {
	radius := int(vol.GaussianHaloRadius(sigma))
	taps := make([]float64, 2*radius+1)
	for i := -radius; i <= radius; i++ {
		x := float64(i) / sigma
		taps[i+radius] = math.Exp(-0.5 * x * x)
	}
	floats.Scale(1/floats.Sum(taps), taps)
	return taps
}

// reflectIndex mirrors an out-of-range coordinate back into [0,n).
func reflectIndex(c, n int32) int32 {
	if n == 1 {
		return 0
	}
	for c < 0 || c >= n {
		if c < 0 {
			c = -c
		}
		if c >= n {
			c = 2*n - 2 - c
		}
	}
	return c
}

// GaussianSmooth is the default SmoothFunc: an axis-by-axis separable
// Gaussian convolution with reflective boundaries, accumulating in float64.
func GaussianSmooth(src *vol.Array, sigmas []float64, inner vol.ROI) (*vol.Array, error) {
	if src.DataType() != vol.Float32 {
		return nil, fmt.Errorf("gaussian smoothing needs float32 input, got %s", src.DataType())
	}
	shape := src.Shape()
	if len(sigmas) != len(shape) {
		return nil, fmt.Errorf("got %d sigmas for rank %d volume", len(sigmas), len(shape))
	}
	if !inner.Within(shape) {
		return nil, fmt.Errorf("inner region %s exceeds source shape %s", inner, shape)
	}

	cur := src.Clone()
	n := cur.NumElements()
	strides := elemStrides(shape)

	for axis, sigma := range sigmas {
		if sigma <= 0 {
			continue
		}
		taps := gaussianTaps(sigma)
		radius := int32(len(taps) / 2)
		next, err := vol.NewArray(vol.Float32, shape)
		if err != nil {
			return nil, err
		}
		in := cur.Float32s()
		out := next.Float32s()
		extent := shape[axis]
		stride := strides[axis]

		coord := vol.NewPoint(len(shape))
		for flat := int64(0); flat < n; flat++ {
			var sum float64
			c := coord[axis]
			for j := int32(-radius); j <= radius; j++ {
				rc := reflectIndex(c+j, extent)
				sum += taps[j+radius] * float64(in[flat+int64(rc-c)*stride])
			}
			out[flat] = float32(sum)

			// Advance odometer in C order, last axis fastest.
			for k := len(coord) - 1; k >= 0; k-- {
				coord[k]++
				if coord[k] < shape[k] {
					break
				}
				coord[k] = 0
			}
		}
		cur = next
	}
	return cur.SubVolume(inner)
}

// elemStrides returns per-axis strides in elements for a C-order array.
func elemStrides(shape vol.Point) []int64 {
	strides := make([]int64, len(shape))
	stride := int64(1)
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= int64(shape[i])
	}
	return strides
}
