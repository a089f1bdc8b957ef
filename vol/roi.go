package vol

import (
	"fmt"
	"math"
)

// ROI is an axis-aligned region of interest given by start (inclusive) and
// stop (exclusive) index vectors.  ROIs are value types: once constructed
// they are never mutated, and accessors return copies.
type ROI struct {
	start Point
	stop  Point
}

// NewROI constructs a ROI from start/stop vectors of equal rank with
// start[i] <= stop[i] on every axis.
func NewROI(start, stop Point) (ROI, error) {
	if len(start) != len(stop) {
		return ROI{}, fmt.Errorf("ROI start %s and stop %s differ in rank", start, stop)
	}
	for i, beg := range start {
		if beg > stop[i] {
			return ROI{}, fmt.Errorf("ROI start %s exceeds stop %s on axis %d", start, stop, i)
		}
	}
	return ROI{start.Clone(), stop.Clone()}, nil
}

// FullROI returns the ROI covering an entire volume of the given shape.
func FullROI(shape Point) ROI {
	return ROI{NewPoint(len(shape)), shape.Clone()}
}

// Start returns a copy of the inclusive start vector.
func (r ROI) Start() Point {
	return r.start.Clone()
}

// Stop returns a copy of the exclusive stop vector.
func (r ROI) Stop() Point {
	return r.stop.Clone()
}

// NumDims returns the rank of the ROI.
func (r ROI) NumDims() uint8 {
	return uint8(len(r.start))
}

// Shape returns the per-axis extent, stop - start.
func (r ROI) Shape() Point {
	return r.stop.Sub(r.start)
}

// NumVoxels returns the number of elements covered by the ROI.
func (r ROI) NumVoxels() int64 {
	return r.Shape().Prod()
}

// Empty returns true if the ROI covers no elements.
func (r ROI) Empty() bool {
	for i, beg := range r.start {
		if beg >= r.stop[i] {
			return true
		}
	}
	return len(r.start) == 0
}

// Within returns true if the ROI lies fully inside a volume of the given shape.
func (r ROI) Within(shape Point) bool {
	if len(r.start) != len(shape) {
		return false
	}
	for i, beg := range r.start {
		if beg < 0 || r.stop[i] > shape[i] {
			return false
		}
	}
	return true
}

// Contains returns true if other lies fully inside the receiver.
func (r ROI) Contains(other ROI) bool {
	if len(r.start) != len(other.start) {
		return false
	}
	for i := range r.start {
		if other.start[i] < r.start[i] || other.stop[i] > r.stop[i] {
			return false
		}
	}
	return true
}

// Equals returns true if both ROIs have identical start and stop vectors.
func (r ROI) Equals(other ROI) bool {
	return r.start.Equals(other.start) && r.stop.Equals(other.stop)
}

// Intersect returns the overlap of two ROIs and whether it is non-empty.
func (r ROI) Intersect(other ROI) (ROI, bool) {
	if len(r.start) != len(other.start) {
		return ROI{}, false
	}
	isect := ROI{r.start.Max(other.start), r.stop.Min(other.stop)}
	return isect, !isect.Empty()
}

// Clip clamps the ROI to a volume of the given shape.  An empty result is
// an error since callers that clip expect data to remain.
func (r ROI) Clip(shape Point) (ROI, error) {
	if len(r.start) != len(shape) {
		return ROI{}, fmt.Errorf("can't clip rank %d ROI to rank %d shape", len(r.start), len(shape))
	}
	clipped := ROI{r.start.Max(NewPoint(len(shape))), r.stop.Min(shape)}
	if clipped.Empty() {
		return ROI{}, fmt.Errorf("ROI %s is empty after clipping to shape %s", r, shape)
	}
	return clipped, nil
}

// Extend grows the ROI outward by a per-axis non-negative radius, clipping
// the result to a volume of the given shape.  The returned offset locates
// the original start within the extended region, i.e.
// original = extended[offset : offset + r.Shape()].
func (r ROI) Extend(radius Point, shape Point) (ROI, Point, error) {
	if len(radius) != len(r.start) || len(shape) != len(r.start) {
		return ROI{}, nil, fmt.Errorf("extend of ROI %s needs rank %d radius and shape", r, len(r.start))
	}
	for i, rad := range radius {
		if rad < 0 {
			return ROI{}, nil, fmt.Errorf("negative halo radius %d on axis %d", rad, i)
		}
	}
	ext := ROI{
		start: r.start.Sub(radius).Max(NewPoint(len(shape))),
		stop:  r.stop.Add(radius).Min(shape),
	}
	return ext, r.start.Sub(ext.start), nil
}

func (r ROI) String() string {
	return fmt.Sprintf("[%s,%s)", r.start, r.stop)
}

// gaussianWindowFactor is the multiple of sigma covered by a Gaussian
// kernel's support.  Both halo extension during execution and dirty-region
// mapping during invalidation derive radii from this one constant; using
// different formulas in the two directions would make invalidation
// inconsistent with execution.
const gaussianWindowFactor = 2.0

// GaussianHaloRadius returns the per-axis halo radius needed by a Gaussian
// smoothing kernel of the given sigma.
func GaussianHaloRadius(sigma float64) int32 {
	if sigma <= 0 {
		return 0
	}
	return int32(math.Ceil(gaussianWindowFactor * sigma))
}

// GaussianHalo returns halo radii for per-axis sigmas.  A zero sigma means
// no smoothing and no halo along that axis.
func GaussianHalo(sigmas []float64) Point {
	radius := make(Point, len(sigmas))
	for i, sigma := range sigmas {
		radius[i] = GaussianHaloRadius(sigma)
	}
	return radius
}
