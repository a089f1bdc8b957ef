package vol

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is an n-dimensional integer vector used for shapes, coordinates,
// offsets, and per-axis radii.  Operations return new points and never
// mutate the receiver.
type Point []int32

// NewPoint returns a point of the given rank with all components zero.
func NewPoint(rank int) Point {
	return make(Point, rank)
}

// Clone returns a copy of the point.
func (p Point) Clone() Point {
	dup := make(Point, len(p))
	copy(dup, p)
	return dup
}

// NumDims returns the dimensionality of this point.
func (p Point) NumDims() uint8 {
	return uint8(len(p))
}

// Add returns the component-wise addition of two points.
func (p Point) Add(x Point) Point {
	result := make(Point, len(p))
	for i, value := range p {
		result[i] = value + x[i]
	}
	return result
}

// Sub returns the component-wise subtraction of the passed point from the receiver.
func (p Point) Sub(x Point) Point {
	result := make(Point, len(p))
	for i, value := range p {
		result[i] = value - x[i]
	}
	return result
}

// AddScalar adds a scalar to every component.
func (p Point) AddScalar(value int32) Point {
	result := make(Point, len(p))
	for i, v := range p {
		result[i] = v + value
	}
	return result
}

// Max returns a point where each component is the maximum of the two points' components.
func (p Point) Max(x Point) Point {
	result := make(Point, len(p))
	for i, value := range p {
		if x[i] > value {
			result[i] = x[i]
		} else {
			result[i] = value
		}
	}
	return result
}

// Min returns a point where each component is the minimum of the two points' components.
func (p Point) Min(x Point) Point {
	result := make(Point, len(p))
	for i, value := range p {
		if x[i] < value {
			result[i] = x[i]
		} else {
			result[i] = value
		}
	}
	return result
}

// Prod returns the product of the point's components.
func (p Point) Prod() int64 {
	result := int64(1)
	for _, value := range p {
		result *= int64(value)
	}
	return result
}

// Equals returns true if the two points have identical rank and components.
func (p Point) Equals(x Point) bool {
	if len(p) != len(x) {
		return false
	}
	for i, value := range p {
		if value != x[i] {
			return false
		}
	}
	return true
}

func (p Point) String() string {
	parts := make([]string, len(p))
	for i, value := range p {
		parts[i] = strconv.Itoa(int(value))
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// StringToPoint parses a string of format "a,b,c,..." into a Point.
func StringToPoint(str, separator string) (p Point, err error) {
	elems := strings.Split(str, separator)
	p = make(Point, len(elems))
	for i, elem := range elems {
		var value int64
		value, err = strconv.ParseInt(elem, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("can't parse %q as point: %v", str, err)
		}
		p[i] = int32(value)
	}
	return p, nil
}
