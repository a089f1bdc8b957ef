package graph

import (
	"fmt"

	"roiflow/vol"
)

// Metadata describes one operator output: shape, per-axis tags, element
// type, and an optional display range.  It is a fixed record validated at
// every producer boundary rather than an open property bag.
type Metadata struct {
	Shape vol.Point
	Axes  vol.Axes
	DType vol.DataType

	// DataRange is the declared [min,max] of the data values, used for
	// display scaling and for interpreting threshold fractions.  Nil if
	// unknown.
	DataRange *[2]float64
}

// Validate checks internal consistency of the metadata record.
func (m Metadata) Validate() error {
	if len(m.Shape) != len(m.Axes) {
		return fmt.Errorf("metadata shape %s has %d axes but tags %s have %d",
			m.Shape, len(m.Shape), m.Axes, len(m.Axes))
	}
	for i, extent := range m.Shape {
		if extent <= 0 {
			return fmt.Errorf("metadata shape %s has non-positive extent on axis %d", m.Shape, i)
		}
	}
	if err := m.Axes.Validate(); err != nil {
		return err
	}
	if !m.DType.Valid() {
		return fmt.Errorf("metadata has invalid data type")
	}
	if m.DataRange != nil && m.DataRange[0] > m.DataRange[1] {
		return fmt.Errorf("metadata data range [%g,%g] is inverted", m.DataRange[0], m.DataRange[1])
	}
	return nil
}

// Equal returns true if the two records declare the same output.
func (m Metadata) Equal(other Metadata) bool {
	if !m.Shape.Equals(other.Shape) || !m.Axes.Equals(other.Axes) || m.DType != other.DType {
		return false
	}
	switch {
	case m.DataRange == nil && other.DataRange == nil:
		return true
	case m.DataRange == nil || other.DataRange == nil:
		return false
	default:
		return *m.DataRange == *other.DataRange
	}
}

// FullROI returns the ROI covering the whole declared shape.
func (m Metadata) FullROI() vol.ROI {
	return vol.FullROI(m.Shape)
}

// WithDType returns a copy of the metadata with a different element type.
func (m Metadata) WithDType(dtype vol.DataType) Metadata {
	dup := m.Clone()
	dup.DType = dtype
	return dup
}

// Clone returns a deep copy of the metadata record.
func (m Metadata) Clone() Metadata {
	dup := Metadata{
		Shape: m.Shape.Clone(),
		Axes:  m.Axes.Clone(),
		DType: m.DType,
	}
	if m.DataRange != nil {
		drange := *m.DataRange
		dup.DataRange = &drange
	}
	return dup
}
