package vol

import "fmt"

// AxisTag is the semantic role of one volume axis.
type AxisTag byte

const (
	AxisX AxisTag = 'x'
	AxisY AxisTag = 'y'
	AxisZ AxisTag = 'z'
	AxisC AxisTag = 'c' // channel
	AxisT AxisTag = 't' // time
)

func (t AxisTag) String() string {
	return string(t)
}

// Spatial returns true for the x, y, and z axes.
func (t AxisTag) Spatial() bool {
	return t == AxisX || t == AxisY || t == AxisZ
}

// Axes is the ordered list of axis tags for a volume, one per dimension.
type Axes []AxisTag

// XYZC is the standard axis ordering for a 3-d multichannel volume.
var XYZC = Axes{AxisX, AxisY, AxisZ, AxisC}

// XYC is the standard axis ordering for a 2-d multichannel image.
var XYC = Axes{AxisX, AxisY, AxisC}

// Validate checks that every tag is recognized, no tag repeats, and a
// channel axis is present.  The channel axis may have extent 1 but it
// must exist.
func (a Axes) Validate() error {
	seen := make(map[AxisTag]bool, len(a))
	for _, tag := range a {
		switch tag {
		case AxisX, AxisY, AxisZ, AxisC, AxisT:
		default:
			return fmt.Errorf("unknown axis tag %q", tag)
		}
		if seen[tag] {
			return fmt.Errorf("duplicated axis tag %q", tag)
		}
		seen[tag] = true
	}
	if !seen[AxisC] {
		return fmt.Errorf("axes %s lack a channel axis", a)
	}
	return nil
}

// Index returns the position of the given tag, or -1 if absent.
func (a Axes) Index(tag AxisTag) int {
	for i, t := range a {
		if t == tag {
			return i
		}
	}
	return -1
}

// ChannelIndex returns the position of the channel axis, or -1 if absent.
func (a Axes) ChannelIndex() int {
	return a.Index(AxisC)
}

// SpatialIndices returns the positions of the spatial axes in order of appearance.
func (a Axes) SpatialIndices() []int {
	var indices []int
	for i, t := range a {
		if t.Spatial() {
			indices = append(indices, i)
		}
	}
	return indices
}

// Equals returns true if both axis lists have identical tags in identical order.
func (a Axes) Equals(other Axes) bool {
	if len(a) != len(other) {
		return false
	}
	for i, t := range a {
		if t != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the axis list.
func (a Axes) Clone() Axes {
	dup := make(Axes, len(a))
	copy(dup, a)
	return dup
}

func (a Axes) String() string {
	b := make([]byte, len(a))
	for i, t := range a {
		b[i] = byte(t)
	}
	return string(b)
}
