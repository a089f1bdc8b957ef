package vol

import (
	"fmt"
	"unsafe"
)

// Array is a dense n-dimensional array in C (row-major) order: the last
// axis varies fastest.  The backing buffer is owned by the array; callers
// that need isolation should copy via SubVolume or Clone.
type Array struct {
	dtype DataType
	shape Point
	data  []byte
}

// NewArray allocates a zeroed array of the given element type and shape.
func NewArray(dtype DataType, shape Point) (*Array, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("can't allocate array of %s", dtype)
	}
	numElems := shape.Prod()
	if numElems < 0 {
		return nil, fmt.Errorf("bad array shape %s", shape)
	}
	numBytes := numElems * int64(dtype.Size())
	// Allocate in words so typed views of the buffer stay aligned.
	words := make([]uint64, (numBytes+7)/8)
	var data []byte
	if numBytes > 0 {
		data = unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), numBytes)
	}
	return &Array{dtype, shape.Clone(), data}, nil
}

// ArrayFromBytes copies raw little-endian element data into a new array.
func ArrayFromBytes(dtype DataType, shape Point, b []byte) (*Array, error) {
	a, err := NewArray(dtype, shape)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) != int64(len(a.data)) {
		return nil, fmt.Errorf("got %d bytes for %s array of shape %s, expected %d",
			len(b), dtype, shape, len(a.data))
	}
	copy(a.data, b)
	return a, nil
}

// DataType returns the element type.
func (a *Array) DataType() DataType {
	return a.dtype
}

// Shape returns a copy of the per-axis extents.
func (a *Array) Shape() Point {
	return a.shape.Clone()
}

// NumElements returns the total element count.
func (a *Array) NumElements() int64 {
	return a.shape.Prod()
}

// Bytes returns the backing buffer.  Mutating it mutates the array.
func (a *Array) Bytes() []byte {
	return a.data
}

// Clone returns a deep copy of the array.
func (a *Array) Clone() *Array {
	dup, _ := NewArray(a.dtype, a.shape)
	copy(dup.data, a.data)
	return dup
}

// Uint8s returns the buffer as a uint8 slice.  Panics on dtype mismatch
// since a mistyped view is a programming error.
func (a *Array) Uint8s() []uint8 {
	a.mustType(Uint8)
	return a.data
}

// Uint16s returns the buffer as a uint16 slice.
func (a *Array) Uint16s() []uint16 {
	a.mustType(Uint16)
	if len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint16)(unsafe.Pointer(&a.data[0])), len(a.data)/2)
}

// Uint32s returns the buffer as a uint32 slice.
func (a *Array) Uint32s() []uint32 {
	a.mustType(Uint32)
	if len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&a.data[0])), len(a.data)/4)
}

// Uint64s returns the buffer as a uint64 slice.
func (a *Array) Uint64s() []uint64 {
	a.mustType(Uint64)
	if len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*uint64)(unsafe.Pointer(&a.data[0])), len(a.data)/8)
}

// Float32s returns the buffer as a float32 slice.
func (a *Array) Float32s() []float32 {
	a.mustType(Float32)
	if len(a.data) == 0 {
		return nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&a.data[0])), len(a.data)/4)
}

func (a *Array) mustType(dtype DataType) {
	if a.dtype != dtype {
		panic(fmt.Sprintf("requested %s view of %s array", dtype, a.dtype))
	}
}

// ValueFloat returns element i (in flat C order) widened to float64.
func (a *Array) ValueFloat(i int64) float64 {
	switch a.dtype {
	case Uint8:
		return float64(a.data[i])
	case Uint16:
		return float64(a.Uint16s()[i])
	case Uint32:
		return float64(a.Uint32s()[i])
	case Uint64:
		return float64(a.Uint64s()[i])
	case Float32:
		return float64(a.Float32s()[i])
	default:
		panic(fmt.Sprintf("ValueFloat on %s array", a.dtype))
	}
}

// ConvertFloat32 returns the array as Float32, converting elementwise if
// necessary.  If the array is already Float32 it is returned unchanged.
func (a *Array) ConvertFloat32() *Array {
	if a.dtype == Float32 {
		return a
	}
	out, _ := NewArray(Float32, a.shape)
	dst := out.Float32s()
	switch a.dtype {
	case Uint8:
		for i, v := range a.Uint8s() {
			dst[i] = float32(v)
		}
	case Uint16:
		for i, v := range a.Uint16s() {
			dst[i] = float32(v)
		}
	case Uint32:
		for i, v := range a.Uint32s() {
			dst[i] = float32(v)
		}
	case Uint64:
		for i, v := range a.Uint64s() {
			dst[i] = float32(v)
		}
	}
	return out
}

// SubVolume copies out the given region into a new array of shape roi.Shape().
func (a *Array) SubVolume(roi ROI) (*Array, error) {
	if !roi.Within(a.shape) {
		return nil, fmt.Errorf("subvolume %s exceeds array shape %s", roi, a.shape)
	}
	dst, err := NewArray(a.dtype, roi.Shape())
	if err != nil {
		return nil, err
	}
	if err := CopyRegion(dst, NewPoint(len(a.shape)), a, roi); err != nil {
		return nil, err
	}
	return dst, nil
}

// Paste copies the whole of src into the receiver at the given offset.
func (a *Array) Paste(src *Array, offset Point) error {
	return CopyRegion(a, offset, src, FullROI(src.shape))
}

// CopyRegion copies src[srcROI] into dst starting at dstOffset.  Element
// types must match and the destination region must fit within dst.
func CopyRegion(dst *Array, dstOffset Point, src *Array, srcROI ROI) error {
	if dst.dtype != src.dtype {
		return fmt.Errorf("can't copy %s region into %s array", src.dtype, dst.dtype)
	}
	if !srcROI.Within(src.shape) {
		return fmt.Errorf("source region %s exceeds array shape %s", srcROI, src.shape)
	}
	regionShape := srcROI.Shape()
	dstROI := ROI{dstOffset.Clone(), dstOffset.Add(regionShape)}
	if !dstROI.Within(dst.shape) {
		return fmt.Errorf("destination region %s exceeds array shape %s", dstROI, dst.shape)
	}
	rank := len(src.shape)
	if regionShape.Prod() == 0 {
		return nil
	}
	elemSize := int64(src.dtype.Size())
	srcStrides := byteStrides(src.shape, elemSize)
	dstStrides := byteStrides(dst.shape, elemSize)
	srcStart := srcROI.Start()
	rowBytes := int64(regionShape[rank-1]) * elemSize

	// Walk every row (all leading axes) and copy the contiguous last axis.
	counter := NewPoint(rank - 1)
	for {
		var srcOff, dstOff int64
		for i := 0; i < rank-1; i++ {
			srcOff += int64(srcStart[i]+counter[i]) * srcStrides[i]
			dstOff += int64(dstOffset[i]+counter[i]) * dstStrides[i]
		}
		srcOff += int64(srcStart[rank-1]) * elemSize
		dstOff += int64(dstOffset[rank-1]) * elemSize
		copy(dst.data[dstOff:dstOff+rowBytes], src.data[srcOff:srcOff+rowBytes])

		// Odometer increment over the leading axes.
		axis := rank - 2
		for axis >= 0 {
			counter[axis]++
			if counter[axis] < regionShape[axis] {
				break
			}
			counter[axis] = 0
			axis--
		}
		if axis < 0 {
			break
		}
	}
	return nil
}

// byteStrides returns per-axis byte strides for a C-order array.
func byteStrides(shape Point, elemSize int64) []int64 {
	strides := make([]int64, len(shape))
	stride := elemSize
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= int64(shape[i])
	}
	return strides
}
