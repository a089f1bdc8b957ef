package vol

import "fmt"

// DataType is the element type of a volume.
type DataType uint8

const (
	Uint8 DataType = iota
	Uint16
	Uint32
	Uint64
	Float32
)

// Size returns the number of bytes per element.
func (t DataType) Size() int32 {
	switch t {
	case Uint8:
		return 1
	case Uint16:
		return 2
	case Uint32, Float32:
		return 4
	case Uint64:
		return 8
	default:
		return 0
	}
}

func (t DataType) String() string {
	switch t {
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("unknown data type (%d)", uint8(t))
	}
}

// Valid returns true if the data type is one of the supported element types.
func (t DataType) Valid() bool {
	return t.Size() != 0
}
