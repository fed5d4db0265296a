// Package tensor provides the core tensor types used by digitnet.
package tensor

// DType is a constraint for supported tensor element types.
type DType interface {
	~float32 | ~int32
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Int32
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// ParseDataType is the inverse of DataType.String.
func ParseDataType(s string) (DataType, bool) {
	switch s {
	case "float32":
		return Float32, true
	case "int32":
		return Int32, true
	default:
		return 0, false
	}
}

func inferDataType[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case int32:
		return Int32
	default:
		panic("unsupported type")
	}
}
