package tensor

import "fmt"

// Tensor is a typed view of a RawTensor bound to a backend.
//
// Type Parameters:
//   - T: element type (float32 or int32)
//   - B: computation backend
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{3, 4}, backend)
//	y := x.Add(x)
type Tensor[T DType, B Backend] struct {
	raw     *RawTensor
	backend B
}

// New wraps a RawTensor.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return &Tensor[T, B]{raw: raw, backend: b}
}

// FromSlice copies data into a new tensor of the given shape.
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	raw, err := NewRaw(shape, inferDataType[T](), b.Device())
	if err != nil {
		return nil, err
	}
	t := New[T, B](raw, b)
	copy(t.Data(), data)
	return t, nil
}

// Zeros creates a zero-filled tensor.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return New[T, B](MustNewRaw(shape, inferDataType[T](), b.Device()), b)
}

// Shape returns the tensor's shape.
func (t *Tensor[T, B]) Shape() Shape {
	return t.raw.Shape()
}

// DType returns the tensor's data type.
func (t *Tensor[T, B]) DType() DataType {
	return t.raw.DType()
}

// NumElements returns the total number of elements.
func (t *Tensor[T, B]) NumElements() int {
	return t.raw.NumElements()
}

// Raw returns the underlying RawTensor.
func (t *Tensor[T, B]) Raw() *RawTensor {
	return t.raw
}

// Backend returns the computation backend.
func (t *Tensor[T, B]) Backend() B {
	return t.backend
}

// Data returns the elements as a typed slice sharing tensor memory.
func (t *Tensor[T, B]) Data() []T {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return any(t.raw.AsFloat32()).([]T)
	case int32:
		return any(t.raw.AsInt32()).([]T)
	default:
		panic("unsupported type")
	}
}

// Add returns t + other with broadcasting.
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// Mul returns t * other element-wise with broadcasting.
func (t *Tensor[T, B]) Mul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Mul(t.raw, other.raw), t.backend)
}

// MatMul returns the 2D matrix product t @ other.
func (t *Tensor[T, B]) MatMul(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.MatMul(t.raw, other.raw), t.backend)
}

// Transpose swaps the two dimensions of a 2D tensor.
func (t *Tensor[T, B]) Transpose() *Tensor[T, B] {
	return New[T, B](t.backend.Transpose(t.raw), t.backend)
}

// Reshape returns a tensor with the same elements and a new shape.
func (t *Tensor[T, B]) Reshape(dims ...int) *Tensor[T, B] {
	return New[T, B](t.backend.Reshape(t.raw, Shape(dims)), t.backend)
}

// ReLU applies max(0, x).
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// Argmax returns the int32 index of the maximum along dim.
func (t *Tensor[T, B]) Argmax(dim int) *Tensor[int32, B] {
	return New[int32, B](t.backend.Argmax(t.raw, dim), t.backend)
}
