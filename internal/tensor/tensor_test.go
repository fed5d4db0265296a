package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deviceBackend satisfies Backend for creation helpers; kernels are not
// implemented and panic if called.
type deviceBackend struct {
	Backend
}

func (deviceBackend) Device() Device { return CPU }
func (deviceBackend) Name() string   { return "device-only" }

func TestShape_NumElementsAndStrides(t *testing.T) {
	s := Shape{2, 3, 4}
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.Equal(t, 1, Shape{}.NumElements())
}

func TestShape_Validate(t *testing.T) {
	require.NoError(t, Shape{1, 2}.Validate())
	assert.Error(t, Shape{1, 0}.Validate())
	assert.Error(t, Shape{-3}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b, want Shape
	}{
		{Shape{3, 1}, Shape{3, 5}, Shape{3, 5}},
		{Shape{1, 5}, Shape{3, 5}, Shape{3, 5}},
		{Shape{5}, Shape{3, 5}, Shape{3, 5}},
		{Shape{2, 8, 4, 4}, Shape{1, 8, 1, 1}, Shape{2, 8, 4, 4}},
	}
	for _, tt := range tests {
		got, err := BroadcastShapes(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := BroadcastShapes(Shape{3, 2}, Shape{3, 5})
	assert.Error(t, err)
}

func TestRawTensor_ViewSharesBuffer(t *testing.T) {
	r := MustNewRaw(Shape{2, 3}, Float32, CPU)
	copy(r.AsFloat32(), []float32{1, 2, 3, 4, 5, 6})

	v, err := r.View(Shape{3, 2})
	require.NoError(t, err)
	assert.NotSame(t, r, v)
	assert.Equal(t, Shape{3, 2}, v.Shape())

	v.AsFloat32()[0] = 42
	assert.Equal(t, float32(42), r.AsFloat32()[0])

	_, err = r.View(Shape{4, 2})
	assert.Error(t, err)
}

func TestRawTensor_CloneIsDeep(t *testing.T) {
	r := MustNewRaw(Shape{2}, Int32, CPU)
	r.AsInt32()[1] = 7
	c := r.Clone()
	c.AsInt32()[1] = 9
	assert.Equal(t, int32(7), r.AsInt32()[1])
	assert.Equal(t, int32(9), c.AsInt32()[1])
}

func TestRawTensor_WrongDTypePanics(t *testing.T) {
	r := MustNewRaw(Shape{2}, Int32, CPU)
	assert.Panics(t, func() { r.AsFloat32() })
}

func TestFromSlice(t *testing.T) {
	b := deviceBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4}, Shape{2, 2}, b)
	require.NoError(t, err)
	assert.Equal(t, Float32, x.DType())
	assert.Equal(t, []float32{1, 2, 3, 4}, x.Data())

	_, err = FromSlice([]int32{1, 2, 3}, Shape{2, 2}, b)
	assert.Error(t, err)
}

func TestParseDataType(t *testing.T) {
	for _, dt := range []DataType{Float32, Int32} {
		got, ok := ParseDataType(dt.String())
		require.True(t, ok)
		assert.Equal(t, dt, got)
	}
	_, ok := ParseDataType("float16")
	assert.False(t, ok)
}
