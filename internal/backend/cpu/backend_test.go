package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/tensor"
)

func raw(t *testing.T, shape tensor.Shape, data []float32) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestAdd_SameShape(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	b := raw(t, tensor.Shape{2, 2}, []float32{10, 20, 30, 40})

	out := backend.Add(a, b)
	assert.Equal(t, []float32{11, 22, 33, 44}, out.AsFloat32())
	assert.Equal(t, []float32{1, 2, 3, 4}, a.AsFloat32(), "inputs must not be modified")
}

func TestAdd_Broadcast(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	row := raw(t, tensor.Shape{1, 3}, []float32{10, 20, 30})
	col := raw(t, tensor.Shape{2, 1}, []float32{100, 200})

	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, backend.Add(a, row).AsFloat32())
	assert.Equal(t, []float32{101, 102, 103, 204, 205, 206}, backend.Add(a, col).AsFloat32())
}

func TestAdd_BroadcastChannelBias(t *testing.T) {
	backend := New()
	x := raw(t, tensor.Shape{1, 2, 2, 2}, make([]float32, 8))
	bias := raw(t, tensor.Shape{1, 2, 1, 1}, []float32{1, -1})

	out := backend.Add(x, bias)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, out.Shape())
	assert.Equal(t, []float32{1, 1, 1, 1, -1, -1, -1, -1}, out.AsFloat32())
}

func TestAdd_IncompatibleShapesPanic(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, make([]float32, 6))
	b := raw(t, tensor.Shape{2, 2}, make([]float32, 4))
	assert.Panics(t, func() { backend.Add(a, b) })
}

func TestMul(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{3}, []float32{1, 2, 3})
	b := raw(t, tensor.Shape{3}, []float32{0, 2, -1})
	assert.Equal(t, []float32{0, 4, -3}, backend.Mul(a, b).AsFloat32())
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	b := raw(t, tensor.Shape{3, 2}, []float32{7, 8, 9, 10, 11, 12})

	out := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, out.AsFloat32())
}

func TestMatMul_MismatchPanics(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, make([]float32, 6))
	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestTranspose(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := backend.Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())
}

func TestReshape_SharesBufferNewHeader(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	out := backend.Reshape(a, tensor.Shape{6})
	assert.NotSame(t, a, out)
	assert.Equal(t, a.AsFloat32(), out.AsFloat32())
	assert.Panics(t, func() { backend.Reshape(a, tensor.Shape{4}) })
}

func TestReLU(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{4}, []float32{-1, 0, 2, -3})
	assert.Equal(t, []float32{0, 0, 2, 0}, backend.ReLU(a).AsFloat32())
}

func TestSumDim(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})

	rows := backend.SumDim(a, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, rows.Shape())
	assert.Equal(t, []float32{5, 7, 9}, rows.AsFloat32())

	cols := backend.SumDim(a, -1, false)
	assert.Equal(t, tensor.Shape{2}, cols.Shape())
	assert.Equal(t, []float32{6, 15}, cols.AsFloat32())
}

func TestArgmax_TieBreaksToLowestIndex(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{3, 4}, []float32{
		1, 5, 5, 0,
		7, 7, 7, 7,
		-1, -2, -3, 0,
	})
	out := backend.Argmax(a, 1)
	assert.Equal(t, tensor.Shape{3}, out.Shape())
	assert.Equal(t, []int32{1, 0, 3}, out.AsInt32())
}

func TestArgmax_Dim0(t *testing.T) {
	backend := New()
	a := raw(t, tensor.Shape{2, 2}, []float32{1, 9, 3, 2})
	assert.Equal(t, []int32{1, 0}, backend.Argmax(a, 0).AsInt32())
}

func TestCrossEntropy(t *testing.T) {
	backend := New()
	logits := raw(t, tensor.Shape{2, 3}, []float32{0, 0, 0, 10, 0, 0})
	targets, err := tensor.NewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	require.NoError(t, err)
	copy(targets.AsInt32(), []int32{2, 0})

	loss := backend.CrossEntropy(logits, targets)
	require.Equal(t, 1, loss.NumElements())

	// Row 0: uniform over 3 classes -> log 3. Row 1: confident and correct -> ~log(1+2e-10).
	want := (math.Log(3) + math.Log(1+2*math.Exp(-10))) / 2
	assert.InDelta(t, want, float64(loss.AsFloat32()[0]), 1e-5)
}

func TestCrossEntropy_TargetOutOfRangePanics(t *testing.T) {
	backend := New()
	logits := raw(t, tensor.Shape{1, 3}, []float32{0, 0, 0})
	targets := tensor.MustNewRaw(tensor.Shape{1}, tensor.Int32, tensor.CPU)
	targets.AsInt32()[0] = 3
	assert.Panics(t, func() { backend.CrossEntropy(logits, targets) })
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, New().Describe(), "CPU")
}
