package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/parallel"
	"github.com/born-ml/digitnet/internal/tensor"
)

func randomRaw(rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	r := tensor.MustNewRaw(shape, tensor.Float32, tensor.CPU)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

// naiveConv2D is a direct 7-loop convolution used as reference.
func naiveConv2D(in, k []float32, n, cin, h, w, cout, kh, kw, stride, pad int) []float32 {
	hout := (h+2*pad-kh)/stride + 1
	wout := (w+2*pad-kw)/stride + 1
	out := make([]float32, n*cout*hout*wout)
	for b := 0; b < n; b++ {
		for co := 0; co < cout; co++ {
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					var sum float32
					for ci := 0; ci < cin; ci++ {
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								y, x := oh*stride-pad+i, ow*stride-pad+j
								if y < 0 || y >= h || x < 0 || x >= w {
									continue
								}
								sum += in[((b*cin+ci)*h+y)*w+x] * k[((co*cin+ci)*kh+i)*kw+j]
							}
						}
					}
					out[((b*cout+co)*hout+oh)*wout+ow] = sum
				}
			}
		}
	}
	return out
}

func TestConv2D_BasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := raw(t, tensor.Shape{1, 1, 3, 3}, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9})
	// Diagonal kernel:
	// 1 0
	// 0 1
	kernel := raw(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 0, 0, 1})

	output := backend.Conv2D(input, kernel, 1, 0)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2D_WithPadding(t *testing.T) {
	backend := New()
	input := raw(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})
	kernel := raw(t, tensor.Shape{1, 1, 3, 3}, []float32{0, 0, 0, 0, 1, 0, 0, 0, 0})

	output := backend.Conv2D(input, kernel, 1, 1)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{1, 2, 3, 4}, output.AsFloat32())
}

func TestConv2D_MatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	for _, tc := range []struct {
		n, cin, h, w, cout, k, stride, pad int
	}{
		{2, 1, 6, 6, 3, 3, 1, 0},
		{3, 2, 5, 7, 4, 3, 2, 1},
		{1, 8, 9, 9, 16, 3, 1, 0},
	} {
		input := randomRaw(rng, tensor.Shape{tc.n, tc.cin, tc.h, tc.w})
		kernel := randomRaw(rng, tensor.Shape{tc.cout, tc.cin, tc.k, tc.k})
		want := naiveConv2D(input.AsFloat32(), kernel.AsFloat32(),
			tc.n, tc.cin, tc.h, tc.w, tc.cout, tc.k, tc.k, tc.stride, tc.pad)

		got := New().Conv2D(input, kernel, tc.stride, tc.pad).AsFloat32()
		require.Len(t, got, len(want))
		for i := range want {
			assert.InDelta(t, want[i], got[i], 1e-4, "case %+v index %d", tc, i)
		}
	}
}

func TestConv2D_ChannelMismatchPanics(t *testing.T) {
	backend := New()
	input := tensor.MustNewRaw(tensor.Shape{1, 2, 4, 4}, tensor.Float32, tensor.CPU)
	kernel := tensor.MustNewRaw(tensor.Shape{1, 3, 3, 3}, tensor.Float32, tensor.CPU)
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, 0) })
}

// The backward kernels are adjoints of the forward pass:
// <conv(x, k), g> == <x, dX(g)> == <k, dK(g)>.
func TestConv2DBackward_Adjoint(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	backend := New()
	input := randomRaw(rng, tensor.Shape{2, 3, 6, 5})
	kernel := randomRaw(rng, tensor.Shape{4, 3, 3, 3})
	out := backend.Conv2D(input, kernel, 1, 1)
	grad := randomRaw(rng, out.Shape())

	dot := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			s += float64(a[i]) * float64(b[i])
		}
		return s
	}
	lhs := dot(out.AsFloat32(), grad.AsFloat32())

	dX := backend.Conv2DInputBackward(input, kernel, grad, 1, 1)
	dK := backend.Conv2DKernelBackward(input, kernel, grad, 1, 1)
	require.True(t, dX.Shape().Equal(input.Shape()))
	require.True(t, dK.Shape().Equal(kernel.Shape()))

	assert.InDelta(t, lhs, dot(input.AsFloat32(), dX.AsFloat32()), 1e-2)
	assert.InDelta(t, lhs, dot(kernel.AsFloat32(), dK.AsFloat32()), 1e-2)
}

func TestConv2DKernelBackward_IndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 6))
	input := randomRaw(rng, tensor.Shape{5, 2, 8, 8})
	kernel := randomRaw(rng, tensor.Shape{3, 2, 3, 3})
	grad := randomRaw(rng, tensor.Shape{5, 3, 6, 6})

	seq := NewWithConfig(parallel.Config{Enabled: false})
	par := NewWithConfig(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1})

	assert.Equal(t,
		seq.Conv2DKernelBackward(input, kernel, grad, 1, 0).AsFloat32(),
		par.Conv2DKernelBackward(input, kernel, grad, 1, 0).AsFloat32())
}

func TestAdaptiveAvgPool2D_ExactWindows(t *testing.T) {
	backend := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i)
	}
	input := raw(t, tensor.Shape{1, 1, 4, 4}, data)

	out := backend.AdaptiveAvgPool2D(input, 2, 2)
	require.Equal(t, tensor.Shape{1, 1, 2, 2}, out.Shape())
	assert.Equal(t, []float32{2.5, 4.5, 10.5, 12.5}, out.AsFloat32())
}

func TestAdaptiveAvgPool2D_UnevenWindowsOverlap(t *testing.T) {
	backend := New()
	input := raw(t, tensor.Shape{1, 1, 1, 5}, []float32{1, 2, 3, 4, 5})

	// Windows over width 5 -> 3: [0,2), [1,4), [3,5).
	out := backend.AdaptiveAvgPool2D(input, 1, 3)
	assert.InDeltaSlice(t, []float32{1.5, 3, 4.5}, out.AsFloat32(), 1e-6)
}

func TestAdaptiveAvgPool2D_24To8(t *testing.T) {
	backend := New()
	input := tensor.MustNewRaw(tensor.Shape{2, 16, 24, 24}, tensor.Float32, tensor.CPU)
	for i := range input.AsFloat32() {
		input.AsFloat32()[i] = 1
	}
	out := backend.AdaptiveAvgPool2D(input, 8, 8)
	assert.Equal(t, tensor.Shape{2, 16, 8, 8}, out.Shape())
	for _, v := range out.AsFloat32() {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestAdaptiveAvgPool2DBackward_ConservesMass(t *testing.T) {
	backend := New()
	input := tensor.MustNewRaw(tensor.Shape{1, 1, 6, 6}, tensor.Float32, tensor.CPU)
	grad := raw(t, tensor.Shape{1, 1, 2, 2}, []float32{1, 2, 3, 4})

	dx := backend.AdaptiveAvgPool2DBackward(input, grad, 2, 2)
	var sum float32
	for _, v := range dx.AsFloat32() {
		sum += v
	}
	assert.InDelta(t, 10.0, sum, 1e-5)
	assert.InDelta(t, 1.0/9, dx.AsFloat32()[0], 1e-6)
}
