package nn_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestParameter(t *testing.T) {
	backend := autodiff.New(cpu.New())

	data, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param := nn.NewParameter("test_param", data)

	assert.Equal(t, "test_param", param.Name())
	assert.Same(t, data, param.Tensor())
	assert.Nil(t, param.Grad())

	grad, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3}, tensor.Shape{3}, backend)
	require.NoError(t, err)
	param.SetGrad(grad)
	assert.Same(t, grad, param.Grad())

	param.ZeroGrad()
	assert.Nil(t, param.Grad())
}

func TestXavier_BoundsAndDeterminism(t *testing.T) {
	backend := cpu.New()
	a := nn.Xavier(20, 30, tensor.Shape{30, 20}, seeded(7), backend)
	b := nn.Xavier(20, 30, tensor.Shape{30, 20}, seeded(7), backend)

	bound := float32(math.Sqrt(6.0 / 50.0))
	for _, v := range a.Data() {
		assert.LessOrEqual(t, v, bound)
		assert.GreaterOrEqual(t, v, -bound)
	}
	assert.Equal(t, a.Data(), b.Data())
}

func TestConv2D_ForwardShapeAndNames(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D("conv1", 1, 8, 3, 3, 1, 0, seeded(1), backend)

	input := tensor.Zeros[float32](tensor.Shape{2, 1, 28, 28}, backend)
	out := conv.Forward(input)
	assert.Equal(t, tensor.Shape{2, 8, 26, 26}, out.Shape())
	assert.Equal(t, [2]int{26, 26}, conv.ComputeOutputSize(28, 28))

	params := conv.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "conv1.weight", params[0].Name())
	assert.Equal(t, "conv1.bias", params[1].Name())
	assert.Equal(t, tensor.Shape{8, 1, 3, 3}, params[0].Tensor().Shape())
	assert.Equal(t, tensor.Shape{8}, params[1].Tensor().Shape())
}

func TestConv2D_BiasBroadcastsPerChannel(t *testing.T) {
	backend := cpu.New()
	conv := nn.NewConv2D("c", 1, 2, 1, 1, 1, 0, seeded(1), backend)
	copy(conv.Parameters()[0].Tensor().Data(), []float32{0, 0})
	copy(conv.Parameters()[1].Tensor().Data(), []float32{1, -1})

	out := conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 2, 2}, backend))
	assert.Equal(t, []float32{1, 1, 1, 1, -1, -1, -1, -1}, out.Data())
}

func TestLinear_Forward(t *testing.T) {
	backend := cpu.New()
	layer := nn.NewLinear("fc", 3, 2, seeded(1), backend)
	copy(layer.Weight().Tensor().Data(), []float32{1, 0, 0, 0, 1, 1})
	copy(layer.Bias().Tensor().Data(), []float32{10, 20})

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	out := layer.Forward(x)
	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{11, 25, 14, 31}, out.Data())
}

func TestDropout_InactiveWithoutRecording(t *testing.T) {
	backend := autodiff.New(cpu.New())
	drop := nn.NewDropout(0.5, seeded(3), backend)

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{4}, backend)
	require.NoError(t, err)
	assert.Same(t, x, drop.Forward(x))

	plain := nn.NewDropout(0.5, seeded(3), cpu.New())
	y, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, cpu.New())
	require.NoError(t, err)
	assert.Same(t, y, plain.Forward(y))
}

func TestDropout_TrainingMask(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()
	drop := nn.NewDropout(0.5, seeded(3), backend)

	ones := make([]float32, 1000)
	for i := range ones {
		ones[i] = 1
	}
	x, err := tensor.FromSlice(ones, tensor.Shape{1000}, backend)
	require.NoError(t, err)

	kept := 0
	for _, v := range drop.Forward(x).Data() {
		if v != 0 {
			assert.InDelta(t, 2.0, v, 1e-6)
			kept++
		}
	}
	assert.InDelta(t, 500, kept, 80)
}

func TestDropout_Extremes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	x, err := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	require.NoError(t, err)

	assert.Same(t, x, nn.NewDropout(0, seeded(1), backend).Forward(x))
	assert.Equal(t, []float32{0, 0, 0}, nn.NewDropout(1, seeded(1), backend).Forward(x).Data())
	assert.Panics(t, func() { nn.NewDropout(1.5, seeded(1), backend) })
}

func TestAdaptiveAvgPool2D_AndReLU(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{-1, 3, 5, -7}, tensor.Shape{1, 1, 2, 2}, backend)
	require.NoError(t, err)

	relu := nn.NewReLU[*cpu.CPUBackend]()
	assert.Equal(t, []float32{0, 3, 5, 0}, relu.Forward(x).Data())
	assert.Empty(t, relu.Parameters())

	pool := nn.NewAdaptiveAvgPool2D(1, 1, backend)
	out := pool.Forward(relu.Forward(x))
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, out.Shape())
	assert.InDelta(t, 2.0, out.Data()[0], 1e-6)
}

func TestCrossEntropyLoss_UniformLogits(t *testing.T) {
	backend := cpu.New()
	logits := tensor.Zeros[float32](tensor.Shape{2, 4}, backend)
	targets, err := tensor.FromSlice([]int32{0, 3}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	loss := nn.NewCrossEntropyLoss(backend).Forward(logits, targets)
	assert.InDelta(t, math.Log(4), loss.Data()[0], 1e-6)
}

func TestLoadStateDict(t *testing.T) {
	backend := cpu.New()
	src := nn.NewLinear("fc", 3, 2, seeded(1), backend)
	dst := nn.NewLinear("fc", 3, 2, seeded(2), backend)

	require.NoError(t, nn.LoadStateDict(dst.Parameters(), nn.StateDict(src.Parameters())))
	assert.Equal(t, src.Weight().Tensor().Data(), dst.Weight().Tensor().Data())

	// Shape mismatch.
	other := nn.NewLinear("fc", 4, 2, seeded(1), backend)
	err := nn.LoadStateDict(dst.Parameters(), nn.StateDict(other.Parameters()))
	assert.ErrorContains(t, err, "fc.weight shape mismatch")

	// Missing and extra names.
	sd := nn.StateDict(src.Parameters())
	delete(sd, "fc.bias")
	assert.ErrorContains(t, nn.LoadStateDict(dst.Parameters(), sd), "missing fc.bias")

	sd = nn.StateDict(src.Parameters())
	sd["fc.extra"] = tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	assert.ErrorContains(t, nn.LoadStateDict(dst.Parameters(), sd), "unexpected tensors in state dict: fc.extra")

	// Dtype mismatch.
	sd = nn.StateDict(src.Parameters())
	sd["fc.bias"] = tensor.MustNewRaw(tensor.Shape{2}, tensor.Int32, tensor.CPU)
	assert.ErrorContains(t, nn.LoadStateDict(dst.Parameters(), sd), "dtype mismatch")
}
