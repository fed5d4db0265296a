package optim_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/optim"
	"github.com/born-ml/digitnet/internal/tensor"
)

func param(t *testing.T, backend *cpu.CPUBackend, values ...float32) *nn.Parameter[*cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	require.NoError(t, err)
	return nn.NewParameter("p", x)
}

func grads(t *testing.T, p *nn.Parameter[*cpu.CPUBackend], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	g := tensor.MustNewRaw(tensor.Shape{len(values)}, tensor.Float32, tensor.CPU)
	copy(g.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{p.Tensor().Raw(): g}
}

func TestSGD_Step(t *testing.T) {
	backend := cpu.New()
	p := param(t, backend, 1, 2)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 0.1}, backend)

	opt.Step(grads(t, p, 1, -2))
	assert.InDeltaSlice(t, []float32{0.9, 2.2}, p.Tensor().Data(), 1e-6)
	require.NotNil(t, p.Grad())

	opt.ZeroGrad()
	assert.Nil(t, p.Grad())
	assert.InDelta(t, 0.1, opt.GetLR(), 1e-7)
}

func TestSGD_Momentum(t *testing.T) {
	backend := cpu.New()
	p := param(t, backend, 0)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 1, Momentum: 0.5}, backend)

	opt.Step(grads(t, p, 1)) // v = 1, p = -1
	opt.Step(grads(t, p, 1)) // v = 1.5, p = -2.5
	assert.InDelta(t, -2.5, p.Tensor().Data()[0], 1e-6)
}

func TestSGD_WeightDecay(t *testing.T) {
	backend := cpu.New()
	p := param(t, backend, 2)
	opt := optim.NewSGD([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.SGDConfig{LR: 0.5, WeightDecay: 0.5}, backend)

	opt.Step(grads(t, p, 0))
	assert.InDelta(t, 1.5, p.Tensor().Data()[0], 1e-6)
}

func TestAdam_FirstStepMovesByLR(t *testing.T) {
	backend := cpu.New()
	p := param(t, backend, 1, 1)
	opt := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.AdamConfig{LR: 0.01}, backend)

	// After bias correction the first update is lr * g/|g|.
	opt.Step(grads(t, p, 3, -0.5))
	assert.InDeltaSlice(t, []float32{0.99, 1.01}, p.Tensor().Data(), 1e-5)
	assert.Equal(t, 1, opt.GetTimestep())
}

func TestAdam_SkipsMissingGradients(t *testing.T) {
	backend := cpu.New()
	p := param(t, backend, 1)
	opt := optim.NewAdam([]*nn.Parameter[*cpu.CPUBackend]{p}, optim.AdamConfig{}, backend)

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})
	assert.Equal(t, []float32{1}, p.Tensor().Data())
	assert.InDelta(t, 0.001, opt.GetLR(), 1e-9)
}

func TestBuild(t *testing.T) {
	backend := cpu.New()
	params := []*nn.Parameter[*cpu.CPUBackend]{param(t, backend, 1)}

	opt, err := optim.Build(optim.DefaultConfig(), 1e-4, params, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam[*cpu.CPUBackend]{}, opt)
	assert.InDelta(t, 1e-4, opt.GetLR(), 1e-9)

	opt, err = optim.Build(optim.Config{Kind: optim.KindSGD, Momentum: 0.9}, 0.1, params, backend)
	require.NoError(t, err)
	assert.IsType(t, &optim.SGD[*cpu.CPUBackend]{}, opt)

	_, err = optim.Build(optim.Config{Kind: "rmsprop"}, 0.1, params, backend)
	assert.ErrorContains(t, err, "unknown optimizer")

	_, err = optim.Build(optim.DefaultConfig(), math.NaN(), params, backend)
	assert.ErrorContains(t, err, "learning rate")

	_, err = optim.Build(optim.DefaultConfig(), 0, params, backend)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := optim.DefaultConfig()
	require.NoError(t, cfg.Validate())

	cfg.Beta1 = 1
	assert.Error(t, cfg.Validate())

	cfg = optim.DefaultConfig()
	cfg.Epsilon = 0
	assert.Error(t, cfg.Validate())

	cfg = optim.DefaultConfig()
	cfg.WeightDecay = -1
	assert.Error(t, cfg.Validate())
}
