// Package model defines DigitNet, the convolutional digit classifier, along
// with its training and validation steps and its parameter record.
package model

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// ModelType is written into checkpoint headers.
const ModelType = "DigitNet"

// Fixed architecture sizes.
const (
	conv1Channels = 8
	conv2Channels = 16
	kernelSize    = 3
	poolSize      = 8
	flatFeatures  = conv2Channels * poolSize * poolSize // 1024
)

// MinImageSize is the smallest height and width the two unpadded
// convolutions accept.
const MinImageSize = 2*(kernelSize-1) + 1

// Model is the DigitNet classifier.
//
// Architecture:
//
//	Input: [batch, H, W] -> [batch, 1, H, W]
//	Conv1: 1 → 8 channels, 3x3
//	Dropout
//	Conv2: 8 → 16 channels, 3x3
//	Dropout
//	ReLU
//	AdaptiveAvgPool: 8x8 -> [batch, 16, 8, 8]
//	Flatten -> [batch, 1024]
//	Linear1: 1024 → hidden
//	Dropout
//	ReLU
//	Linear2: hidden → num_classes (class scores)
//
// Dropout is active only while the backend records gradients.
type Model[B tensor.Backend] struct {
	cfg ModelConfig

	conv1    *nn.Conv2D[B]
	conv2    *nn.Conv2D[B]
	pool     *nn.AdaptiveAvgPool2D[B]
	dropout  *nn.Dropout[B]
	activate *nn.ReLU[B]
	linear1  *nn.Linear[B]
	linear2  *nn.Linear[B]
	loss     *nn.CrossEntropyLoss[B]

	backend B
}

// New builds a Model from a validated config.
//
// Weights are Xavier-uniform and biases zero, drawn from rng in layer
// order. Dropout masks come from a child generator seeded from rng, so the
// whole model is reproducible from one seed.
func New[B tensor.Backend](cfg ModelConfig, backend B, rng *rand.Rand) (*Model[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Model[B]{
		cfg:      cfg,
		conv1:    nn.NewConv2D("conv1", 1, conv1Channels, kernelSize, kernelSize, 1, 0, rng, backend),
		conv2:    nn.NewConv2D("conv2", conv1Channels, conv2Channels, kernelSize, kernelSize, 1, 0, rng, backend),
		pool:     nn.NewAdaptiveAvgPool2D(poolSize, poolSize, backend),
		activate: nn.NewReLU[B](),
		linear1:  nn.NewLinear("linear1", flatFeatures, cfg.HiddenSize, rng, backend),
		linear2:  nn.NewLinear("linear2", cfg.HiddenSize, cfg.NumClasses, rng, backend),
		loss:     nn.NewCrossEntropyLoss(backend),
		backend:  backend,
	}
	child := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64())) //nolint:gosec // reproducible masks, not crypto
	m.dropout = nn.NewDropout(cfg.DropoutRate, child, backend)
	return m, nil
}

// Config returns the model's configuration.
func (m *Model[B]) Config() ModelConfig {
	return m.cfg
}

// Backend returns the model's backend.
func (m *Model[B]) Backend() B {
	return m.backend
}

// CheckInput reports whether images of the given shape can go through
// Forward. Failures wrap data.ErrShapeMismatch.
func (m *Model[B]) CheckInput(shape tensor.Shape) error {
	if len(shape) != 3 {
		return fmt.Errorf("%w: expected [batch, H, W], got %v", data.ErrShapeMismatch, shape)
	}
	if shape[1] < MinImageSize || shape[2] < MinImageSize {
		return fmt.Errorf("%w: images are %dx%d, need at least %dx%d",
			data.ErrShapeMismatch, shape[1], shape[2], MinImageSize, MinImageSize)
	}
	return nil
}

// Forward computes raw class scores. It panics on shapes CheckInput rejects.
//
// Parameters:
//   - images: [batch, H, W] normalized intensities, H and W at least 5
//
// Returns:
//   - scores: [batch, num_classes] logits (no softmax)
func (m *Model[B]) Forward(images *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := images.Shape()
	if err := m.CheckInput(shape); err != nil {
		panic("model: " + err.Error())
	}
	batch := shape[0]

	x := images.Reshape(batch, 1, shape[1], shape[2])
	x = m.conv1.Forward(x)
	x = m.dropout.Forward(x)
	x = m.conv2.Forward(x)
	x = m.dropout.Forward(x)
	x = m.activate.Forward(x)
	x = m.pool.Forward(x) // [batch, 16, 8, 8]

	x = x.Reshape(batch, flatFeatures)
	x = m.linear1.Forward(x)
	x = m.dropout.Forward(x)
	x = m.activate.Forward(x)
	return m.linear2.Forward(x) // [batch, num_classes]
}

// ClassificationOutput is the result of a forward pass with loss.
type ClassificationOutput[B tensor.Backend] struct {
	Loss    *tensor.Tensor[float32, B] // scalar mean cross-entropy
	Scores  *tensor.Tensor[float32, B] // [batch, num_classes]
	Targets *tensor.Tensor[int32, B]   // [batch]
}

// ForwardClassification runs Forward and computes the mean cross-entropy
// against targets.
func (m *Model[B]) ForwardClassification(images *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) ClassificationOutput[B] {
	scores := m.Forward(images)
	return ClassificationOutput[B]{
		Loss:    m.loss.Forward(scores, targets),
		Scores:  scores,
		Targets: targets,
	}
}

// Parameters returns all trainable parameters in layer order.
func (m *Model[B]) Parameters() []*nn.Parameter[B] {
	params := make([]*nn.Parameter[B], 0, 8)
	params = append(params, m.conv1.Parameters()...)
	params = append(params, m.conv2.Parameters()...)
	params = append(params, m.linear1.Parameters()...)
	params = append(params, m.linear2.Parameters()...)
	return params
}

// NumParameters returns the total number of trainable scalars.
func (m *Model[B]) NumParameters() int {
	n := 0
	for _, p := range m.Parameters() {
		n += p.Tensor().NumElements()
	}
	return n
}

// String returns a string representation of the model architecture.
func (m *Model[B]) String() string {
	return fmt.Sprintf(`DigitNet(
  %s
  Dropout(p=%v)
  %s
  Dropout(p=%v)
  ReLU()
  AdaptiveAvgPool2D(output_size=(%d, %d))
  Linear(in=%d, out=%d)
  Dropout(p=%v)
  ReLU()
  Linear(in=%d, out=%d)
)`,
		m.conv1.String(), m.dropout.Rate(),
		m.conv2.String(), m.dropout.Rate(),
		poolSize, poolSize,
		flatFeatures, m.cfg.HiddenSize, m.dropout.Rate(),
		m.cfg.HiddenSize, m.cfg.NumClasses,
	)
}
