// Package nn implements the neural network layers used by the digit
// classifier.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Trainable parameters with gradient tracking
//   - Conv2D, Linear: layers with weights
//   - Dropout, ReLU, AdaptiveAvgPool2D: parameter-free layers
//   - CrossEntropyLoss
//   - StateDict/LoadStateDict: parameter records keyed by name
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/born-ml/digitnet/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	// Returns an empty slice for parameter-free modules.
	Parameters() []*Parameter[B]
}

// recorder is implemented by backends that track gradients, such as
// autodiff.AutodiffBackend.
type recorder interface {
	IsRecording() bool
}

// isTraining reports whether the backend is currently recording gradients.
// Plain backends never are.
func isTraining(backend any) bool {
	r, ok := backend.(recorder)
	return ok && r.IsRecording()
}
