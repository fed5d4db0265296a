package nn

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// CrossEntropyLoss computes mean cross-entropy between raw logits and
// integer class targets.
//
// Loss = -mean(log_softmax(logits)[targets])
//
// Example:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	loss := criterion.Forward(logits, targets) // scalar
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a new cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward computes the loss.
//
// Parameters:
//   - logits: [batch_size, num_classes]
//   - targets: [batch_size] class indices
//
// Returns a scalar tensor.
func (c *CrossEntropyLoss[B]) Forward(logits *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) *tensor.Tensor[float32, B] {
	if len(logits.Shape()) != 2 {
		panic(fmt.Sprintf("CrossEntropyLoss: expected 2D logits, got shape %v", logits.Shape()))
	}
	return tensor.New[float32, B](c.backend.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
}
