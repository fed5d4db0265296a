package nn

import (
	"github.com/born-ml/digitnet/internal/tensor"
)

// ReLU applies f(x) = max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a new ReLU activation.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies ReLU.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input.ReLU()
}

// Parameters returns an empty slice (ReLU has no trainable parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
