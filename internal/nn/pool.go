package nn

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// AdaptiveAvgPool2D averages each channel down to a fixed [outH, outW]
// grid, whatever the input spatial size.
//
// Input:  [batch, channels, height, width]
// Output: [batch, channels, outH, outW]
type AdaptiveAvgPool2D[B tensor.Backend] struct {
	outH, outW int
	backend    B
}

// NewAdaptiveAvgPool2D creates a pooling layer with the given output size.
func NewAdaptiveAvgPool2D[B tensor.Backend](outH, outW int, backend B) *AdaptiveAvgPool2D[B] {
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("adaptive_avg_pool2d: invalid output size %dx%d", outH, outW))
	}
	return &AdaptiveAvgPool2D[B]{outH: outH, outW: outW, backend: backend}
}

// Forward pools the input.
func (p *AdaptiveAvgPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return tensor.New[float32, B](p.backend.AdaptiveAvgPool2D(input.Raw(), p.outH, p.outW), p.backend)
}

// Parameters returns an empty slice.
func (p *AdaptiveAvgPool2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
