package ops

import "github.com/born-ml/digitnet/internal/tensor"

// AdaptiveAvgPool2DOp records adaptive average pooling to a fixed grid.
type AdaptiveAvgPool2DOp struct {
	input      *tensor.RawTensor
	output     *tensor.RawTensor
	outH, outW int
}

// NewAdaptiveAvgPool2DOp creates a new AdaptiveAvgPool2DOp.
func NewAdaptiveAvgPool2DOp(input, output *tensor.RawTensor, outH, outW int) *AdaptiveAvgPool2DOp {
	return &AdaptiveAvgPool2DOp{input: input, output: output, outH: outH, outW: outW}
}

// Backward distributes each output gradient over its pooling window.
func (op *AdaptiveAvgPool2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AdaptiveAvgPool2DBackward(op.input, outputGrad, op.outH, op.outW)}
}

// Inputs returns [input].
func (op *AdaptiveAvgPool2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the pooled tensor.
func (op *AdaptiveAvgPool2DOp) Output() *tensor.RawTensor {
	return op.output
}
