package ops

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// ReLUOp represents output = max(0, x).
//
// d(ReLU(x))/dx = 1 if x > 0, else 0, so the input gradient is the output
// gradient multiplied by a 0/1 mask of the input.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a new ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{input: input, output: output}
}

// Backward computes the input gradient for ReLU.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask, err := tensor.NewRaw(op.input.Shape(), tensor.Float32, backend.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}
	maskData := mask.AsFloat32()
	for i, v := range op.input.AsFloat32() {
		if v > 0 {
			maskData[i] = 1
		}
	}
	return []*tensor.RawTensor{backend.Mul(outputGrad, mask)}
}

// Inputs returns [x].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns max(0, x).
func (op *ReLUOp) Output() *tensor.RawTensor {
	return op.output
}
