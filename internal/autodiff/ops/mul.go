package ops

import "github.com/born-ml/digitnet/internal/tensor"

// MulOp represents output = a * b element-wise.
//
//	grad_a = outputGrad * b
//	grad_b = outputGrad * a
type MulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMulOp creates a new MulOp.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape(), backend),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape(), backend),
	}
}

// Inputs returns [a, b].
func (op *MulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns a * b.
func (op *MulOp) Output() *tensor.RawTensor {
	return op.output
}
