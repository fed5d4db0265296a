package ops

import "github.com/born-ml/digitnet/internal/tensor"

// MatMulOp represents output = a @ b for 2D matrices.
//
//	grad_a = outputGrad @ bᵀ
//	grad_b = aᵀ @ outputGrad
type MatMulOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// NewMatMulOp creates a new MatMulOp.
func NewMatMulOp(a, b, output *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{
		inputs: []*tensor.RawTensor{a, b},
		output: output,
	}
}

// Backward computes input gradients for matrix multiplication.
func (op *MatMulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := backend.MatMul(outputGrad, backend.Transpose(b))
	gradB := backend.MatMul(backend.Transpose(a), outputGrad)
	return []*tensor.RawTensor{gradA, gradB}
}

// Inputs returns [a, b].
func (op *MatMulOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns a @ b.
func (op *MatMulOp) Output() *tensor.RawTensor {
	return op.output
}
