// Package ops defines the differentiable operations recorded on a gradient
// tape and their backward rules.
//
// Supported operations:
//   - AddOp, MulOp: element-wise with broadcasting
//   - MatMulOp: d(A@B)/dA = grad@Bᵀ, d(A@B)/dB = Aᵀ@grad
//   - TransposeOp, ReshapeOp: gradient is the inverse shape transform
//   - Conv2DOp, AdaptiveAvgPool2DOp: delegate to backend backward kernels
//   - ReLUOp: grad masked where input ≤ 0
//   - CrossEntropyOp: (softmax(logits) - onehot) / batch
package ops

import "github.com/born-ml/digitnet/internal/tensor"

// Operation represents a differentiable operation in the computation graph.
// Each operation records its inputs and output during the forward pass and
// computes input gradients during the backward pass.
type Operation interface {
	// Backward returns one gradient per input, in Inputs() order. A nil
	// entry means no gradient flows to that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.RawTensor
}
