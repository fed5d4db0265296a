package ops

import "github.com/born-ml/digitnet/internal/tensor"

// Conv2DOp records a 2D convolution.
//
// Given ∂L/∂output [N, C_out, H_out, W_out] it produces
// ∂L/∂input [N, C_in, H, W] and ∂L/∂kernel [C_out, C_in, K_h, K_w]; the
// arithmetic lives in the backend's Conv2D*Backward kernels.
type Conv2DOp struct {
	input   *tensor.RawTensor
	kernel  *tensor.RawTensor
	output  *tensor.RawTensor
	stride  int
	padding int
}

// NewConv2DOp creates a new Conv2DOp.
func NewConv2DOp(input, kernel, output *tensor.RawTensor, stride, padding int) *Conv2DOp {
	return &Conv2DOp{
		input:   input,
		kernel:  kernel,
		output:  output,
		stride:  stride,
		padding: padding,
	}
}

// Backward computes gradients for the input and the kernel.
func (op *Conv2DOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Conv2DInputBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	kernelGrad := backend.Conv2DKernelBackward(op.input, op.kernel, outputGrad, op.stride, op.padding)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// Inputs returns [input, kernel].
func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the convolution output.
func (op *Conv2DOp) Output() *tensor.RawTensor {
	return op.output
}
