package tensor

// Backend defines the kernels a compute backend must implement.
//
// Forward kernels are used by models; the *Backward kernels are used by
// autodiff operations when propagating gradients. All kernels allocate their
// result and never modify their inputs.
type Backend interface {
	// Element-wise binary operations with NumPy broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// MatMul multiplies 2D matrices: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor) *RawTensor

	// Conv2D convolves [N, C_in, H, W] with [C_out, C_in, K_h, K_w].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	Conv2DInputBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor
	Conv2DKernelBackward(input, kernel, grad *RawTensor, stride, padding int) *RawTensor

	// AdaptiveAvgPool2D averages [N, C, H, W] down (or up) to [N, C, outH, outW].
	AdaptiveAvgPool2D(input *RawTensor, outH, outW int) *RawTensor
	AdaptiveAvgPool2DBackward(input, grad *RawTensor, outH, outW int) *RawTensor

	// ReLU computes max(0, x) element-wise.
	ReLU(x *RawTensor) *RawTensor

	// CrossEntropy returns the mean cross-entropy of logits [N, C]
	// against int32 class indices [N] as a scalar.
	CrossEntropy(logits, targets *RawTensor) *RawTensor

	// Reductions.
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	Argmax(x *RawTensor, dim int) *RawTensor

	// Name returns the backend name (e.g., "CPU").
	Name() string

	// Device returns the compute device.
	Device() Device
}
