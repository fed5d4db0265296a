// Package autodiff implements reverse-mode automatic differentiation as a
// backend decorator.
//
// AutodiffBackend wraps any tensor.Backend and, while its GradientTape is
// recording, appends one ops.Operation per differentiable kernel call.
// Backward walks the tape in reverse and applies the chain rule.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	y := x.Mul(x)                            // y = x²
//	grads, _ := autodiff.Backward(y, backend) // grads[x.Raw()] = 2x = 4
package autodiff

import (
	"github.com/born-ml/digitnet/internal/autodiff/ops"
	"github.com/born-ml/digitnet/internal/tensor"
)

// AutodiffBackend wraps a Backend and records differentiable operations.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

var _ BackwardCapable = (*AutodiffBackend[tensor.Backend])(nil)

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// IsRecording reports whether operations are currently being recorded.
// Layers use it to tell training passes from evaluation passes.
func (b *AutodiffBackend[B]) IsRecording() bool {
	return b.tape.IsRecording()
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, result))
	}
	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Mul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, result))
	}
	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.MatMul(x, y)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(x, y, result))
	}
	return result
}

// Reshape changes shape and records the operation.
func (b *AutodiffBackend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	result := b.inner.Reshape(t, newShape)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(t, result))
	}
	return result
}

// Transpose transposes a 2D tensor and records the operation.
func (b *AutodiffBackend[B]) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Transpose(t)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(t, result))
	}
	return result
}

// Conv2D performs 2D convolution and records the operation.
func (b *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	result := b.inner.Conv2D(input, kernel, stride, padding)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewConv2DOp(input, kernel, result, stride, padding))
	}
	return result
}

// Conv2DInputBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DInputBackward(input, kernel, grad, stride, padding)
}

// Conv2DKernelBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return b.inner.Conv2DKernelBackward(input, kernel, grad, stride, padding)
}

// AdaptiveAvgPool2D pools to a fixed grid and records the operation.
func (b *AutodiffBackend[B]) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	result := b.inner.AdaptiveAvgPool2D(input, outH, outW)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAdaptiveAvgPool2DOp(input, result, outH, outW))
	}
	return result
}

// AdaptiveAvgPool2DBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) AdaptiveAvgPool2DBackward(input, grad *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	return b.inner.AdaptiveAvgPool2DBackward(input, grad, outH, outW)
}

// ReLU applies max(0, x) and records the operation.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.ReLU(x)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}
	return result
}

// CrossEntropy computes mean cross-entropy loss and records the operation.
func (b *AutodiffBackend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.CrossEntropy(logits, targets)
	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	}
	return result
}

// SumDim delegates to the wrapped backend. It is used by backward rules
// and is not itself differentiated.
func (b *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return b.inner.SumDim(x, dim, keepDim)
}

// Argmax delegates to the wrapped backend; it has no gradient.
func (b *AutodiffBackend[B]) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	return b.inner.Argmax(x, dim)
}
