package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b, func(x, y float32) float32 { return x + y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b, func(x, y float32) float32 { return x * y })
}

func (cpu *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)
	outShape, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", op, err))
	}
	result := cpu.alloc(op, outShape, tensor.Float32)
	out, ad, bd := result.AsFloat32(), a.AsFloat32(), b.AsFloat32()

	if a.Shape().Equal(b.Shape()) {
		for i := range out {
			out[i] = f(ad[i], bd[i])
		}
		return result
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	index := make([]int, len(outShape))
	ai, bi := 0, 0
	for i := range out {
		out[i] = f(ad[ai], bd[bi])

		// Advance the multi-index like an odometer, keeping source offsets in step.
		for d := len(outShape) - 1; d >= 0; d-- {
			index[d]++
			ai += aStrides[d]
			bi += bStrides[d]
			if index[d] < outShape[d] {
				break
			}
			ai -= aStrides[d] * outShape[d]
			bi -= bStrides[d] * outShape[d]
			index[d] = 0
		}
	}
	return result
}

// broadcastStrides returns strides of in expressed over out's dimensions,
// with 0 for dimensions that are broadcast.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for i := range in {
		if in[i] != 1 {
			strides[i+offset] = inStrides[i]
		}
	}
	return strides
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("relu", x)
	result := cpu.alloc("relu", x.Shape(), tensor.Float32)
	out := result.AsFloat32()
	for i, v := range x.AsFloat32() {
		if v > 0 {
			out[i] = v
		}
	}
	return result
}
