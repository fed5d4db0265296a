package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Reshape returns a new tensor header sharing t's buffer.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	v, err := t.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return v
}

// Transpose swaps the dimensions of a 2D tensor into a new buffer.
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor) *tensor.RawTensor {
	shape := t.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("transpose: expected 2D tensor, got shape %v", shape))
	}
	requireFloat32("transpose", t)
	rows, cols := shape[0], shape[1]
	result := cpu.alloc("transpose", tensor.Shape{cols, rows}, tensor.Float32)
	src, dst := t.AsFloat32(), result.AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[j*rows+i] = src[i*cols+j]
		}
	}
	return result
}
