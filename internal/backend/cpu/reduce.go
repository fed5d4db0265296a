package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

func normalizeDim(op string, dim, ndim int) int {
	if dim < 0 {
		dim += ndim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("%s: dimension %d out of range for %dD tensor", op, dim, ndim))
	}
	return dim
}

// reduceLayout splits shape around dim into outer × size × inner.
func reduceLayout(shape tensor.Shape, dim int) (outer, size, inner int) {
	outer, inner = 1, 1
	for i := 0; i < dim; i++ {
		outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, shape[dim], inner
}

func reducedShape(shape tensor.Shape, dim int, keepDim bool) tensor.Shape {
	if keepDim {
		out := shape.Clone()
		out[dim] = 1
		return out
	}
	out := make(tensor.Shape, 0, len(shape)-1)
	for i, d := range shape {
		if i != dim {
			out = append(out, d)
		}
	}
	return out
}

// SumDim sums along dimension dim.
//
//	x := [2, 3, 4]
//	SumDim(x, -1, true)   // [2, 3, 1]
//	SumDim(x, -1, false)  // [2, 3]
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim("sumdim", dim, len(shape))
	requireFloat32("sumdim", x)

	result := cpu.alloc("sumdim", reducedShape(shape, dim, keepDim), tensor.Float32)
	src, dst := x.AsFloat32(), result.AsFloat32()
	outer, size, inner := reduceLayout(shape, dim)
	for o := 0; o < outer; o++ {
		for k := 0; k < size; k++ {
			row := src[(o*size+k)*inner:]
			for i := 0; i < inner; i++ {
				dst[o*inner+i] += row[i]
			}
		}
	}
	return result
}

// Argmax returns the int32 index of the maximum along dim (dim removed).
// Ties resolve to the lowest index.
func (cpu *CPUBackend) Argmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim("argmax", dim, len(shape))
	result := cpu.alloc("argmax", reducedShape(shape, dim, false), tensor.Int32)

	switch x.DType() {
	case tensor.Float32:
		argmax(x.AsFloat32(), result.AsInt32(), shape, dim)
	case tensor.Int32:
		argmax(x.AsInt32(), result.AsInt32(), shape, dim)
	default:
		panic(fmt.Sprintf("argmax: unsupported dtype %s", x.DType()))
	}
	return result
}

func argmax[T float32 | int32](data []T, result []int32, shape tensor.Shape, dim int) {
	outer, size, inner := reduceLayout(shape, dim)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*size*inner + i
			best, bestIdx := data[base], 0
			for k := 1; k < size; k++ {
				if v := data[base+k*inner]; v > best {
					best, bestIdx = v, k
				}
			}
			result[o*inner+i] = int32(bestIdx)
		}
	}
}
