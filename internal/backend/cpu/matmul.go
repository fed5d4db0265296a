package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/digitnet/internal/tensor"
)

// MatMul performs 2D matrix multiplication: [M, K] @ [K, N] -> [M, N].
func (cpu *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: expected 2D tensors, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("matmul: inner dimensions mismatch: %v @ %v", aShape, bShape))
	}
	requireFloat32("matmul", a, b)

	m, k, n := aShape[0], aShape[1], bShape[1]
	result := cpu.alloc("matmul", tensor.Shape{m, n}, tensor.Float32)
	gemm(blas.NoTrans, blas.NoTrans,
		general(a.AsFloat32(), m, k),
		general(b.AsFloat32(), k, n),
		0,
		general(result.AsFloat32(), m, n))
	return result
}

// general wraps a row-major slice as a BLAS matrix.
func general(data []float32, rows, cols int) blas32.General {
	return blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: data}
}

// gemm computes c = op(a) @ op(b) + beta*c.
func gemm(tA, tB blas.Transpose, a, b blas32.General, beta float32, c blas32.General) {
	blas32.Gemm(tA, tB, 1, a, b, beta, c)
}
