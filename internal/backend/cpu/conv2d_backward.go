package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/digitnet/internal/parallel"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Conv2DInputBackward computes ∂L/∂input for Conv2D.
//
// Per sample: dcol = kernelᵀ @ grad_n, then col2im(dcol) scatters the patch
// gradients back onto [C_in, H, W].
func (cpu *CPUBackend) Conv2DInputBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d_input_backward", input, kernel, stride, padding)
	checkConvGrad("conv2d_input_backward", grad, g)
	inputGrad := cpu.alloc("conv2d_input_backward", input.Shape(), tensor.Float32)

	kernelMat := general(kernel.AsFloat32(), g.COut, g.patch())
	gradData := grad.AsFloat32()
	inputGradData := inputGrad.AsFloat32()
	sampleIn := g.CIn * g.H * g.W
	sampleOut := g.COut * g.plane()

	parallel.For(g.N, func(n int) {
		dcol := make([]float32, g.patch()*g.plane())
		gemm(blas.Trans, blas.NoTrans,
			kernelMat,
			general(gradData[n*sampleOut:(n+1)*sampleOut], g.COut, g.plane()),
			0,
			general(dcol, g.patch(), g.plane()))
		col2im(inputGradData[n*sampleIn:(n+1)*sampleIn], dcol, g)
	}, cpu.par.Coarse())

	return inputGrad
}

// Conv2DKernelBackward computes ∂L/∂kernel for Conv2D.
//
// dK = Σ_n grad_n @ col_nᵀ. Samples are accumulated in index order so the
// result does not depend on scheduling.
func (cpu *CPUBackend) Conv2DKernelBackward(input, kernel, grad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d_kernel_backward", input, kernel, stride, padding)
	checkConvGrad("conv2d_kernel_backward", grad, g)
	kernelGrad := cpu.alloc("conv2d_kernel_backward", kernel.Shape(), tensor.Float32)

	inputData := input.AsFloat32()
	gradData := grad.AsFloat32()
	dK := general(kernelGrad.AsFloat32(), g.COut, g.patch())
	sampleIn := g.CIn * g.H * g.W
	sampleOut := g.COut * g.plane()

	// Unroll every sample up front (in parallel, disjoint buffers), then reduce.
	cols := make([][]float32, g.N)
	parallel.For(g.N, func(n int) {
		cols[n] = make([]float32, g.patch()*g.plane())
		im2col(cols[n], inputData[n*sampleIn:(n+1)*sampleIn], g)
	}, cpu.par.Coarse())

	for n := 0; n < g.N; n++ {
		gemm(blas.NoTrans, blas.Trans,
			general(gradData[n*sampleOut:(n+1)*sampleOut], g.COut, g.plane()),
			general(cols[n], g.patch(), g.plane()),
			1,
			dK)
	}

	return kernelGrad
}

func checkConvGrad(op string, grad *tensor.RawTensor, g convGeom) {
	want := tensor.Shape{g.N, g.COut, g.HOut, g.WOut}
	if !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("%s: output gradient shape %v, expected %v", op, grad.Shape(), want))
	}
	requireFloat32(op, grad)
}
