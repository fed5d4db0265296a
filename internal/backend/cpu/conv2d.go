package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"

	"github.com/born-ml/digitnet/internal/parallel"
	"github.com/born-ml/digitnet/internal/tensor"
)

// convGeom holds the dimensions of one Conv2D call.
type convGeom struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

// patch is the im2col row count (C_in * K_h * K_w).
func (g convGeom) patch() int { return g.CIn * g.KH * g.KW }

// plane is the number of output positions per sample.
func (g convGeom) plane() int { return g.HOut * g.WOut }

func newConvGeom(op string, input, kernel *tensor.RawTensor, stride, padding int) convGeom {
	inputShape, kernelShape := input.Shape(), kernel.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride=%d padding=%d", op, stride, padding))
	}
	if inputShape[1] != kernelShape[1] {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, inputShape[1], kernelShape[1]))
	}
	requireFloat32(op, input, kernel)

	g := convGeom{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// Conv2D performs 2D convolution using im2col + GEMM.
//
// Input shape:  [N, C_in, H, W]
// Kernel shape: [C_out, C_in, K_h, K_w]
// Output shape: [N, C_out, H_out, W_out]
//
// For every sample n the input patches are unrolled into a column matrix
// col[C_in*K_h*K_w, H_out*W_out], and the output plane is kernel @ col.
// Samples are independent and computed in parallel.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeom("conv2d", input, kernel, stride, padding)
	output := cpu.alloc("conv2d", tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, tensor.Float32)

	inputData := input.AsFloat32()
	kernelMat := general(kernel.AsFloat32(), g.COut, g.patch())
	outputData := output.AsFloat32()
	sampleIn := g.CIn * g.H * g.W
	sampleOut := g.COut * g.plane()

	parallel.For(g.N, func(n int) {
		col := make([]float32, g.patch()*g.plane())
		im2col(col, inputData[n*sampleIn:(n+1)*sampleIn], g)
		gemm(blas.NoTrans, blas.NoTrans,
			kernelMat,
			general(col, g.patch(), g.plane()),
			0,
			general(outputData[n*sampleOut:(n+1)*sampleOut], g.COut, g.plane()))
	}, cpu.par.Coarse())

	return output
}

// im2col unrolls one sample [C, H, W] into col[C*K_h*K_w, H_out*W_out].
// Row r = c*K_h*K_w + kh*K_w + kw; column p = oh*W_out + ow. Positions that
// fall into padding stay zero.
func im2col(col, sample []float32, g convGeom) {
	plane := g.plane()
	for c := 0; c < g.CIn; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := col[((c*g.KH+kh)*g.KW+kw)*plane:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w < 0 || w >= g.W {
							continue
						}
						row[oh*g.WOut+ow] = sample[(c*g.H+h)*g.W+w]
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatters col back into one sample,
// accumulating overlapping patches.
func col2im(sample, col []float32, g convGeom) {
	plane := g.plane()
	for c := 0; c < g.CIn; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := col[((c*g.KH+kh)*g.KW+kw)*plane:]
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w < 0 || w >= g.W {
							continue
						}
						sample[(c*g.H+h)*g.W+w] += row[oh*g.WOut+ow]
					}
				}
			}
		}
	}
}
