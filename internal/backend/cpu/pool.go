package cpu

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/parallel"
	"github.com/born-ml/digitnet/internal/tensor"
)

// adaptiveWindow returns the input range [start, end) pooled into output
// index i when size inputs map onto out outputs.
func adaptiveWindow(i, size, out int) (start, end int) {
	start = (i * size) / out
	end = ((i+1)*size + out - 1) / out
	return start, end
}

func poolDims(op string, input *tensor.RawTensor, outH, outW int) (n, c, h, w int) {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %v", op, shape))
	}
	if outH <= 0 || outW <= 0 {
		panic(fmt.Sprintf("%s: invalid output size %dx%d", op, outH, outW))
	}
	requireFloat32(op, input)
	return shape[0], shape[1], shape[2], shape[3]
}

// AdaptiveAvgPool2D averages each [H, W] plane into an [outH, outW] grid.
//
// Output cell (i, j) averages rows [⌊i·H/outH⌋, ⌈(i+1)·H/outH⌉) and the
// matching column window, so any input size maps onto the fixed grid.
func (cpu *CPUBackend) AdaptiveAvgPool2D(input *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	n, c, h, w := poolDims("adaptive_avg_pool2d", input, outH, outW)
	output := cpu.alloc("adaptive_avg_pool2d", tensor.Shape{n, c, outH, outW}, tensor.Float32)
	in, out := input.AsFloat32(), output.AsFloat32()

	parallel.ForBatch(n, c, func(b, ch int) {
		src := in[(b*c+ch)*h*w:]
		dst := out[(b*c+ch)*outH*outW:]
		for i := 0; i < outH; i++ {
			h0, h1 := adaptiveWindow(i, h, outH)
			for j := 0; j < outW; j++ {
				w0, w1 := adaptiveWindow(j, w, outW)
				var sum float32
				for y := h0; y < h1; y++ {
					for x := w0; x < w1; x++ {
						sum += src[y*w+x]
					}
				}
				dst[i*outW+j] = sum / float32((h1-h0)*(w1-w0))
			}
		}
	}, cpu.par.Coarse())

	return output
}

// AdaptiveAvgPool2DBackward spreads each output gradient evenly over the
// input window it averaged.
func (cpu *CPUBackend) AdaptiveAvgPool2DBackward(input, grad *tensor.RawTensor, outH, outW int) *tensor.RawTensor {
	n, c, h, w := poolDims("adaptive_avg_pool2d_backward", input, outH, outW)
	if want := (tensor.Shape{n, c, outH, outW}); !grad.Shape().Equal(want) {
		panic(fmt.Sprintf("adaptive_avg_pool2d_backward: gradient shape %v, expected %v", grad.Shape(), want))
	}
	inputGrad := cpu.alloc("adaptive_avg_pool2d_backward", input.Shape(), tensor.Float32)
	g, dx := grad.AsFloat32(), inputGrad.AsFloat32()

	parallel.ForBatch(n, c, func(b, ch int) {
		src := g[(b*c+ch)*outH*outW:]
		dst := dx[(b*c+ch)*h*w:]
		for i := 0; i < outH; i++ {
			h0, h1 := adaptiveWindow(i, h, outH)
			for j := 0; j < outW; j++ {
				w0, w1 := adaptiveWindow(j, w, outW)
				share := src[i*outW+j] / float32((h1-h0)*(w1-w0))
				for y := h0; y < h1; y++ {
					for x := w0; x < w1; x++ {
						dst[y*w+x] += share
					}
				}
			}
		}
	}, cpu.par.Coarse())

	return inputGrad
}
