package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels, kernel_h, kernel_w]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Example:
//
//	conv := nn.NewConv2D("conv1", 1, 8, 3, 3, 1, 0, rng, backend)
//	output := conv.Forward(input) // [N, 1, 28, 28] -> [N, 8, 26, 26]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int

	weight *Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels]

	backend B
}

// NewConv2D creates a new 2D convolutional layer.
//
// Parameters are named name+".weight" and name+".bias".
//
// Initialization:
//   - Weights: Xavier/Glorot uniform drawn from rng
//   - Bias: Zeros
func NewConv2D[B tensor.Backend](
	name string,
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	// For Conv2D:
	//   fan_in = in_channels * kernel_h * kernel_w
	//   fan_out = out_channels * kernel_h * kernel_w
	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, tensor.Shape{outChannels, inChannels, kernelH, kernelW}, rng, backend)

	return &Conv2D[B]{
		inChannels:  inChannels,
		outChannels: outChannels,
		kernelSize:  [2]int{kernelH, kernelW},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter(name+".weight", weight),
		bias:        NewParameter(name+".bias", Zeros(tensor.Shape{outChannels}, backend)),
		backend:     backend,
	}
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(input.Raw(), c.weight.Tensor().Raw(), c.stride, c.padding)
	output := tensor.New[float32, B](outputRaw, c.backend)

	// Bias [out_channels] broadcasts as [1, out_channels, 1, 1].
	return output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
}

// Parameters returns [weight, bias].
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{c.weight, c.bias}
}

// String returns a string representation of the layer.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding)
}

// ComputeOutputSize computes output spatial dimensions for given input size.
//
// Returns: [out_height, out_width].
func (c *Conv2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*c.padding-c.kernelSize[0])/c.stride + 1
	outW := (inputW+2*c.padding-c.kernelSize[1])/c.stride + 1
	return [2]int{outH, outW}
}
