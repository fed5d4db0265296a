package ops

import (
	"fmt"
	"math"

	"github.com/born-ml/digitnet/internal/tensor"
)

// CrossEntropyOp represents the mean cross-entropy loss over a batch.
//
// Backward:
//
//	∂L/∂logits[b,i] = (softmax(logits[b])[i] - y_one_hot[b,i]) / batch_size
//
// Only logits receive a gradient; targets are class indices.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor // [batch_size, num_classes]
	targets *tensor.RawTensor // [batch_size] int32
	output  *tensor.RawTensor // scalar
}

// NewCrossEntropyOp creates a new CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{logits: logits, targets: targets, output: output}
}

// Backward computes the gradient with respect to logits.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logits.Shape()
	if len(shape) != 2 {
		panic("cross_entropy: backward only supports 2D logits [batch_size, num_classes]")
	}
	batch, classes := shape[0], shape[1]

	logitsGrad, err := tensor.NewRaw(shape, tensor.Float32, op.logits.Device())
	if err != nil {
		panic(fmt.Sprintf("cross_entropy: %v", err))
	}

	logits := op.logits.AsFloat32()
	targets := op.targets.AsInt32()
	grad := logitsGrad.AsFloat32()
	scale := outputGrad.AsFloat32()[0] / float32(batch)

	probs := make([]float32, classes)
	for b := 0; b < batch; b++ {
		softmax(probs, logits[b*classes:(b+1)*classes])
		target := int(targets[b])
		for i, p := range probs {
			if i == target {
				p -= 1
			}
			grad[b*classes+i] = scale * p
		}
	}
	return []*tensor.RawTensor{logitsGrad}
}

// Inputs returns [logits]. Targets carry no gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss.
func (op *CrossEntropyOp) Output() *tensor.RawTensor {
	return op.output
}

// softmax writes softmax(z) into dst, subtracting max(z) first.
func softmax(dst, z []float32) {
	maxVal := z[0]
	for _, v := range z[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for i, v := range z {
		e := math.Exp(float64(v - maxVal))
		dst[i] = float32(e)
		sum += e
	}
	for i := range dst {
		dst[i] = float32(float64(dst[i]) / sum)
	}
}
