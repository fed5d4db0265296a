package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/digitnet/internal/tensor"
)

// CrossEntropy computes mean(-log_softmax(logits)[targets]) as a scalar.
//
// Uses the log-sum-exp trick for numerical stability:
//
//	log_softmax(z)_i = z_i - (max(z) + log Σ exp(z - max(z)))
func (cpu *CPUBackend) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	shape := logits.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("cross_entropy: logits must be 2D [batch, classes], got %v", shape))
	}
	if targets.DType() != tensor.Int32 || len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic(fmt.Sprintf("cross_entropy: targets must be int32 [%d], got %s %v", shape[0], targets.DType(), targets.Shape()))
	}
	requireFloat32("cross_entropy", logits)

	batch, classes := shape[0], shape[1]
	data, labels := logits.AsFloat32(), targets.AsInt32()

	var total float64
	for b := 0; b < batch; b++ {
		target := int(labels[b])
		if target < 0 || target >= classes {
			panic(fmt.Sprintf("cross_entropy: target %d out of range [0, %d)", target, classes))
		}
		row := data[b*classes : (b+1)*classes]
		total += logSumExp(row) - float64(row[target])
	}

	result := cpu.alloc("cross_entropy", tensor.Shape{}, tensor.Float32)
	result.AsFloat32()[0] = float32(total / float64(batch))
	return result
}

// logSumExp returns log Σ exp(z) computed stably in float64.
func logSumExp(z []float32) float64 {
	maxVal := z[0]
	for _, v := range z[1:] {
		if v > maxVal {
			maxVal = v
		}
	}
	var sum float64
	for _, v := range z {
		sum += math.Exp(float64(v - maxVal))
	}
	return float64(maxVal) + math.Log(sum)
}
