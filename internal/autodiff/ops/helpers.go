package ops

import "github.com/born-ml/digitnet/internal/tensor"

// reduceBroadcast sums a gradient down to targetShape, undoing the
// broadcasting applied in the forward pass.
//
//	Forward:  a[3,1] + b[3,4] -> c[3,4]
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	if grad.Shape().Equal(targetShape) {
		return grad
	}

	result := grad
	// Leading dimensions that the target does not have.
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	for i, dim := range targetShape {
		if dim == 1 && result.Shape()[i] > 1 {
			result = backend.SumDim(result, i, true)
		}
	}
	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}
