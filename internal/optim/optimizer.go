// Package optim implements optimization algorithms for training neural networks.
//
// This package provides:
//   - Optimizer interface: Base interface for all optimizers
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation
//   - Config/Build: serializable optimizer selection
//
// Example usage:
//
//	optimizer, err := optim.Build(cfg.Optimizer, cfg.LearningRate, model.Parameters(), backend)
//
//	for _, batch := range batches {
//	    optimizer.ZeroGrad()
//	    backend.Tape().StartRecording()
//	    loss := model.ForwardClassification(batch.Images, batch.Targets).Loss
//	    grads, _ := autodiff.Backward(loss, backend)
//	    optimizer.Step(grads)
//	    backend.Tape().Clear()
//	}
package optim

import (
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Step applies gradient updates to all parameters in place.
	//
	// Takes the gradient map returned by autodiff.Backward. Parameters
	// without a gradient are left unchanged.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears all parameter gradients.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// getGradient retrieves the gradient for a parameter and records it on the
// parameter. Returns nil if the parameter was not part of the graph.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor, backend B) []float32 {
	if param == nil {
		return nil
	}
	grad, ok := grads[param.Tensor().Raw()]
	if !ok {
		return nil
	}
	param.SetGrad(tensor.New[float32, B](grad, backend))
	return grad.AsFloat32()
}

func zeroGrad[B tensor.Backend](params []*nn.Parameter[B]) {
	for _, param := range params {
		param.ZeroGrad()
	}
}
