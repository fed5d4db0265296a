package autodiff

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// BackwardCapable is a backend that records a gradient tape.
// AutodiffBackend implements this interface.
type BackwardCapable interface {
	tensor.Backend
	// GetTape returns the gradient tape for backward computation.
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes gradients of a scalar loss with respect to everything
// recorded on the backend's tape.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss := model.ForwardClassification(images, targets).Loss
//	grads, err := autodiff.Backward(loss, backend)
//	weightGrad := grads[weight.Raw()]
func Backward[B BackwardCapable](loss *tensor.Tensor[float32, B], backend B) (Gradients, error) {
	if loss.NumElements() != 1 {
		return nil, fmt.Errorf("backward: loss must be a scalar, got shape %v", loss.Shape())
	}
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		return nil, fmt.Errorf("backward: no operations recorded (did you forget to call Tape().StartRecording()?)")
	}

	seed, err := tensor.NewRaw(loss.Shape(), tensor.Float32, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("backward: failed to create output gradient: %w", err)
	}
	seed.AsFloat32()[0] = 1

	return tape.Backward(loss.Raw(), seed, backend), nil
}
