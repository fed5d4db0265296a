package optim

import (
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// SGD implements Stochastic Gradient Descent optimizer with optional momentum.
//
// Update rule:
//
//	g = gradient + weight_decay * param
//	velocity = momentum * velocity + g
//	param = param - lr * velocity
//
// With zero momentum this reduces to param -= lr * g.
type SGD[B tensor.Backend] struct {
	params      []*nn.Parameter[B]
	lr          float32
	momentum    float32
	weightDecay float32
	velocities  map[*nn.Parameter[B]][]float32
	backend     B
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR          float32 // Learning rate (default: 0.01)
	Momentum    float32 // Momentum factor (default: 0.0, range: [0, 1))
	WeightDecay float32 // L2 penalty (default: 0)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig, backend B) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}

	return &SGD[B]{
		params:      params,
		lr:          config.LR,
		momentum:    config.Momentum,
		weightDecay: config.WeightDecay,
		velocities:  make(map[*nn.Parameter[B]][]float32),
		backend:     backend,
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		grad := getGradient(param, grads, s.backend)
		if grad == nil {
			continue
		}

		paramData := param.Tensor().Data()
		if s.momentum == 0 {
			for i, g := range grad {
				paramData[i] -= s.lr * (g + s.weightDecay*paramData[i])
			}
			continue
		}

		velocity, ok := s.velocities[param]
		if !ok {
			velocity = make([]float32, len(paramData))
			s.velocities[param] = velocity
		}
		for i, g := range grad {
			velocity[i] = s.momentum*velocity[i] + g + s.weightDecay*paramData[i]
			paramData[i] -= s.lr * velocity[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	zeroGrad(s.params)
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}
