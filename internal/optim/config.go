package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Optimizer kinds accepted by Config.Kind.
const (
	KindAdam = "adam"
	KindSGD  = "sgd"
)

// Config selects and parameterizes an optimizer. It is part of the
// persisted training config.
type Config struct {
	Kind        string  `json:"kind" yaml:"kind"`
	Beta1       float64 `json:"beta1" yaml:"beta1"`
	Beta2       float64 `json:"beta2" yaml:"beta2"`
	Epsilon     float64 `json:"epsilon" yaml:"epsilon"`
	Momentum    float64 `json:"momentum" yaml:"momentum"`
	WeightDecay float64 `json:"weight_decay" yaml:"weight_decay"`
}

// DefaultConfig returns Adam with beta1 0.9, beta2 0.999 and epsilon 1e-5.
func DefaultConfig() Config {
	return Config{
		Kind:    KindAdam,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-5,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Kind {
	case KindAdam:
		if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
			return fmt.Errorf("adam betas must be in [0, 1), got (%v, %v)", c.Beta1, c.Beta2)
		}
		if !(c.Epsilon > 0) || math.IsInf(c.Epsilon, 0) {
			return fmt.Errorf("adam epsilon must be positive and finite, got %v", c.Epsilon)
		}
	case KindSGD:
		if c.Momentum < 0 || c.Momentum >= 1 {
			return fmt.Errorf("sgd momentum must be in [0, 1), got %v", c.Momentum)
		}
	default:
		return fmt.Errorf("unknown optimizer %q (want %q or %q)", c.Kind, KindAdam, KindSGD)
	}
	if c.WeightDecay < 0 || math.IsNaN(c.WeightDecay) || math.IsInf(c.WeightDecay, 0) {
		return fmt.Errorf("weight decay must be non-negative and finite, got %v", c.WeightDecay)
	}
	return nil
}

// Build creates the optimizer described by cfg over params.
func Build[B tensor.Backend](cfg Config, lr float64, params []*nn.Parameter[B], backend B) (Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !(lr > 0) || math.IsInf(lr, 0) {
		return nil, fmt.Errorf("learning rate must be positive and finite, got %v", lr)
	}

	switch cfg.Kind {
	case KindSGD:
		return NewSGD(params, SGDConfig{
			LR:          float32(lr),
			Momentum:    float32(cfg.Momentum),
			WeightDecay: float32(cfg.WeightDecay),
		}, backend), nil
	default:
		return NewAdam(params, AdamConfig{
			LR:          float32(lr),
			Betas:       [2]float32{float32(cfg.Beta1), float32(cfg.Beta2)},
			Eps:         float32(cfg.Epsilon),
			WeightDecay: float32(cfg.WeightDecay),
		}, backend), nil
	}
}
