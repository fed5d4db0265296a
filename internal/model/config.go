package model

import (
	"fmt"
	"math"
)

// Default architecture sizes.
const (
	DefaultNumClasses  = 10
	DefaultHiddenSize  = 512
	DefaultDropoutRate = 0.5
)

// ModelConfig fully determines the structure of a Model.
type ModelConfig struct {
	NumClasses  int     `json:"num_classes" yaml:"num_classes"`
	HiddenSize  int     `json:"hidden_size" yaml:"hidden_size"`
	DropoutRate float64 `json:"dropout_rate" yaml:"dropout_rate"`
}

// DefaultModelConfig returns ModelConfig(10, 512) with dropout 0.5.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		NumClasses:  DefaultNumClasses,
		HiddenSize:  DefaultHiddenSize,
		DropoutRate: DefaultDropoutRate,
	}
}

// NewModelConfig builds and validates a config with the default dropout rate.
func NewModelConfig(numClasses, hiddenSize int) (ModelConfig, error) {
	cfg := ModelConfig{
		NumClasses:  numClasses,
		HiddenSize:  hiddenSize,
		DropoutRate: DefaultDropoutRate,
	}
	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// WithDropout returns a copy with the given dropout rate. Call Validate on
// the result.
func (c ModelConfig) WithDropout(rate float64) ModelConfig {
	c.DropoutRate = rate
	return c
}

// Validate checks the architecture sizes.
func (c ModelConfig) Validate() error {
	if c.NumClasses <= 0 {
		return fmt.Errorf("model: num_classes must be > 0, got %d", c.NumClasses)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("model: hidden_size must be > 0, got %d", c.HiddenSize)
	}
	if math.IsNaN(c.DropoutRate) || c.DropoutRate < 0 || c.DropoutRate > 1 {
		return fmt.Errorf("model: dropout_rate must be in [0, 1], got %v", c.DropoutRate)
	}
	return nil
}
