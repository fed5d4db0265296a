package training

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/born-ml/digitnet/internal/model"
	"github.com/born-ml/digitnet/internal/optim"
)

// TrainingConfig holds every hyperparameter of a run. It is written to the
// artifact store as config.json and read back verbatim before inference.
type TrainingConfig struct {
	Model        model.ModelConfig `json:"model" yaml:"model"`
	Optimizer    optim.Config      `json:"optimizer" yaml:"optimizer"`
	NumEpochs    int               `json:"num_epochs" yaml:"num_epochs"`
	BatchSize    int               `json:"batch_size" yaml:"batch_size"`
	NumWorkers   int               `json:"num_workers" yaml:"num_workers"`
	Seed         uint64            `json:"seed" yaml:"seed"`
	LearningRate float64           `json:"learning_rate" yaml:"learning_rate"`
}

// DefaultTrainingConfig returns the stock configuration: DigitNet(10, 512),
// Adam, 10 epochs of 64-item batches, 4 loader workers, seed 42, lr 1e-4.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Model:        model.DefaultModelConfig(),
		Optimizer:    optim.DefaultConfig(),
		NumEpochs:    10,
		BatchSize:    64,
		NumWorkers:   4,
		Seed:         42,
		LearningRate: 1e-4,
	}
}

// Validate checks every field, including the nested model and optimizer
// configs.
func (c TrainingConfig) Validate() error {
	if c.NumEpochs <= 0 {
		return fmt.Errorf("num_epochs must be > 0, got %d", c.NumEpochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0, got %d", c.BatchSize)
	}
	if c.NumWorkers < 1 {
		return fmt.Errorf("num_workers must be >= 1, got %d", c.NumWorkers)
	}
	if c.LearningRate <= 0 || math.IsNaN(c.LearningRate) || math.IsInf(c.LearningRate, 0) {
		return fmt.Errorf("learning_rate must be positive and finite, got %v", c.LearningRate)
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	return nil
}

// ApplyYAML overlays the fields present in a YAML document onto c.
// Fields the document does not mention keep their current values.
func (c *TrainingConfig) ApplyYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse run config: %w", err)
	}
	return nil
}

// LoadYAML overlays a YAML run config file onto c.
func (c *TrainingConfig) LoadYAML(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by the user
	if err != nil {
		return fmt.Errorf("failed to read run config: %w", err)
	}
	return c.ApplyYAML(data)
}

// MarshalConfig encodes c as indented JSON.
func MarshalConfig(c TrainingConfig) ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseConfig decodes and validates a config.json document. Unknown fields
// are rejected.
func ParseConfig(data []byte) (TrainingConfig, error) {
	var c TrainingConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return TrainingConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return TrainingConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}
