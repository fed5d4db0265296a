package model

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/nn"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Record returns the parameters keyed by name. The tensors share memory
// with the model.
func (m *Model[B]) Record() map[string]*tensor.RawTensor {
	return nn.StateDict(m.Parameters())
}

// LoadRecord copies a record into the model. The record must contain
// exactly the model's parameter names with matching shapes and float32
// dtype; otherwise the model is left untouched and the error wraps
// artifact.ErrArtifactCorrupt.
func (m *Model[B]) LoadRecord(record map[string]*tensor.RawTensor) error {
	if err := nn.LoadStateDict(m.Parameters(), record); err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrArtifactCorrupt, err)
	}
	return nil
}
