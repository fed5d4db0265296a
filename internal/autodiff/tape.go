package autodiff

import (
	"github.com/born-ml/digitnet/internal/autodiff/ops"
	"github.com/born-ml/digitnet/internal/tensor"
)

// Gradients maps each tensor that took part in a recorded computation to
// its accumulated gradient.
type Gradients map[*tensor.RawTensor]*tensor.RawTensor

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode differentiation.
//
// Usage:
//
//	tape := NewGradientTape()
//	tape.StartRecording()
//	// ... perform operations ...
//	grads := tape.Backward(loss, seed, backend)
type GradientTape struct {
	operations []ops.Operation
	recording  bool
}

// NewGradientTape creates a new, non-recording tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]ops.Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape if recording.
func (t *GradientTape) Record(op ops.Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Clear removes all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// Backward propagates seed (∂L/∂output) from output back through every
// recorded operation, newest first, and returns the gradient of every tensor
// reached. Gradients of tensors used more than once are summed.
//
// Recording is suspended while the backward pass runs.
func (t *GradientTape) Backward(output, seed *tensor.RawTensor, backend tensor.Backend) Gradients {
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads := Gradients{output: seed}
	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(outGrad, backend)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if existing, ok := grads[input]; ok {
				grads[input] = backend.Add(existing, inputGrads[j])
			} else {
				grads[input] = inputGrads[j]
			}
		}
	}
	return grads
}
