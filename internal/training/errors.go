package training

import "errors"

// Numeric failures during a step. Both abort the run.
var (
	// ErrNonFiniteLoss means a batch produced a NaN or infinite loss.
	ErrNonFiniteLoss = errors.New("non-finite loss")

	// ErrStep means a kernel panicked inside a training or validation step.
	ErrStep = errors.New("training step failed")
)
