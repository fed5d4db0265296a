package artifact

import "errors"

// Error kinds shared by training and inference.
var (
	// ErrPreconditionMissing means a required artifact has not been
	// produced yet; the user must run training first.
	ErrPreconditionMissing = errors.New("precondition missing")

	// ErrArtifactCorrupt means an artifact exists but does not decode or
	// does not match the architecture it claims to describe.
	ErrArtifactCorrupt = errors.New("artifact corrupt")

	// ErrPersistence means writing artifacts failed.
	ErrPersistence = errors.New("persistence failure")
)
