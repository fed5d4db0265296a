package data

import "errors"

// Errors returned by datasets and the batcher.
var (
	ErrShapeMismatch   = errors.New("items have inconsistent shapes")
	ErrEmptyBatch      = errors.New("batch has no items")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidIDX      = errors.New("invalid IDX file")
)
