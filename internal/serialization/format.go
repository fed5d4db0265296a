package serialization

import "time"

// Format constants.
const (
	MagicBytes        = "BORN"
	FormatVersionV2   = 2    // v2: With SHA-256 checksum
	HeaderAlignment   = 64   // Align header end and every tensor to 64 bytes
	FixedHeaderSizeV2 = 64   // v2 fixed header size (0x40 bytes)
	ChecksumSize      = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffsetV2  = 0x20 // Checksum offset in v2 fixed header
)

// bornVersion identifies the writer in the header.
const bornVersion = "digitnet-0.1.0"

// Flags for the .born format.
const (
	FlagHasMetadata   uint32 = 1 << 2 // bit 2: custom metadata included
	FlagHasCheckpoint uint32 = 1 << 3 // bit 3: training checkpoint metadata included
)

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion  int               `json:"format_version"`       // Version of the .born format
	BornVersion    string            `json:"born_version"`         // Version of the writer
	ModelType      string            `json:"model_type"`           // Type of model (e.g., "DigitNet")
	CreatedAt      time.Time         `json:"created_at"`           // When the file was created
	Tensors        []TensorMeta      `json:"tensors"`              // Tensor metadata
	Metadata       map[string]string `json:"metadata"`             // Custom metadata
	CheckpointMeta *CheckpointMeta   `json:"checkpoint,omitempty"` // Checkpoint metadata (optional)
}

// CheckpointMeta contains training state information for checkpoints.
type CheckpointMeta struct {
	Epoch         int     `json:"epoch"`          // Epochs completed
	Step          int64   `json:"step"`           // Optimizer steps taken
	Loss          float64 `json:"loss"`           // Validation loss at checkpoint
	OptimizerType string  `json:"optimizer_type"` // Optimizer kind ("adam", "sgd")
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "conv1.weight")
	DType  string `json:"dtype"`  // Data type ("float32" or "int32")
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// align rounds n up to the next multiple of HeaderAlignment.
func align(n int64) int64 {
	return (n + HeaderAlignment - 1) / HeaderAlignment * HeaderAlignment
}

