package serialization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB - maximum header size
	MaxTensorCount   = 100_000           // Maximum number of tensors in a file
	MaxTensorNameLen = 4096              // Maximum tensor name length
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d (negative values not allowed)", t.Offset, t.Size),
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects empty names, path traversal and control bytes.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains '..' (path traversal attempt)",
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains path separator (/ or \\)",
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
		}
	}
	return nil
}

// validateTensorMeta checks that a tensor's dtype and shape agree with its
// byte size.
func validateTensorMeta(meta TensorMeta) error {
	dtype, ok := tensor.ParseDataType(meta.DType)
	if !ok {
		return &ValidationError{
			Type:    "invalid_dtype",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("unsupported dtype %q", meta.DType),
		}
	}
	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return &ValidationError{Type: "invalid_shape", Tensor: meta.Name, Details: err.Error()}
	}
	if want := int64(shape.NumElements() * dtype.Size()); meta.Size != want {
		return &ValidationError{
			Type:    "size_mismatch",
			Tensor:  meta.Name,
			Details: fmt.Sprintf("shape %v of %s needs %d bytes, header says %d", shape, dtype, want, meta.Size),
		}
	}
	return nil
}

// ValidateHeader performs full header validation against the size of the
// data section.
func ValidateHeader(h *Header, dataSize int64) error {
	if h.FormatVersion != FormatVersionV2 {
		return fmt.Errorf("%w: header declares %d", ErrUnsupportedVersion, h.FormatVersion)
	}
	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if seen[t.Name] {
			return &ValidationError{Type: "duplicate_name", Tensor: t.Name, Details: "tensor listed twice"}
		}
		seen[t.Name] = true
		if err := validateTensorMeta(t); err != nil {
			return err
		}
	}

	return ValidateTensorOffsets(h.Tensors, dataSize)
}
