package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Encode writes stateDict to w in .born v2 format.
//
// The caller supplies ModelType, Metadata and CheckpointMeta on header;
// version, timestamps and tensor metadata are filled in. A zero CreatedAt
// is set to the current UTC time.
func Encode(w io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	header.FormatVersion = FormatVersionV2
	header.BornVersion = bornVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Lay tensors out in name order, each starting on a 64-byte boundary.
	var currentOffset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	for _, name := range names {
		raw := stateDict[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape().Clone()),
			Offset: currentOffset,
			Size:   size,
		})
		currentOffset = align(currentOffset + size)
	}

	tensorData := make([]byte, currentOffset)
	for i, name := range names {
		meta := header.Tensors[i]
		copy(tensorData[meta.Offset:meta.Offset+meta.Size], stateDict[name].Data())
	}
	checksum := ComputeChecksum(tensorData)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixedHeader := make([]byte, FixedHeaderSizeV2)

	// 0x00-0x03: Magic bytes "BORN"
	copy(fixedHeader[0:4], MagicBytes)

	// 0x04-0x07: Version (2)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersionV2))

	// 0x08-0x0B: Flags
	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.CheckpointMeta != nil {
		flags |= FlagHasCheckpoint
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)

	// 0x0C-0x0F: Reserved (0)

	// 0x10-0x17: Header size
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))

	// 0x18-0x1F: Data size
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(tensorData)))

	// 0x20-0x3F: SHA-256 checksum
	copy(fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize], checksum[:])

	if _, err := w.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSizeV2) + int64(len(headerJSON))
	if padding := align(currentPos) - currentPos; padding > 0 {
		if _, err := w.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(tensorData); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// Marshal encodes stateDict into a new byte slice.
func Marshal(stateDict map[string]*tensor.RawTensor, header Header) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, stateDict, header); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
