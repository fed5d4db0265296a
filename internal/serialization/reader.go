package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/born-ml/digitnet/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool // Skip checksum validation (faster but less safe)
}

// Unmarshal decodes a complete .born v2 file.
//
// The fixed header, the JSON header, every tensor's placement and (unless
// skipped) the checksum are validated before any tensor is built.
func Unmarshal(data []byte, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	if len(data) < FixedHeaderSizeV2 {
		return nil, Header{}, fmt.Errorf("%w: %d bytes, fixed header needs %d", ErrTruncated, len(data), FixedHeaderSizeV2)
	}
	fixedHeader := data[:FixedHeaderSizeV2]

	if string(fixedHeader[0:4]) != MagicBytes {
		return nil, Header{}, fmt.Errorf("%w: got %q, expected %q", ErrInvalidMagic, fixedHeader[0:4], MagicBytes)
	}
	if version := binary.LittleEndian.Uint32(fixedHeader[4:8]); version != FormatVersionV2 {
		return nil, Header{}, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersionV2)
	}

	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	var stored [32]byte
	copy(stored[:], fixedHeader[ChecksumOffsetV2:ChecksumOffsetV2+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return nil, Header{}, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}

	headerEnd := int64(FixedHeaderSizeV2) + int64(headerSize) //nolint:gosec // bounded by MaxHeaderSize
	dataOffset := align(headerEnd)
	if int64(len(data)) < dataOffset || uint64(int64(len(data))-dataOffset) != dataSize {
		return nil, Header{}, fmt.Errorf("%w: file has %d bytes, header declares %d + %d",
			ErrTruncated, len(data), dataOffset, dataSize)
	}

	var header Header
	if err := json.Unmarshal(data[FixedHeaderSizeV2:headerEnd], &header); err != nil {
		return nil, Header{}, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	tensorData := data[dataOffset:]
	if err := ValidateHeader(&header, int64(len(tensorData))); err != nil {
		return nil, Header{}, fmt.Errorf("validation failed: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(tensorData), stored); err != nil {
			return nil, Header{}, err
		}
	}

	stateDict := make(map[string]*tensor.RawTensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		dtype, _ := tensor.ParseDataType(meta.DType) // checked by ValidateHeader
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, tensor.CPU)
		if err != nil {
			return nil, Header{}, fmt.Errorf("failed to create tensor %s: %w", meta.Name, err)
		}
		copy(raw.Data(), tensorData[meta.Offset:meta.Offset+meta.Size])
		stateDict[meta.Name] = raw
	}

	return stateDict, header, nil
}

// Decode reads a complete .born v2 file from r.
func Decode(r io.Reader, opts ReaderOptions) (map[string]*tensor.RawTensor, Header, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, Header{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Unmarshal(buf.Bytes(), opts)
}
