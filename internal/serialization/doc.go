// Package serialization implements the .born v2 checkpoint format.
//
// Format structure:
//
//	[0x00-0x03: Magic "BORN"]
//	[0x04-0x07: Version (uint32 LE), always 2]
//	[0x08-0x0B: Flags (uint32 LE)]
//	[0x0C-0x0F: Reserved]
//	[0x10-0x17: Header Size (uint64 LE)]
//	[0x18-0x1F: Data Size (uint64 LE)]
//	[0x20-0x3F: SHA-256 of the data section]
//	[Header: JSON metadata, padded to 64 bytes]
//	[Tensor data: raw little-endian bytes, each tensor 64-byte aligned]
//
// Tensors are laid out in name order, so the same state dictionary always
// produces the same data section and checksum.
//
// Example usage:
//
//	data, err := serialization.Marshal(stateDict, serialization.Header{ModelType: "DigitNet"})
//	...
//	stateDict, header, err := serialization.Unmarshal(data, serialization.ReaderOptions{})
package serialization
