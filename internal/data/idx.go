package data

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// MNIST file names inside a data directory.
const (
	TrainImagesFile = "train-images-idx3-ubyte"
	TrainLabelsFile = "train-labels-idx1-ubyte"
	TestImagesFile  = "t10k-images-idx3-ubyte"
	TestLabelsFile  = "t10k-labels-idx1-ubyte"
)

const (
	idxImagesMagic = 2051
	idxLabelsMagic = 2049
	maxIDXCount    = 1 << 24
)

// readIDXImages reads an IDX image file.
//
// IDX file format for images:
//
//	magic number: 0x00000803 (2051)
//	number of images: 4 bytes
//	number of rows: 4 bytes (28)
//	number of cols: 4 bytes (28)
//	pixel data: unsigned bytes (0-255)
func readIDXImages(r io.Reader) (images [][]byte, rows, cols int, err error) {
	var header [4]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: failed to read image header: %w", ErrInvalidIDX, err)
	}
	if header[0] != idxImagesMagic {
		return nil, 0, 0, fmt.Errorf("%w: invalid magic number: got %d, want %d", ErrInvalidIDX, header[0], idxImagesMagic)
	}
	count, rows, cols := int(header[1]), int(header[2]), int(header[3])
	if count > maxIDXCount || rows == 0 || cols == 0 || rows*cols > 1<<16 {
		return nil, 0, 0, fmt.Errorf("%w: implausible dimensions %d×%d×%d", ErrInvalidIDX, count, rows, cols)
	}

	images = make([][]byte, count)
	for i := range images {
		images[i] = make([]byte, rows*cols)
		if _, err := io.ReadFull(r, images[i]); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: failed to read image %d: %w", ErrInvalidIDX, i, err)
		}
	}
	return images, rows, cols, nil
}

// readIDXLabels reads an IDX label file.
//
// IDX file format for labels:
//
//	magic number: 0x00000801 (2049)
//	number of labels: 4 bytes
//	label data: unsigned bytes (0-9)
func readIDXLabels(r io.Reader) ([]byte, error) {
	var header [2]uint32
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to read label header: %w", ErrInvalidIDX, err)
	}
	if header[0] != idxLabelsMagic {
		return nil, fmt.Errorf("%w: invalid magic number: got %d, want %d", ErrInvalidIDX, header[0], idxLabelsMagic)
	}
	if header[1] > maxIDXCount {
		return nil, fmt.Errorf("%w: implausible label count %d", ErrInvalidIDX, header[1])
	}

	labels := make([]byte, header[1])
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("%w: failed to read labels: %w", ErrInvalidIDX, err)
	}
	return labels, nil
}

// DecodeIDX decodes a pair of IDX image and label streams into a dataset.
func DecodeIDX(images, labels io.Reader) (*InMemory, error) {
	imagesRaw, rows, cols, err := readIDXImages(images)
	if err != nil {
		return nil, err
	}
	labelsRaw, err := readIDXLabels(labels)
	if err != nil {
		return nil, err
	}
	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("%w: image count (%d) != label count (%d)", ErrInvalidIDX, len(imagesRaw), len(labelsRaw))
	}

	items := make([]Item, len(imagesRaw))
	for i, raw := range imagesRaw {
		img := make([]float32, len(raw))
		for j, p := range raw {
			img[j] = float32(p)
		}
		items[i] = Item{Image: img, Height: rows, Width: cols, Label: int(labelsRaw[i])}
	}
	return NewInMemory(items), nil
}

// LoadIDX reads an image file and a label file from disk.
func LoadIDX(imagesPath, labelsPath string) (*InMemory, error) {
	imagesFile, err := os.Open(imagesPath) //nolint:gosec // path comes from the user's data directory
	if err != nil {
		return nil, fmt.Errorf("failed to open images: %w", err)
	}
	defer imagesFile.Close()

	labelsFile, err := os.Open(labelsPath) //nolint:gosec // path comes from the user's data directory
	if err != nil {
		return nil, fmt.Errorf("failed to open labels: %w", err)
	}
	defer labelsFile.Close()

	ds, err := DecodeIDX(imagesFile, labelsFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}
	return ds, nil
}

// LoadMNIST loads the official MNIST train and test files from dir.
func LoadMNIST(dir string) (Splits, error) {
	train, err := LoadIDX(filepath.Join(dir, TrainImagesFile), filepath.Join(dir, TrainLabelsFile))
	if err != nil {
		return Splits{}, fmt.Errorf("failed to load training split: %w", err)
	}
	test, err := LoadIDX(filepath.Join(dir, TestImagesFile), filepath.Join(dir, TestLabelsFile))
	if err != nil {
		return Splits{}, fmt.Errorf("failed to load test split: %w", err)
	}
	return Splits{Train: train, Test: test}, nil
}
