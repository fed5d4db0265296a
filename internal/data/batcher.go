package data

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/tensor"
)

// MNIST normalization statistics.
const (
	PixelMean = 0.1307
	PixelStd  = 0.3081
)

// Batch is a stacked, normalized group of items.
type Batch[B tensor.Backend] struct {
	Images  *tensor.Tensor[float32, B] // [batch, H, W]
	Targets *tensor.Tensor[int32, B]   // [batch]
}

// Size returns the number of items in the batch.
func (b *Batch[B]) Size() int {
	return b.Targets.Shape()[0]
}

// Batcher turns items into tensors on a backend.
type Batcher[B tensor.Backend] struct {
	backend B
}

// NewBatcher creates a batcher that allocates on backend.
func NewBatcher[B tensor.Backend](backend B) *Batcher[B] {
	return &Batcher[B]{backend: backend}
}

// Batch stacks items in order. Pixels are scaled to [0, 1] and normalized
// with the MNIST mean and standard deviation.
func (b *Batcher[B]) Batch(items []Item) (*Batch[B], error) {
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	h, w := items[0].Height, items[0].Width
	if h <= 0 || w <= 0 {
		return nil, fmt.Errorf("%w: item 0 has size %dx%d", ErrShapeMismatch, h, w)
	}
	plane := h * w

	images := make([]float32, len(items)*plane)
	targets := make([]int32, len(items))
	for i, item := range items {
		if item.Height != h || item.Width != w {
			return nil, fmt.Errorf("%w: item %d is %dx%d, item 0 is %dx%d", ErrShapeMismatch, i, item.Height, item.Width, h, w)
		}
		if len(item.Image) != plane {
			return nil, fmt.Errorf("%w: item %d has %d pixels, want %d", ErrShapeMismatch, i, len(item.Image), plane)
		}
		dst := images[i*plane : (i+1)*plane]
		for j, p := range item.Image {
			dst[j] = (p/255 - PixelMean) / PixelStd
		}
		targets[i] = int32(item.Label) //nolint:gosec // labels are small class indices
	}

	imagesT, err := tensor.FromSlice(images, tensor.Shape{len(items), h, w}, b.backend)
	if err != nil {
		return nil, err
	}
	targetsT, err := tensor.FromSlice(targets, tensor.Shape{len(items)}, b.backend)
	if err != nil {
		return nil, err
	}
	return &Batch[B]{Images: imagesT, Targets: targetsT}, nil
}
