package nn

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Dropout zeroes each element with probability p during training and
// scales the survivors by 1/(1-p), so the expected activation is unchanged.
//
// The layer is active only while the backend records gradients; validation
// and inference passes are the identity. Masks are drawn from the layer's
// own rng, so a seeded run draws the same masks every time.
type Dropout[B tensor.Backend] struct {
	p       float64
	rng     *rand.Rand
	backend B
}

// NewDropout creates a dropout layer with drop probability p in [0, 1].
func NewDropout[B tensor.Backend](p float64, rng *rand.Rand, backend B) *Dropout[B] {
	if p < 0 || p > 1 {
		panic(fmt.Sprintf("dropout: probability %v outside [0, 1]", p))
	}
	return &Dropout[B]{p: p, rng: rng, backend: backend}
}

// Forward applies the dropout mask when training.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if d.p == 0 || !isTraining(d.backend) {
		return input
	}

	mask := tensor.Zeros[float32](input.Shape(), d.backend)
	if d.p < 1 {
		keep := float32(1 / (1 - d.p))
		data := mask.Data()
		for i := range data {
			if d.rng.Float64() >= d.p {
				data[i] = keep
			}
		}
	}
	return input.Mul(mask)
}

// Rate returns the drop probability.
func (d *Dropout[B]) Rate() float64 {
	return d.p
}

// Parameters returns an empty slice.
func (d *Dropout[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{}
}
