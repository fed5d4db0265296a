package nn

import (
	"math"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/tensor"
)

// Xavier (Glorot) initialization for weights.
//
// Draws values from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
// using rng, so initialization is reproducible for a fixed seed.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t, err := tensor.NewRaw(shape, tensor.Float32, backend.Device())
	if err != nil {
		panic(err)
	}

	data := t.AsFloat32()
	for i := range data {
		//nolint:gosec // weight initialization, not security-critical
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}

	return tensor.New[float32, B](t, backend)
}

// Zeros creates a tensor filled with zeros, used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}
