package data

import (
	"math/rand/v2"
)

// Synthetic image geometry, matching MNIST.
const (
	SyntheticSize    = 28
	SyntheticClasses = 10
)

// Synthetic generates n reproducible 28×28 items over 10 classes.
//
// Class k draws a bright 8-row band starting at row 2k across columns
// 5..22, plus uniform background noise. Labels cycle 0..9 so every class
// is equally represented.
func Synthetic(n int, seed uint64) *InMemory {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	items := make([]Item, n)
	for i := range items {
		label := i % SyntheticClasses
		img := make([]float32, SyntheticSize*SyntheticSize)
		for p := range img {
			img[p] = float32(rng.IntN(40))
		}
		startRow := label * 2
		for row := startRow; row < startRow+8 && row < SyntheticSize; row++ {
			for col := 5; col < 23; col++ {
				img[row*SyntheticSize+col] = float32(180 + rng.IntN(76))
			}
		}
		items[i] = Item{Image: img, Height: SyntheticSize, Width: SyntheticSize, Label: label}
	}
	return NewInMemory(items)
}

// SyntheticSplits builds a synthetic dataset of trainN+testN items and
// splits it into training and held-out parts.
func SyntheticSplits(trainN, testN int, seed uint64) Splits {
	train, test, _ := Split(Synthetic(trainN+testN, seed), trainN) // split point is in range
	return Splits{Train: train, Test: test}
}
