package metric

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeter_WeightedSummary(t *testing.T) {
	var m Meter
	_, err := m.Summary()
	assert.ErrorIs(t, err, ErrNoSamples)

	m.Add(1.0, 3, 4)
	m.Add(2.0, 0, 1)

	s, err := m.Summary()
	require.NoError(t, err)
	assert.InDelta(t, 1.2, s.Loss, 1e-12)
	assert.InDelta(t, 0.6, s.Accuracy, 1e-12)
	assert.Equal(t, 5, s.Samples)
}

func TestAccuracy_Bounds(t *testing.T) {
	acc, err := Accuracy([]int{1, 2, 3}, []int{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, acc)

	acc, err = Accuracy([]int32{0, 0}, []int32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, acc)

	acc, err = Accuracy([]int{1, 0, 1, 0}, []int{1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.5, acc)
}

func TestAccuracy_Errors(t *testing.T) {
	_, err := Accuracy([]int{}, []int{})
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = Accuracy([]int{1}, []int{1, 2})
	assert.ErrorContains(t, err, "1 predictions for 2 labels")
}

func TestIsFinite(t *testing.T) {
	assert.True(t, IsFinite(0.3))
	assert.False(t, IsFinite(math.NaN()))
	assert.False(t, IsFinite(math.Inf(-1)))
}
