// Package metric accumulates loss and accuracy over batches.
package metric

import (
	"errors"
	"fmt"
	"math"
)

// ErrNoSamples is returned when a summary is requested before any sample
// was recorded.
var ErrNoSamples = errors.New("no samples recorded")

// Summary is the aggregate over everything added to a Meter.
type Summary struct {
	Loss     float64 `json:"loss"`
	Accuracy float64 `json:"accuracy"`
	Samples  int     `json:"samples"`
}

// Meter accumulates batch-size-weighted loss and correct counts.
// The zero value is ready to use.
type Meter struct {
	lossSum float64
	correct int
	samples int
}

// Add records one batch: its mean loss, the number of correct predictions
// and the batch size.
func (m *Meter) Add(loss float64, correct, size int) {
	m.lossSum += loss * float64(size)
	m.correct += correct
	m.samples += size
}

// Samples returns the number of samples recorded so far.
func (m *Meter) Samples() int {
	return m.samples
}

// Summary returns the weighted mean loss and the accuracy in [0, 1].
func (m *Meter) Summary() (Summary, error) {
	if m.samples == 0 {
		return Summary{}, ErrNoSamples
	}
	return Summary{
		Loss:     m.lossSum / float64(m.samples),
		Accuracy: float64(m.correct) / float64(m.samples),
		Samples:  m.samples,
	}, nil
}

// Correct counts positions where pred[i] == labels[i].
func Correct[T ~int | ~int32](pred, labels []T) int {
	n := 0
	for i := range min(len(pred), len(labels)) {
		if pred[i] == labels[i] {
			n++
		}
	}
	return n
}

// Accuracy returns the fraction of matching predictions.
func Accuracy[T ~int | ~int32](pred, labels []T) (float64, error) {
	if len(pred) == 0 {
		return 0, ErrNoSamples
	}
	if len(pred) != len(labels) {
		return 0, fmt.Errorf("accuracy: %d predictions for %d labels", len(pred), len(labels))
	}
	return float64(Correct(pred, labels)) / float64(len(pred)), nil
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
