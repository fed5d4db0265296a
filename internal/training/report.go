package training

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/digitnet/internal/metric"
)

// EpochMetrics summarizes one completed epoch.
type EpochMetrics struct {
	Epoch    int            `json:"epoch"` // 1-based
	Train    metric.Summary `json:"train"`
	Valid    metric.Summary `json:"valid"`
	Duration time.Duration  `json:"duration"`
}

// RunReport is the outcome of a successful run.
type RunReport struct {
	RunID    uuid.UUID      `json:"run_id"`
	Location string         `json:"location"`
	Epochs   []EpochMetrics `json:"epochs"`
	Steps    int64          `json:"steps"`
	Elapsed  time.Duration  `json:"elapsed"`
}

// Final returns the metrics of the last epoch.
func (r *RunReport) Final() EpochMetrics {
	if len(r.Epochs) == 0 {
		return EpochMetrics{}
	}
	return r.Epochs[len(r.Epochs)-1]
}

// Recorder observes a run. internal/history persists these events.
type Recorder interface {
	RunStarted(ctx context.Context, runID uuid.UUID, location string, cfg TrainingConfig) error
	EpochFinished(ctx context.Context, runID uuid.UUID, m EpochMetrics) error
	RunFinished(ctx context.Context, runID uuid.UUID, report *RunReport, runErr error) error
}
