package model

import (
	"fmt"

	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/tensor"
)

// StepOutput holds the metrics of one training or validation step.
type StepOutput struct {
	Loss    float64 // mean cross-entropy of the batch
	Correct int     // number of correct argmax predictions
	Size    int     // batch size
}

// TrainStep runs a recorded forward pass and backpropagates the loss.
//
// Recording is enabled for the forward pass (which also enables dropout) and
// disabled again before returning. The caller owns the tape afterwards and
// should Clear it once the optimizer has consumed the gradients.
func TrainStep[B autodiff.BackwardCapable](m *Model[B], batch *data.Batch[B]) (StepOutput, autodiff.Gradients, error) {
	if err := m.CheckInput(batch.Images.Shape()); err != nil {
		return StepOutput{}, nil, fmt.Errorf("train step: %w", err)
	}
	tape := m.backend.GetTape()
	tape.StartRecording()
	defer tape.StopRecording()

	out := m.ForwardClassification(batch.Images, batch.Targets)
	grads, err := autodiff.Backward(out.Loss, m.backend)
	if err != nil {
		return StepOutput{}, nil, fmt.Errorf("train step: %w", err)
	}
	return summarize(out), grads, nil
}

// ValidStep runs a forward pass without recording gradients. If the backend
// records a tape, recording is suspended for the duration of the step and
// restored afterwards.
func ValidStep[B tensor.Backend](m *Model[B], batch *data.Batch[B]) (StepOutput, error) {
	if err := m.CheckInput(batch.Images.Shape()); err != nil {
		return StepOutput{}, fmt.Errorf("valid step: %w", err)
	}
	if bc, ok := any(m.backend).(autodiff.BackwardCapable); ok {
		tape := bc.GetTape()
		if tape.IsRecording() {
			tape.StopRecording()
			defer tape.StartRecording()
		}
	}
	return summarize(m.ForwardClassification(batch.Images, batch.Targets)), nil
}

func summarize[B tensor.Backend](out ClassificationOutput[B]) StepOutput {
	return StepOutput{
		Loss:    float64(out.Loss.Data()[0]),
		Correct: NumCorrect(out.Scores, out.Targets),
		Size:    out.Targets.NumElements(),
	}
}

// Predict returns the argmax class per row of scores. Ties resolve to the
// lowest class index.
func Predict[B tensor.Backend](scores *tensor.Tensor[float32, B]) []int {
	idx := scores.Argmax(1).Data()
	pred := make([]int, len(idx))
	for i, v := range idx {
		pred[i] = int(v)
	}
	return pred
}

// NumCorrect counts rows whose argmax equals the target.
func NumCorrect[B tensor.Backend](scores *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) int {
	idx := scores.Argmax(1).Data()
	want := targets.Data()
	correct := 0
	for i := range idx {
		if idx[i] == want[i] {
			correct++
		}
	}
	return correct
}
