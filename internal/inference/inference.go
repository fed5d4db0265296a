// Package inference restores a trained DigitNet from an artifact store and
// evaluates it on a set of labeled items.
package inference

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/metric"
	"github.com/born-ml/digitnet/internal/model"
	"github.com/born-ml/digitnet/internal/serialization"
	"github.com/born-ml/digitnet/internal/tensor"
	"github.com/born-ml/digitnet/internal/training"
)

// Result holds per-item predictions and the overall accuracy.
type Result struct {
	Predicted []int
	Labels    []int
	Accuracy  float64 // in [0, 1]
}

// Restore loads config.json and model.born from store and rebuilds the
// model on backend. Artifacts are only read.
func Restore[B tensor.Backend](ctx context.Context, store artifact.Store, backend B) (*model.Model[B], training.TrainingConfig, error) {
	cfgBlob, err := store.Get(ctx, artifact.ConfigName)
	if err != nil {
		if errors.Is(err, artifact.ErrPreconditionMissing) {
			return nil, training.TrainingConfig{}, fmt.Errorf("%w: config should exist for the model; run train first", artifact.ErrPreconditionMissing)
		}
		return nil, training.TrainingConfig{}, err
	}
	cfg, err := training.ParseConfig(cfgBlob)
	if err != nil {
		return nil, training.TrainingConfig{}, fmt.Errorf("%w: %s: %w", artifact.ErrArtifactCorrupt, artifact.ConfigName, err)
	}

	modelBlob, err := store.Get(ctx, artifact.ModelName)
	if err != nil {
		if errors.Is(err, artifact.ErrPreconditionMissing) {
			return nil, training.TrainingConfig{}, fmt.Errorf("%w: trained model should exist; run train first", artifact.ErrPreconditionMissing)
		}
		return nil, training.TrainingConfig{}, err
	}
	record, header, err := serialization.Unmarshal(modelBlob, serialization.ReaderOptions{})
	if err != nil {
		return nil, training.TrainingConfig{}, fmt.Errorf("%w: %s: %w", artifact.ErrArtifactCorrupt, artifact.ModelName, err)
	}
	if header.ModelType != model.ModelType {
		return nil, training.TrainingConfig{}, fmt.Errorf("%w: %s holds model type %q, want %q",
			artifact.ErrArtifactCorrupt, artifact.ModelName, header.ModelType, model.ModelType)
	}

	// Initial weights are overwritten by the record; the seed only has to
	// produce a valid model.
	m, err := model.New(cfg.Model, backend, rand.New(rand.NewPCG(cfg.Seed, 0))) //nolint:gosec // not crypto
	if err != nil {
		return nil, training.TrainingConfig{}, fmt.Errorf("%w: %w", artifact.ErrArtifactCorrupt, err)
	}
	if err := m.LoadRecord(record); err != nil {
		return nil, training.TrainingConfig{}, err
	}
	return m, cfg, nil
}

// Infer restores the trained model and classifies items in one batch. Ties
// between class scores resolve to the lowest class index.
func Infer[B tensor.Backend](ctx context.Context, store artifact.Store, backend B, items []data.Item) (*Result, error) {
	m, _, err := Restore(ctx, store, backend)
	if err != nil {
		return nil, err
	}
	return Evaluate(ctx, m, items)
}

// Evaluate classifies items with an already restored model.
//
// Items the model cannot take fail with data.ErrShapeMismatch. A kernel fault
// during the forward pass is reported as artifact.ErrArtifactCorrupt.
func Evaluate[B tensor.Backend](ctx context.Context, m *model.Model[B], items []data.Item) (result *Result, err error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items to evaluate", artifact.ErrArtifactCorrupt)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	batch, err := data.NewBatcher(m.Backend()).Batch(items)
	if err != nil {
		return nil, err
	}
	if err := m.CheckInput(batch.Images.Shape()); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("%w: forward pass failed: %v", artifact.ErrArtifactCorrupt, r)
		}
	}()
	predicted := model.Predict(m.Forward(batch.Images))

	labels := make([]int, len(items))
	for i, item := range items {
		labels[i] = item.Label
	}
	accuracy, err := metric.Accuracy(predicted, labels)
	if err != nil {
		return nil, err
	}
	return &Result{Predicted: predicted, Labels: labels, Accuracy: accuracy}, nil
}
