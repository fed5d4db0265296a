package inference

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/model"
	"github.com/born-ml/digitnet/internal/training"
)

func trainedStore(t *testing.T) (artifact.Store, data.Splits) {
	t.Helper()
	splits := data.SyntheticSplits(100, 20, 1)
	cfg := training.DefaultTrainingConfig()
	cfg.NumEpochs = 1
	cfg.BatchSize = 10
	cfg.Model.HiddenSize = 64

	store := artifact.NewLocalStore(t.TempDir())
	_, err := training.Train(context.Background(), cfg, splits, store, training.Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return store, splits
}

// Scenario B: ten held-out predictions.
func TestInfer_HeldOutItems(t *testing.T) {
	store, splits := trainedStore(t)
	items, err := data.Window(splits.Test, 0, 10)
	require.NoError(t, err)

	result, err := Infer(context.Background(), store, cpu.New(), items)
	require.NoError(t, err)
	require.Len(t, result.Predicted, 10)
	for _, p := range result.Predicted {
		assert.GreaterOrEqual(t, p, 0)
		assert.Less(t, p, 10)
	}
	assert.GreaterOrEqual(t, result.Accuracy, 0.0)
	assert.LessOrEqual(t, result.Accuracy, 1.0)
	for i, item := range items {
		assert.Equal(t, item.Label, result.Labels[i])
	}

	again, err := Infer(context.Background(), store, cpu.New(), items)
	require.NoError(t, err)
	assert.Equal(t, result, again, "inference must be deterministic")
}

func TestInfer_MissingArtifacts(t *testing.T) {
	ctx := context.Background()
	items, err := data.Window(data.Synthetic(3, 1), 0, 3)
	require.NoError(t, err)

	empty := artifact.NewLocalStore(t.TempDir())
	_, err = Infer(ctx, empty, cpu.New(), items)
	require.ErrorIs(t, err, artifact.ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "config should exist for the model; run train first")

	cfgJSON, err := training.MarshalConfig(training.DefaultTrainingConfig())
	require.NoError(t, err)
	onlyConfig := artifact.NewLocalStore(t.TempDir())
	require.NoError(t, onlyConfig.Commit(ctx, []artifact.Entry{{Name: artifact.ConfigName, Data: cfgJSON}}))
	_, err = Infer(ctx, onlyConfig, cpu.New(), items)
	require.ErrorIs(t, err, artifact.ErrPreconditionMissing)
	assert.Contains(t, err.Error(), "trained model should exist; run train first")
}

func TestInfer_CorruptArtifacts(t *testing.T) {
	ctx := context.Background()
	store, splits := trainedStore(t)
	items, err := data.Window(splits.Test, 0, 2)
	require.NoError(t, err)

	// Flip a byte in the tensor data: the checksum no longer matches.
	blob, err := store.Get(ctx, artifact.ModelName)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0xFF
	cfgBlob, err := store.Get(ctx, artifact.ConfigName)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, []artifact.Entry{
		{Name: artifact.ModelName, Data: blob},
		{Name: artifact.ConfigName, Data: cfgBlob},
	}))
	_, err = Infer(ctx, store, cpu.New(), items)
	assert.ErrorIs(t, err, artifact.ErrArtifactCorrupt)

	// A config whose architecture does not match the stored record.
	cfg, err := training.ParseConfig(cfgBlob)
	require.NoError(t, err)
	cfg.Model.HiddenSize = 32
	badCfg, err := training.MarshalConfig(cfg)
	require.NoError(t, err)
	require.NoError(t, store.Commit(ctx, []artifact.Entry{{Name: artifact.ConfigName, Data: badCfg}}))
	_, err = Infer(ctx, store, cpu.New(), items)
	assert.ErrorIs(t, err, artifact.ErrArtifactCorrupt)

	require.NoError(t, store.Commit(ctx, []artifact.Entry{{Name: artifact.ConfigName, Data: []byte("{")}}))
	_, err = Infer(ctx, store, cpu.New(), items)
	assert.ErrorIs(t, err, artifact.ErrArtifactCorrupt)
}

func TestInfer_EmptyItems(t *testing.T) {
	store, _ := trainedStore(t)
	_, err := Infer(context.Background(), store, cpu.New(), nil)
	assert.ErrorIs(t, err, artifact.ErrArtifactCorrupt)
}

func TestEvaluate_ImagesTooSmall(t *testing.T) {
	backend := cpu.New()
	m, err := model.New(model.DefaultModelConfig(), backend, rand.New(rand.NewPCG(1, 0))) //nolint:gosec // test determinism
	require.NoError(t, err)
	ctx := context.Background()

	tiny := []data.Item{{Image: make([]float32, 16), Height: 4, Width: 4}}
	assert.NotPanics(t, func() {
		_, err = Evaluate(ctx, m, tiny)
	})
	assert.ErrorIs(t, err, data.ErrShapeMismatch)

	mixed := []data.Item{
		{Image: make([]float32, 36), Height: 6, Width: 6},
		{Image: make([]float32, 49), Height: 7, Width: 7},
	}
	_, err = Evaluate(ctx, m, mixed)
	assert.ErrorIs(t, err, data.ErrShapeMismatch)

	result, err := Evaluate(ctx, m, []data.Item{{Image: make([]float32, 25), Height: 5, Width: 5, Label: 3}})
	require.NoError(t, err)
	assert.Len(t, result.Predicted, 1)
}
