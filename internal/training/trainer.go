// Package training runs the DigitNet training loop and commits its
// artifacts.
package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/autodiff"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/metric"
	"github.com/born-ml/digitnet/internal/model"
	"github.com/born-ml/digitnet/internal/optim"
	"github.com/born-ml/digitnet/internal/serialization"
)

// Options carries the run's collaborators. All fields are optional.
type Options struct {
	Logger   *slog.Logger // defaults to slog.Default()
	Progress io.Writer    // per-epoch progress bar; nil disables it
	Recorder Recorder     // run history; nil disables it
	Backend  *cpu.CPUBackend
}

type trainBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

type trainer struct {
	cfg    TrainingConfig
	splits data.Splits
	store  artifact.Store
	opts   Options
	logger *slog.Logger

	runID     uuid.UUID
	backend   trainBackend
	model     *model.Model[trainBackend]
	optimizer optim.Optimizer
	train     *data.Loader[trainBackend]
	valid     *data.Loader[trainBackend]
	steps     int64
}

// Train runs cfg.NumEpochs epochs over splits.Train, validating on
// splits.Test after each one, then commits model.born and config.json to
// store.
//
// Cancellation is checked between batches; a cancelled run returns
// ctx.Err() and commits nothing.
func Train(ctx context.Context, cfg TrainingConfig, splits data.Splits, store artifact.Store, opts Options) (*RunReport, error) {
	t := &trainer{cfg: cfg, splits: splits, store: store, opts: opts, logger: opts.Logger}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	start := time.Now()

	report, err := t.run(ctx)
	if err != nil {
		t.enter(StateFailed, "error", err)
		if t.runID != uuid.Nil {
			t.record(func() error { return t.opts.Recorder.RunFinished(context.WithoutCancel(ctx), t.runID, nil, err) })
		}
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, err
	}

	report.Elapsed = time.Since(start)
	t.enter(StateDone, "elapsed", report.Elapsed, "location", store.Location())
	t.record(func() error { return t.opts.Recorder.RunFinished(ctx, t.runID, report, nil) })
	return report, nil
}

func (t *trainer) run(ctx context.Context) (*RunReport, error) {
	t.enter(StateInitializing)
	if err := t.initialize(ctx); err != nil {
		return nil, err
	}

	report := &RunReport{RunID: t.runID, Location: t.store.Location()}
	for epoch := 1; epoch <= t.cfg.NumEpochs; epoch++ {
		m, err := t.epoch(ctx, epoch)
		if err != nil {
			return nil, err
		}
		report.Epochs = append(report.Epochs, m)
		t.logger.Info("epoch finished",
			"run_id", t.runID,
			"epoch", epoch,
			"train_loss", m.Train.Loss,
			"train_accuracy", m.Train.Accuracy,
			"valid_loss", m.Valid.Loss,
			"valid_accuracy", m.Valid.Accuracy,
			"duration", m.Duration,
		)
		t.record(func() error { return t.opts.Recorder.EpochFinished(ctx, t.runID, m) })
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.enter(StateFinalizing)
	if err := t.finalize(ctx, report); err != nil {
		return nil, err
	}
	report.Steps = t.steps
	return report, nil
}

func (t *trainer) initialize(ctx context.Context) error {
	if err := t.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid training config: %w", err)
	}
	if t.splits.Train == nil || t.splits.Train.Len() == 0 {
		return fmt.Errorf("%w: training split is empty", artifact.ErrArtifactCorrupt)
	}
	if t.splits.Test == nil || t.splits.Test.Len() == 0 {
		return fmt.Errorf("%w: validation split is empty", artifact.ErrArtifactCorrupt)
	}

	inner := t.opts.Backend
	if inner == nil {
		inner = cpu.New()
	}
	t.backend = autodiff.New(inner)

	rng := rand.New(rand.NewPCG(t.cfg.Seed, 0)) //nolint:gosec // reproducible runs, not crypto
	m, err := model.New(t.cfg.Model, t.backend, rng)
	if err != nil {
		return err
	}
	t.model = m

	t.optimizer, err = optim.Build(t.cfg.Optimizer, t.cfg.LearningRate, m.Parameters(), t.backend)
	if err != nil {
		return fmt.Errorf("failed to build optimizer: %w", err)
	}

	batcher := data.NewBatcher(t.backend)
	t.train, err = data.NewLoader(t.splits.Train, batcher, data.LoaderConfig{
		BatchSize:  t.cfg.BatchSize,
		NumWorkers: t.cfg.NumWorkers,
		Shuffle:    true,
		Seed:       t.cfg.Seed,
	})
	if err != nil {
		return err
	}
	t.valid, err = data.NewLoader(t.splits.Test, batcher, data.LoaderConfig{
		BatchSize:  t.cfg.BatchSize,
		NumWorkers: t.cfg.NumWorkers,
	})
	if err != nil {
		return err
	}

	t.runID = uuid.New()
	t.logger.Info("training initialized",
		"run_id", t.runID,
		"backend", inner.Describe(),
		"parameters", m.NumParameters(),
		"train_items", t.splits.Train.Len(),
		"valid_items", t.splits.Test.Len(),
		"optimizer", t.cfg.Optimizer.Kind,
	)
	t.record(func() error { return t.opts.Recorder.RunStarted(ctx, t.runID, t.store.Location(), t.cfg) })
	return nil
}

func (t *trainer) epoch(ctx context.Context, epoch int) (EpochMetrics, error) {
	start := time.Now()

	t.enter(StateTrainEpoch, "epoch", epoch)
	bar := t.progress(epoch)
	var trainMeter metric.Meter
	err := t.train.ForEach(ctx, epoch, func(_ int, batch *data.Batch[trainBackend]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := t.trainBatch(batch)
		if err != nil {
			return err
		}
		trainMeter.Add(out.Loss, out.Correct, out.Size)
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return EpochMetrics{}, err
	}

	t.enter(StateValidateEpoch, "epoch", epoch)
	var validMeter metric.Meter
	err = t.valid.ForEach(ctx, epoch, func(_ int, batch *data.Batch[trainBackend]) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := t.validBatch(batch)
		if err != nil {
			return err
		}
		validMeter.Add(out.Loss, out.Correct, out.Size)
		return nil
	})
	if err != nil {
		return EpochMetrics{}, err
	}

	// Meters are committed only once the whole epoch succeeded.
	trainSummary, err := trainMeter.Summary()
	if err != nil {
		return EpochMetrics{}, fmt.Errorf("%w: train metrics: %w", artifact.ErrArtifactCorrupt, err)
	}
	validSummary, err := validMeter.Summary()
	if err != nil {
		return EpochMetrics{}, fmt.Errorf("%w: valid metrics: %w", artifact.ErrArtifactCorrupt, err)
	}
	return EpochMetrics{
		Epoch:    epoch,
		Train:    trainSummary,
		Valid:    validSummary,
		Duration: time.Since(start),
	}, nil
}

func (t *trainer) trainBatch(batch *data.Batch[trainBackend]) (out model.StepOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			t.backend.Tape().StopRecording()
			t.backend.Tape().Clear()
			err = fmt.Errorf("%w: %v", ErrStep, r)
		}
	}()

	t.optimizer.ZeroGrad()
	out, grads, err := model.TrainStep(t.model, batch)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrStep, err)
	}
	if !metric.IsFinite(out.Loss) {
		t.backend.Tape().Clear()
		return out, fmt.Errorf("%w: step %d loss %v", ErrNonFiniteLoss, t.steps+1, out.Loss)
	}
	t.optimizer.Step(grads)
	t.backend.Tape().Clear()
	t.steps++
	return out, nil
}

func (t *trainer) validBatch(batch *data.Batch[trainBackend]) (out model.StepOutput, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStep, r)
		}
	}()

	out, err = model.ValidStep(t.model, batch)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrStep, err)
	}
	if !metric.IsFinite(out.Loss) {
		return out, fmt.Errorf("%w: validation loss %v", ErrNonFiniteLoss, out.Loss)
	}
	return out, nil
}

func (t *trainer) finalize(ctx context.Context, report *RunReport) error {
	modelConfig, err := json.Marshal(t.cfg.Model)
	if err != nil {
		return fmt.Errorf("%w: failed to encode model config: %w", artifact.ErrPersistence, err)
	}
	blob, err := serialization.Marshal(t.model.Record(), serialization.Header{
		ModelType: model.ModelType,
		Metadata: map[string]string{
			"run_id":       t.runID.String(),
			"model_config": string(modelConfig),
		},
		CheckpointMeta: &serialization.CheckpointMeta{
			Epoch:         len(report.Epochs),
			Step:          t.steps,
			Loss:          report.Final().Valid.Loss,
			OptimizerType: t.cfg.Optimizer.Kind,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to encode model: %w", artifact.ErrPersistence, err)
	}
	cfgJSON, err := MarshalConfig(t.cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", artifact.ErrPersistence, err)
	}

	// config.json goes last: its presence marks a complete checkpoint.
	if err := t.store.Commit(ctx, []artifact.Entry{
		{Name: artifact.ModelName, Data: blob},
		{Name: artifact.ConfigName, Data: cfgJSON},
	}); err != nil {
		return err
	}
	t.logger.Info("artifacts committed", "run_id", t.runID, "location", t.store.Location(), "model_bytes", len(blob))
	return nil
}

func (t *trainer) progress(epoch int) *progressbar.ProgressBar {
	if t.opts.Progress == nil {
		return nil
	}
	return progressbar.NewOptions(t.train.NumBatches(),
		progressbar.OptionSetWriter(t.opts.Progress),
		progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, t.cfg.NumEpochs)),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func (t *trainer) enter(s State, args ...any) {
	attrs := append([]any{"state", s.String()}, args...)
	if t.runID != uuid.Nil {
		attrs = append(attrs, "run_id", t.runID)
	}
	if s == StateFailed {
		t.logger.Error("training state", attrs...)
		return
	}
	t.logger.Info("training state", attrs...)
}

// record forwards an event to the recorder. History is auxiliary, so a
// failing recorder is logged and the run continues.
func (t *trainer) record(fn func() error) {
	if t.opts.Recorder == nil {
		return
	}
	if err := fn(); err != nil {
		t.logger.Warn("failed to record run history", "run_id", t.runID, "error", err)
	}
}
