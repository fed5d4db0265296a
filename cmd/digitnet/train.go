package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/history"
	"github.com/born-ml/digitnet/internal/training"
)

func (a *app) train(ctx context.Context, args []string) error {
	defaults := training.DefaultTrainingConfig()

	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	artifactDir := fs.String("artifact-dir", a.env.ArtifactDir, "Artifact directory or s3://bucket/prefix")
	configPath := fs.String("config", "", "YAML run config applied before flags")
	dataDir := fs.String("data-dir", a.env.DataDir, "Directory with MNIST IDX files (synthetic data when empty)")
	historyDB := fs.String("history", a.env.HistoryDB, "Sqlite run history database (disabled when empty)")
	epochs := fs.Int("num-epochs", defaults.NumEpochs, "Number of epochs")
	batchSize := fs.Int("batch-size", defaults.BatchSize, "Batch size")
	numWorkers := fs.Int("num-workers", defaults.NumWorkers, "Number of data loader workers")
	seed := fs.Uint64("seed", defaults.Seed, "PRNG seed")
	lr := fs.Float64("lr", defaults.LearningRate, "Learning rate")
	hiddenSize := fs.Int("hidden-size", defaults.Model.HiddenSize, "Hidden layer width")
	dropout := fs.Float64("dropout", defaults.Model.DropoutRate, "Dropout rate")
	optimizer := fs.String("optimizer", defaults.Optimizer.Kind, "Optimizer (adam or sgd)")
	quiet := fs.Bool("quiet", false, "Only log warnings and errors; no progress bar")
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}

	cfg := defaults
	if *configPath != "" {
		if err := cfg.LoadYAML(*configPath); err != nil {
			return err
		}
	}

	// Flags given on the command line take the last word.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "num-epochs":
			cfg.NumEpochs = *epochs
		case "batch-size":
			cfg.BatchSize = *batchSize
		case "num-workers":
			cfg.NumWorkers = *numWorkers
		case "seed":
			cfg.Seed = *seed
		case "lr":
			cfg.LearningRate = *lr
		case "hidden-size":
			cfg.Model.HiddenSize = *hiddenSize
		case "dropout":
			cfg.Model.DropoutRate = *dropout
		case "optimizer":
			cfg.Optimizer.Kind = *optimizer
		}
	})
	if len(positional) > 1 {
		return fmt.Errorf("train: unexpected arguments %v", positional[1:])
	}
	if len(positional) == 1 {
		n, err := strconv.Atoi(positional[0])
		if err != nil {
			return fmt.Errorf("train: invalid num_epochs %q: %w", positional[0], err)
		}
		cfg.NumEpochs = n
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid training config: %w", err)
	}

	var progress io.Writer = a.stderr
	if *quiet {
		a.level.Set(slog.LevelWarn)
		progress = nil
	}

	splits, err := loadSplits(*dataDir, a.logger)
	if err != nil {
		return err
	}
	store, err := a.openStore(ctx, *artifactDir)
	if err != nil {
		return err
	}

	opts := training.Options{Logger: a.logger, Progress: progress}
	if *historyDB != "" {
		db, err := history.Open(*historyDB)
		if err != nil {
			return err
		}
		opts.Recorder = history.NewRecorder(db)
	}

	start := time.Now()
	report, err := training.Train(ctx, cfg, splits, store, opts)
	if err != nil {
		return err
	}
	final := report.Final()
	fmt.Fprintf(a.stdout, "Run %s: %d epochs, %d steps\n", report.RunID, len(report.Epochs), report.Steps)
	fmt.Fprintf(a.stdout, "Validation loss %.4f, accuracy %.2f%%\n", final.Valid.Loss, final.Valid.Accuracy*100)
	fmt.Fprintf(a.stdout, "Artifacts written to %s\n", store.Location())
	fmt.Fprintf(a.stdout, "Training time: %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// openStore opens the artifact location, creating the bucket for S3.
func (a *app) openStore(ctx context.Context, location string) (artifact.Store, error) {
	store, err := artifact.Open(ctx, location, a.env.S3Options())
	if err != nil {
		return nil, err
	}
	if s3store, ok := store.(*artifact.S3Store); ok {
		if err := s3store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// parseInterspersed parses flags that may appear before or after positional
// arguments and returns the positionals in order. A literal "--" ends flag
// parsing.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return positional, nil
		}
		if len(args) > len(rest) && args[len(args)-len(rest)-1] == "--" {
			return append(positional, rest...), nil
		}
		positional = append(positional, rest[0])
		args = rest[1:]
	}
}
