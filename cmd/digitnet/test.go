package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/born-ml/digitnet/internal/artifact"
	"github.com/born-ml/digitnet/internal/backend/cpu"
	"github.com/born-ml/digitnet/internal/data"
	"github.com/born-ml/digitnet/internal/inference"
)

// Default evaluation window: the single test item at index 40.
const (
	defaultOffset    = 40
	defaultNumImages = 1
	maxPrintedItems  = 20
)

func (a *app) test(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	artifactDir := fs.String("artifact-dir", a.env.ArtifactDir, "Artifact directory or s3://bucket/prefix")
	dataDir := fs.String("data-dir", a.env.DataDir, "Directory with MNIST IDX files (synthetic data when empty)")
	numImages := fs.Int("num-images", defaultNumImages, "Number of test images to evaluate")
	offset := fs.Int("offset", defaultOffset, "Index of the first test image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("test: unexpected arguments %v", fs.Args())
	}
	if *numImages <= 0 {
		return fmt.Errorf("test: num-images must be > 0, got %d", *numImages)
	}

	splits, err := loadSplits(*dataDir, a.logger)
	if err != nil {
		return err
	}
	items, err := data.Window(splits.Test, *offset, *offset+*numImages)
	if err != nil {
		return err
	}
	store, err := artifact.Open(ctx, *artifactDir, a.env.S3Options())
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := inference.Infer(ctx, store, cpu.New(), items)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if len(items) <= maxPrintedItems {
		for i := range result.Predicted {
			fmt.Fprintf(a.stdout, "Image %d: predicted %d, actual %d\n", *offset+i, result.Predicted[i], result.Labels[i])
		}
	}
	fmt.Fprintf(a.stdout, "Inference time: %v\n", elapsed.Round(time.Microsecond))
	fmt.Fprintf(a.stdout, "Accuracy: %.2f%% (%d images)\n", result.Accuracy*100, len(items))
	return nil
}
