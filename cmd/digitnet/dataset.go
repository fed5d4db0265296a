package main

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/born-ml/digitnet/internal/data"
)

// Synthetic fallback dataset. The seed is fixed so train and test see the
// same split.
const (
	syntheticTrain = 1000
	syntheticTest  = 200
	syntheticSeed  = 2024
)

// loadSplits reads MNIST IDX files from dir, or generates the synthetic
// dataset when dir is unset or holds no IDX files.
func loadSplits(dir string, logger *slog.Logger) (data.Splits, error) {
	if dir != "" {
		splits, err := data.LoadMNIST(dir)
		switch {
		case err == nil:
			logger.Info("dataset loaded", "source", dir, "train_items", splits.Train.Len(), "test_items", splits.Test.Len())
			return splits, nil
		case !errors.Is(err, fs.ErrNotExist):
			return data.Splits{}, err
		}
		logger.Warn("no IDX files found, using synthetic dataset", "data_dir", dir, "error", err)
	}
	splits := data.SyntheticSplits(syntheticTrain, syntheticTest, syntheticSeed)
	logger.Info("dataset generated", "source", "synthetic", "train_items", splits.Train.Len(), "test_items", splits.Test.Len())
	return splits, nil
}
