// Package history keeps a sqlite record of training runs and their
// per-epoch metrics.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/born-ml/digitnet/internal/training"
)

// Open opens (or creates) the sqlite database at path and brings its schema
// up to date. Use "file::memory:" for a throwaway database.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	// sqlite allows one writer; an in-memory database exists per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access history database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := GetMigrator(db).Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return db, nil
}

// Recorder persists training events. It implements training.Recorder.
type Recorder struct {
	db *gorm.DB
}

var _ training.Recorder = (*Recorder)(nil)

// NewRecorder wraps an open history database.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// RunStarted inserts a run in the TRAINING state.
func (r *Recorder) RunStarted(ctx context.Context, runID uuid.UUID, location string, cfg training.TrainingConfig) error {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error encoding run config: %w", err)
	}
	run := Run{
		Id:        runID,
		Location:  location,
		Status:    RunTraining,
		Config:    datatypes.JSON(cfgJSON),
		StartTime: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("error creating run %s: %w", runID, err)
	}
	return nil
}

// EpochFinished stores the metrics of one epoch.
func (r *Recorder) EpochFinished(ctx context.Context, runID uuid.UUID, m training.EpochMetrics) error {
	epoch := Epoch{
		RunId:         runID,
		Number:        m.Epoch,
		TrainLoss:     m.Train.Loss,
		TrainAccuracy: m.Train.Accuracy,
		ValidLoss:     m.Valid.Loss,
		ValidAccuracy: m.Valid.Accuracy,
		DurationMs:    m.Duration.Milliseconds(),
	}
	if err := r.db.WithContext(ctx).Create(&epoch).Error; err != nil {
		return fmt.Errorf("error recording epoch %d of run %s: %w", m.Epoch, runID, err)
	}
	return nil
}

// RunFinished marks the run COMPLETED, or FAILED when runErr is set.
func (r *Recorder) RunFinished(ctx context.Context, runID uuid.UUID, report *training.RunReport, runErr error) error {
	updates := map[string]any{
		"status":          RunCompleted,
		"completion_time": sql.NullTime{Time: time.Now().UTC(), Valid: true},
	}
	if runErr != nil {
		updates["status"] = RunFailed
		updates["error"] = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if report != nil {
		updates["steps"] = report.Steps
	}

	result := r.db.WithContext(ctx).Model(&Run{}).Where("id = ?", runID).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("error updating run %s: %w", runID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// Recent returns up to limit runs, newest first, with their epochs.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Run, error) {
	var runs []Run
	err := r.db.WithContext(ctx).
		Preload("Epochs", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		Order("start_time DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("error listing runs: %w", err)
	}
	return runs, nil
}

// Get returns one run with its epochs.
func (r *Recorder) Get(ctx context.Context, runID uuid.UUID) (Run, error) {
	var run Run
	err := r.db.WithContext(ctx).
		Preload("Epochs", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&run, "id = ?", runID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("error loading run %s: %w", runID, err)
	}
	return run, nil
}

// TrainingConfig decodes the stored run configuration.
func (run Run) TrainingConfig() (training.TrainingConfig, error) {
	var cfg training.TrainingConfig
	if err := json.Unmarshal(run.Config, &cfg); err != nil {
		return training.TrainingConfig{}, fmt.Errorf("error decoding config of run %s: %w", run.Id, err)
	}
	return cfg, nil
}
