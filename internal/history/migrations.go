package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Tables as they were first released, before runs.steps existed.
type runV0 struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Location       string    `gorm:"not null"`
	Status         string    `gorm:"size:20;not null"`
	Config         datatypes.JSON
	StartTime      time.Time
	CompletionTime sql.NullTime
	Error          sql.NullString
}

func (runV0) TableName() string { return "runs" }

type epochV0 struct {
	RunId         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number        int       `gorm:"primaryKey;autoIncrement:false"`
	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	DurationMs    int64
}

func (epochV0) TableName() string { return "epochs" }

func migration0(db *gorm.DB) error {
	return db.AutoMigrate(&runV0{}, &epochV0{})
}

func migration1(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Run{}, "Steps"); err != nil {
		return fmt.Errorf("error adding steps column: %w", err)
	}
	if err := db.Model(&Run{}).Where("steps IS NULL").Update("steps", 0).Error; err != nil {
		return fmt.Errorf("error setting default value for steps: %w", err)
	}
	return nil
}

func rollback1(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Run{}, "Steps"); err != nil {
		return fmt.Errorf("error dropping steps column: %w", err)
	}
	return nil
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: migration0,
		},
		{
			ID:       "1",
			Migrate:  migration1,
			Rollback: rollback1,
		},
	}
}

// GetMigrator returns the schema migrator for the history database.
func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, migrations())

	// A clean database skips the migration chain and gets the latest schema.
	migrator.InitSchema(func(txn *gorm.DB) error {
		slog.Debug("clean history database detected, running full schema initialization")

		dbType := db.Dialector.Name()
		if dbType == "sqlite" || dbType == "sqlite3" {
			// Sqlite does not enforce foreign keys unless asked to.
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling foreign keys for SQLite", "error", err)
			}
		}

		return txn.AutoMigrate(&Run{}, &Epoch{})
	})

	return migrator
}
