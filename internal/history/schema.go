package history

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Run statuses.
const (
	RunTraining  string = "TRAINING"
	RunCompleted string = "COMPLETED"
	RunFailed    string = "FAILED"
)

// Run is one invocation of the train command.
type Run struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Location       string `gorm:"not null"`
	Status         string `gorm:"size:20;not null"`
	Config         datatypes.JSON
	StartTime      time.Time
	CompletionTime sql.NullTime
	Error          sql.NullString
	Steps          int64 `gorm:"default:0"`

	Epochs []Epoch `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

// Epoch holds the metrics of one completed epoch.
type Epoch struct {
	RunId  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number int       `gorm:"primaryKey;autoIncrement:false"`

	TrainLoss     float64
	TrainAccuracy float64
	ValidLoss     float64
	ValidAccuracy float64
	DurationMs    int64
}
