package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Terminal learning task statuses. Transitions are one directional:
// PENDING -> RUNNING -> {COMPLETED, FAILED}.
const (
	TaskPending   string = "PENDING"
	TaskRunning   string = "RUNNING"
	TaskCompleted string = "COMPLETED"
	TaskFailed    string = "FAILED"
)

type LearningTask struct {
	Id string `gorm:"primaryKey"`

	DatasetName string `gorm:"not null;index"`
	Mode        string `gorm:"size:20;not null"`

	// Tasks are served lowest priority value first; Sequence breaks ties so the
	// queue order is total even when priorities collide.
	Priority int    `gorm:"not null"`
	Sequence uint64 `gorm:"not null"`

	Parameters datatypes.JSON

	Status         string `gorm:"size:20;not null"`
	CreationTime   time.Time
	StartTime      sql.NullTime
	CompletionTime sql.NullTime

	Errors []TaskError `gorm:"foreignKey:TaskId;constraint:OnDelete:CASCADE"`
}

type ModelRecord struct {
	TaskId string `gorm:"primaryKey"`

	DatasetName  string `gorm:"not null;index"`
	Mode         string `gorm:"size:20;not null"`
	ArtifactKind string `gorm:"size:20;not null"`

	// Object store key of the artifact blob, written immediately after this row.
	ArtifactKey string `gorm:"not null"`

	Accuracy     sql.NullFloat64
	SourceTaskId sql.NullString

	CreationTime time.Time
}

type PerformanceMetric struct {
	TaskId string `gorm:"primaryKey"`

	DatasetName  string `gorm:"not null;index"`
	Mode         string `gorm:"size:20;not null"`
	Accuracy     float64
	Contribution float64

	CreationTime time.Time
}

type TaskError struct {
	TaskId    string    `gorm:"primaryKey"`
	ErrorId   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Error     string
	Timestamp time.Time
}
