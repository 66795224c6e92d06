package scheduling

import (
	"time"

	"learning-backend/internal/database"
	"learning-backend/internal/learning"
	"learning-backend/pkg/models"
)

// Task is a unit of requested learning work against one dataset. It is owned
// by the queue while pending and by the worker afterwards; the engine guards
// Status with its lock.
type Task struct {
	Id          string
	DatasetName string
	Mode        models.LearningMode
	Priority    int

	// Sequence makes (Priority, Sequence) a total order over queued tasks;
	// equal priorities are served in submission order.
	Sequence uint64

	Parameters   learning.Params
	Status       string
	CreationTime time.Time
}

// canTransition enforces the one directional task lifecycle:
// PENDING -> RUNNING -> {COMPLETED, FAILED}. A task is never re-queued.
func canTransition(from, to string) bool {
	switch from {
	case database.TaskPending:
		return to == database.TaskRunning || to == database.TaskFailed
	case database.TaskRunning:
		return to == database.TaskCompleted || to == database.TaskFailed
	default:
		return false
	}
}
