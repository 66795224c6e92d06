package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateTaskStatus(ctx context.Context, txn *gorm.DB, taskId string, status string) error {
	updates := map[string]any{"status": status}
	switch status {
	case TaskRunning:
		updates["start_time"] = time.Now().UTC()
	case TaskCompleted, TaskFailed:
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&LearningTask{Id: taskId}).Updates(updates).Error; err != nil {
		slog.Error("error updating task status", "task_id", taskId, "status", status, "error", err)
		return err
	}
	return nil
}

func SaveTaskError(ctx context.Context, txn *gorm.DB, taskId string, errorMessage string) {
	taskError := TaskError{
		TaskId:    taskId,
		ErrorId:   uuid.New(),
		Error:     errorMessage,
		Timestamp: time.Now().UTC(),
	}

	if err := txn.WithContext(ctx).Create(&taskError).Error; err != nil {
		slog.Error("error saving task error", "task_id", taskId, "error", err)
	}
}
