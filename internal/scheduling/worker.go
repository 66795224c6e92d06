package scheduling

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"learning-backend/internal/database"
	"learning-backend/internal/learning"
	"learning-backend/internal/storage"
)

// run is the single worker loop: wait for a task, execute it, record the
// outcome, repeat. A failing task never halts the loop. The lifecycle ctx
// only stops consumption; a dequeued task cannot be aborted mid-execution,
// so it runs and persists under a context detached from cancellation.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	slog.Info("learning worker started")

	for {
		task, err := e.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, ErrQueueClosed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				slog.Info("learning worker stopped")
				return
			}
			slog.Error("learning worker error", "error", err)
			continue
		}

		e.executeTask(context.WithoutCancel(ctx), task)
	}
}

// executeTask drives one task through its lifecycle. All failure branches
// converge on the single guarded exit below so that a task can never end in a
// non-terminal status.
func (e *Engine) executeTask(ctx context.Context, task *Task) {
	slog.Info("executing learning task", "task_id", task.Id, "dataset", task.DatasetName, "mode", task.Mode)
	e.setTaskStatus(ctx, task, database.TaskRunning)

	err := e.runTask(ctx, task)
	if err != nil {
		slog.Error("learning task failed", "task_id", task.Id, "dataset", task.DatasetName, "error", err)
		database.SaveTaskError(ctx, e.db, task.Id, err.Error())
		e.setTaskStatus(ctx, task, database.TaskFailed)
	} else {
		e.setTaskStatus(ctx, task, database.TaskCompleted)
		slog.Info("completed learning task", "task_id", task.Id)
	}

	e.releaseKey(task.Id)
}

func (e *Engine) runTask(ctx context.Context, task *Task) (err error) {
	// A panicking strategy fails its task instead of crashing the worker.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during task execution: %v", r)
		}
	}()

	if _, ok := e.registry.Get(task.DatasetName); !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownDataset, task.DatasetName)
	}

	strategy, ok := e.strategies[task.Mode]
	if !ok {
		return fmt.Errorf("no strategy registered for mode '%s'", task.Mode)
	}

	split, err := e.loader.Load(ctx, task.DatasetName)
	if err != nil {
		return fmt.Errorf("failed to load dataset '%s': %w", task.DatasetName, err)
	}

	artifact, err := strategy.Run(ctx, split, task.Parameters)
	if err != nil {
		return &StrategyError{TaskId: task.Id, DatasetName: task.DatasetName, Err: err}
	}

	return e.recordOutcome(ctx, task, artifact)
}

// recordOutcome writes the model record (row first, then the in-memory
// registry), persists the artifact blob, and publishes the performance
// metric plus the aggregate score bump.
func (e *Engine) recordOutcome(ctx context.Context, task *Task, artifact *learning.Artifact) error {
	now := time.Now().UTC()
	artifactKey := artifactKeyPrefix + task.Id + ".json"

	record := &ModelRecord{
		TaskId:       task.Id,
		DatasetName:  task.DatasetName,
		Mode:         task.Mode,
		ArtifactKind: artifact.Kind,
		ArtifactKey:  artifactKey,
		Artifact:     artifact,
		Accuracy:     artifact.Accuracy,
		SourceTaskId: artifact.SourceTaskId,
		CreationTime: now,
	}

	row := database.ModelRecord{
		TaskId:       record.TaskId,
		DatasetName:  record.DatasetName,
		Mode:         string(record.Mode),
		ArtifactKind: string(record.ArtifactKind),
		ArtifactKey:  record.ArtifactKey,
		CreationTime: record.CreationTime,
	}
	if record.Accuracy != nil {
		row.Accuracy = sql.NullFloat64{Float64: *record.Accuracy, Valid: true}
	}
	if record.SourceTaskId != "" {
		row.SourceTaskId = sql.NullString{String: record.SourceTaskId, Valid: true}
	}
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to persist model record for task %s: %w", task.Id, err)
	}

	if err := e.models.Put(record); err != nil {
		return err
	}

	// The record is committed; a failed blob write leaves the task completed
	// with no durable artifact. Logged, not rolled back.
	if err := e.persistArtifact(ctx, record); err != nil {
		slog.Error("artifact persistence failed", "task_id", task.Id, "key", artifactKey, "error", err)
	}

	metric := Metric{
		TaskId:       task.Id,
		DatasetName:  task.DatasetName,
		Mode:         task.Mode,
		CreationTime: now,
	}
	if artifact.Accuracy != nil {
		metric.Accuracy = *artifact.Accuracy
		metric.Contribution = *artifact.Accuracy * 0.1
	}
	e.metrics.Record(metric)

	metricRow := database.PerformanceMetric{
		TaskId:       metric.TaskId,
		DatasetName:  metric.DatasetName,
		Mode:         string(metric.Mode),
		Accuracy:     metric.Accuracy,
		Contribution: metric.Contribution,
		CreationTime: metric.CreationTime,
	}
	if err := e.db.WithContext(ctx).Create(&metricRow).Error; err != nil {
		slog.Error("error persisting performance metric", "task_id", task.Id, "error", err)
	}

	slog.Info("recorded model",
		"task_id", task.Id, "dataset", task.DatasetName, "kind", artifact.Kind,
		"accuracy", metric.Accuracy, "score", e.metrics.Score())

	return nil
}

func (e *Engine) persistArtifact(ctx context.Context, record *ModelRecord) error {
	blob, err := record.Artifact.Encode()
	if err != nil {
		return &PersistenceError{TaskId: record.TaskId, Err: err}
	}
	if err := storage.PutBytes(ctx, e.store, e.bucket, record.ArtifactKey, blob); err != nil {
		return &PersistenceError{TaskId: record.TaskId, Err: err}
	}
	return nil
}
