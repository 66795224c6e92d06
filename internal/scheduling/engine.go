package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"learning-backend/internal/database"
	"learning-backend/internal/datasets"
	"learning-backend/internal/learning"
	"learning-backend/internal/storage"
	"learning-backend/pkg/models"
)

const artifactKeyPrefix = "artifacts/"

type EngineOptions struct {
	// Object store bucket holding artifact blobs.
	Bucket string

	TransferSourcePolicy learning.SourcePolicy

	// Remediation threshold used by the auto scheduler.
	TargetAccuracy float64

	Strategies learning.StrategyOptions
}

func (o *EngineOptions) applyDefaults() {
	if o.Bucket == "" {
		o.Bucket = "models"
	}
	if o.TransferSourcePolicy == "" {
		o.TransferSourcePolicy = learning.FirstMatch
	}
	if o.TargetAccuracy <= 0 {
		o.TargetAccuracy = 0.8
	}
}

// Engine owns the task queue, the model registry, the metrics store, and the
// single worker goroutine. All scheduler state hangs off the engine so that
// independent instances can coexist, which the tests rely on.
type Engine struct {
	db       *gorm.DB
	store    storage.ObjectStore
	bucket   string
	registry *datasets.Registry
	loader   datasets.Loader

	strategies map[models.LearningMode]learning.Strategy

	queue   *TaskQueue
	models  *ModelRegistry
	metrics *MetricsStore

	targetAccuracy float64

	mu         sync.Mutex
	tasks      map[string]*Task
	inflight   map[string]string // idempotency key -> task id
	keysByTask map[string]string

	seq atomic.Uint64

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewEngine(db *gorm.DB, store storage.ObjectStore, registry *datasets.Registry, loader datasets.Loader, opts EngineOptions) (*Engine, error) {
	opts.applyDefaults()

	e := &Engine{
		db:             db,
		store:          store,
		bucket:         opts.Bucket,
		registry:       registry,
		loader:         loader,
		queue:          NewTaskQueue(),
		models:         NewModelRegistry(),
		metrics:        NewMetricsStore(),
		targetAccuracy: opts.TargetAccuracy,
		tasks:          make(map[string]*Task),
		inflight:       make(map[string]string),
		keysByTask:     make(map[string]string),
		done:           make(chan struct{}),
	}

	strategyOpts := opts.Strategies
	strategyOpts.Finder = e.models
	strategyOpts.SourcePolicy = opts.TransferSourcePolicy
	e.strategies = learning.NewStrategies(strategyOpts)

	if err := store.CreateBucket(context.Background(), e.bucket); err != nil {
		return nil, fmt.Errorf("failed to create artifact bucket: %w", err)
	}

	if err := e.restore(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to restore engine state: %w", err)
	}

	return e, nil
}

// Start launches the worker goroutine. One worker per engine; strategies are
// never executed concurrently.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.started = true

	ctx, e.cancel = context.WithCancel(ctx)
	go e.run(ctx)
}

// Stop cancels the worker, closes the queue, and waits for the worker to
// exit. An in-flight task runs to completion and its outcome is persisted;
// tasks still queued stay pending, in memory and in the database, to be
// re-queued by the next engine over the same store.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.queue.Close()
	<-e.done
}

// Submit validates the dataset at submission time and enqueues a pending
// task, returning its id. mode defaults to the dataset's default learning
// mode when empty.
func (e *Engine) Submit(ctx context.Context, datasetName string, mode models.LearningMode, priority int, params learning.Params) (string, error) {
	id, _, err := e.submit(ctx, datasetName, mode, priority, params, "")
	return id, err
}

func (e *Engine) submit(ctx context.Context, datasetName string, mode models.LearningMode, priority int, params learning.Params, idempotencyKey string) (string, bool, error) {
	desc, ok := e.registry.Get(datasetName)
	if !ok {
		return "", false, fmt.Errorf("%w: '%s'", ErrUnknownDataset, datasetName)
	}

	if mode == "" {
		mode = desc.DefaultMode
	}
	if _, err := models.ParseLearningMode(string(mode)); err != nil {
		return "", false, err
	}

	if params == nil {
		params = learning.Params{}
	}

	e.mu.Lock()
	if idempotencyKey != "" {
		if pending, held := e.inflight[idempotencyKey]; held {
			e.mu.Unlock()
			slog.Debug("skipping duplicate task submission", "key", idempotencyKey, "pending_task", pending)
			return "", false, nil
		}
	}

	seq := e.seq.Add(1)
	now := time.Now().UTC()
	task := &Task{
		Id:           fmt.Sprintf("%s_%d_%d", datasetName, now.Unix(), seq),
		DatasetName:  datasetName,
		Mode:         mode,
		Priority:     priority,
		Sequence:     seq,
		Parameters:   params,
		Status:       database.TaskPending,
		CreationTime: now,
	}

	e.tasks[task.Id] = task
	if idempotencyKey != "" {
		e.inflight[idempotencyKey] = task.Id
		e.keysByTask[task.Id] = idempotencyKey
	}
	e.mu.Unlock()

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		paramsJSON = []byte("{}")
	}
	row := database.LearningTask{
		Id:           task.Id,
		DatasetName:  task.DatasetName,
		Mode:         string(task.Mode),
		Priority:     task.Priority,
		Sequence:     task.Sequence,
		Parameters:   datatypes.JSON(paramsJSON),
		Status:       task.Status,
		CreationTime: task.CreationTime,
	}
	if err := e.db.WithContext(ctx).Create(&row).Error; err != nil {
		e.dropTask(task.Id, idempotencyKey)
		return "", false, fmt.Errorf("error persisting task '%s': %w", task.Id, err)
	}

	if err := e.queue.Push(task); err != nil {
		e.dropTask(task.Id, idempotencyKey)
		return "", false, err
	}

	slog.Info("added learning task", "task_id", task.Id, "dataset", datasetName, "mode", mode, "priority", priority)
	return task.Id, true, nil
}

// dropTask undoes the bookkeeping of a submission that could not be
// persisted or queued.
func (e *Engine) dropTask(taskId, idempotencyKey string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.tasks, taskId)
	if idempotencyKey != "" {
		delete(e.inflight, idempotencyKey)
		delete(e.keysByTask, taskId)
	}
}

// Status returns the task's current lifecycle status.
func (e *Engine) Status(taskId string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskId]
	if !ok {
		return "", fmt.Errorf("%w: '%s'", ErrUnknownTask, taskId)
	}
	return task.Status, nil
}

// Task returns a copy of the task's bookkeeping state.
func (e *Engine) Task(taskId string) (Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	task, ok := e.tasks[taskId]
	if !ok {
		return Task{}, fmt.Errorf("%w: '%s'", ErrUnknownTask, taskId)
	}
	return *task, nil
}

// AggregateScore returns the monotonic score in [0,1].
func (e *Engine) AggregateScore() float64 {
	return e.metrics.Score()
}

func (e *Engine) MetricsSnapshot() map[string]Metric {
	return e.metrics.Snapshot()
}

func (e *Engine) Model(taskId string) (*ModelRecord, error) {
	record, ok := e.models.Get(taskId)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownTask, taskId)
	}
	return record, nil
}

func (e *Engine) Datasets() []datasets.Descriptor {
	return e.registry.List()
}

func (e *Engine) QueuedTasks() int {
	return e.queue.Len()
}

func (e *Engine) ActiveModels() int {
	return e.models.Count()
}

func (e *Engine) setTaskStatus(ctx context.Context, task *Task, status string) {
	e.mu.Lock()
	if !canTransition(task.Status, status) {
		e.mu.Unlock()
		slog.Error("invalid task status transition", "task_id", task.Id, "from", task.Status, "to", status)
		return
	}
	task.Status = status
	e.mu.Unlock()

	if err := database.UpdateTaskStatus(ctx, e.db, task.Id, status); err != nil {
		slog.Error("error persisting task status", "task_id", task.Id, "status", status, "error", err)
	}
}

func (e *Engine) releaseKey(taskId string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if key, ok := e.keysByTask[taskId]; ok {
		delete(e.inflight, key)
		delete(e.keysByTask, taskId)
	}
}

// restore reloads persisted state after a restart: model records (with their
// artifact blobs), metrics, the recomputed aggregate score, and pending tasks,
// which are re-queued. Tasks recorded as running were interrupted mid-flight
// and are marked failed since a task is never re-queued.
func (e *Engine) restore(ctx context.Context) error {
	var records []database.ModelRecord
	if err := e.db.WithContext(ctx).Order("creation_time asc, task_id asc").Find(&records).Error; err != nil {
		return fmt.Errorf("failed to load model records: %w", err)
	}
	for _, row := range records {
		record := &ModelRecord{
			TaskId:       row.TaskId,
			DatasetName:  row.DatasetName,
			Mode:         models.LearningMode(row.Mode),
			ArtifactKind: learning.ArtifactKind(row.ArtifactKind),
			ArtifactKey:  row.ArtifactKey,
			CreationTime: row.CreationTime,
		}
		if row.Accuracy.Valid {
			accuracy := row.Accuracy.Float64
			record.Accuracy = &accuracy
		}
		if row.SourceTaskId.Valid {
			record.SourceTaskId = row.SourceTaskId.String
		}

		blob, err := e.store.GetObject(ctx, e.bucket, row.ArtifactKey)
		if err != nil {
			slog.Warn("artifact blob missing during restore", "task_id", row.TaskId, "key", row.ArtifactKey, "error", err)
		} else if artifact, err := learning.DecodeArtifact(blob); err != nil {
			slog.Warn("artifact blob corrupt during restore", "task_id", row.TaskId, "error", err)
		} else {
			record.Artifact = artifact
		}

		if err := e.models.Put(record); err != nil {
			return err
		}
	}

	var metricRows []database.PerformanceMetric
	if err := e.db.WithContext(ctx).Find(&metricRows).Error; err != nil {
		return fmt.Errorf("failed to load performance metrics: %w", err)
	}
	for _, row := range metricRows {
		e.metrics.Record(Metric{
			TaskId:       row.TaskId,
			DatasetName:  row.DatasetName,
			Mode:         models.LearningMode(row.Mode),
			Accuracy:     row.Accuracy,
			Contribution: row.Contribution,
			CreationTime: row.CreationTime,
		})
	}

	var taskRows []database.LearningTask
	if err := e.db.WithContext(ctx).Order("sequence asc").Find(&taskRows).Error; err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	for _, row := range taskRows {
		if row.Sequence > e.seq.Load() {
			e.seq.Store(row.Sequence)
		}

		params := learning.Params{}
		if len(row.Parameters) > 0 {
			if err := json.Unmarshal(row.Parameters, &params); err != nil {
				slog.Warn("task parameters corrupt during restore", "task_id", row.Id, "error", err)
			}
		}

		task := &Task{
			Id:           row.Id,
			DatasetName:  row.DatasetName,
			Mode:         models.LearningMode(row.Mode),
			Priority:     row.Priority,
			Sequence:     row.Sequence,
			Parameters:   params,
			Status:       row.Status,
			CreationTime: row.CreationTime,
		}
		e.tasks[task.Id] = task

		switch row.Status {
		case database.TaskPending:
			if err := e.queue.Push(task); err != nil {
				return err
			}
		case database.TaskRunning:
			slog.Warn("task was interrupted by restart, marking failed", "task_id", task.Id)
			database.SaveTaskError(ctx, e.db, task.Id, "interrupted by restart")
			e.setTaskStatus(ctx, task, database.TaskFailed)
		}
	}

	if len(records) > 0 || len(taskRows) > 0 {
		slog.Info("restored engine state",
			"models", len(records), "metrics", len(metricRows), "tasks", len(taskRows), "score", e.metrics.Score())
	}

	return nil
}
