package scheduling

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"learning-backend/internal/database"
	"learning-backend/internal/datasets"
	"learning-backend/internal/learning"
	"learning-backend/internal/storage"
	"learning-backend/pkg/models"
)

func newWorkerTestEngine(t *testing.T) *Engine {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.GetMigrator(db).Migrate())

	registry, err := datasets.NewRegistry(
		datasets.Descriptor{Name: "sensor_grid", Kind: datasets.Classification, Features: 16, Classes: 3, Samples: 200, DefaultMode: models.Supervised},
	)
	require.NoError(t, err)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	engine, err := NewEngine(db, store, registry, datasets.NewSyntheticLoader(registry, 100), EngineOptions{
		Bucket:     "test-models",
		Strategies: learning.StrategyOptions{HiddenSize: 8, Epochs: 2, FineTuneEpochs: 1},
	})
	require.NoError(t, err)
	return engine
}

func networkArtifact(split *datasets.Split) *learning.Artifact {
	accuracy := 0.9
	return &learning.Artifact{
		Kind:     learning.ArtifactNetwork,
		Network:  learning.NewNetwork(split.Info.Features, 4, split.Info.Classes, rand.New(rand.NewSource(1))),
		Accuracy: &accuracy,
	}
}

// blockingStrategy parks inside Run until released, so tests can hold the
// worker mid-task while they change engine state.
type blockingStrategy struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingStrategy) Mode() models.LearningMode { return models.Supervised }

func (s *blockingStrategy) Run(ctx context.Context, split *datasets.Split, params learning.Params) (*learning.Artifact, error) {
	close(s.started)
	<-s.release
	return networkArtifact(split), nil
}

// panickingStrategy panics on its first invocation and succeeds afterwards.
type panickingStrategy struct {
	calls int
}

func (s *panickingStrategy) Mode() models.LearningMode { return models.Supervised }

func (s *panickingStrategy) Run(ctx context.Context, split *datasets.Split, params learning.Params) (*learning.Artifact, error) {
	s.calls++
	if s.calls == 1 {
		panic("strategy blew up")
	}
	return networkArtifact(split), nil
}

func taskRow(t *testing.T, db *gorm.DB, taskId string) database.LearningTask {
	var row database.LearningTask
	require.NoError(t, db.Where("id = ?", taskId).First(&row).Error)
	return row
}

func TestStopLeavesQueuedTasksPending(t *testing.T) {
	engine := newWorkerTestEngine(t)
	strategy := &blockingStrategy{started: make(chan struct{}), release: make(chan struct{})}
	engine.strategies[models.Supervised] = strategy

	engine.Start(context.Background())

	first, err := engine.Submit(context.Background(), "sensor_grid", models.Supervised, 1, nil)
	require.NoError(t, err)

	select {
	case <-strategy.started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first task")
	}

	var queued []string
	for i := 0; i < 2; i++ {
		id, err := engine.Submit(context.Background(), "sensor_grid", models.Supervised, 1, nil)
		require.NoError(t, err)
		queued = append(queued, id)
	}

	stopped := make(chan struct{})
	go func() {
		engine.Stop()
		close(stopped)
	}()

	// Release the in-flight task only after Stop has closed the queue, so the
	// worker wakes into a canceled lifecycle.
	require.Eventually(t, func() bool {
		engine.queue.mu.Lock()
		defer engine.queue.mu.Unlock()
		return engine.queue.closed
	}, 5*time.Second, 5*time.Millisecond)
	close(strategy.release)

	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		t.Fatal("engine did not stop")
	}

	// The in-flight task ran to completion and its outcome was persisted.
	status, err := engine.Status(first)
	require.NoError(t, err)
	assert.Equal(t, database.TaskCompleted, status)
	assert.Equal(t, database.TaskCompleted, taskRow(t, engine.db, first).Status)

	// Queued tasks were left untouched, in memory and in the database.
	assert.Equal(t, 2, engine.QueuedTasks())
	for _, id := range queued {
		status, err := engine.Status(id)
		require.NoError(t, err)
		assert.Equal(t, database.TaskPending, status)
		assert.Equal(t, database.TaskPending, taskRow(t, engine.db, id).Status)
	}
}

func TestPanickingStrategyFailsTaskWithoutKillingWorker(t *testing.T) {
	engine := newWorkerTestEngine(t)
	engine.strategies[models.Supervised] = &panickingStrategy{}

	engine.Start(context.Background())
	t.Cleanup(engine.Stop)

	first, err := engine.Submit(context.Background(), "sensor_grid", models.Supervised, 1, nil)
	require.NoError(t, err)
	second, err := engine.Submit(context.Background(), "sensor_grid", models.Supervised, 1, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := engine.Status(second)
		return err == nil && (status == database.TaskCompleted || status == database.TaskFailed)
	}, 10*time.Second, 10*time.Millisecond)

	status, err := engine.Status(first)
	require.NoError(t, err)
	assert.Equal(t, database.TaskFailed, status)

	var taskErrors []database.TaskError
	require.NoError(t, engine.db.Where("task_id = ?", first).Find(&taskErrors).Error)
	require.Len(t, taskErrors, 1)
	assert.Contains(t, taskErrors[0].Error, "strategy blew up")

	status, err = engine.Status(second)
	require.NoError(t, err)
	assert.Equal(t, database.TaskCompleted, status)
}
