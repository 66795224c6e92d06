package integrationtests

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"learning-backend/internal/database"
	"learning-backend/internal/datasets"
	"learning-backend/internal/learning"
	"learning-backend/internal/scheduling"
	"learning-backend/internal/storage"
	"learning-backend/pkg/models"
)

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func createEngine(t *testing.T, db *gorm.DB) *scheduling.Engine {
	t.Helper()

	registry, err := datasets.NewRegistry(
		datasets.Descriptor{Name: "sensor_grid", Kind: datasets.Classification, Features: 16, Classes: 3, Samples: 200, DefaultMode: models.Supervised},
		datasets.Descriptor{Name: "sensor_patch", Kind: datasets.Classification, Features: 12, Classes: 3, Samples: 150, DefaultMode: models.Supervised},
	)
	require.NoError(t, err)

	store, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	engine, err := scheduling.NewEngine(db, store, registry, datasets.NewSyntheticLoader(registry, 100), scheduling.EngineOptions{
		Bucket: "test-models",
		Strategies: learning.StrategyOptions{
			HiddenSize: 8,
			Epochs:     2,
		},
	})
	require.NoError(t, err)
	return engine
}

func waitForTerminal(t *testing.T, engine *scheduling.Engine, taskId string) string {
	t.Helper()
	var status string
	require.Eventually(t, func() bool {
		s, err := engine.Status(taskId)
		if err != nil {
			return false
		}
		status = s
		return s == database.TaskCompleted || s == database.TaskFailed
	}, 60*time.Second, 25*time.Millisecond)
	return status
}

func TestSchedulerWorkflowWithPostgres(t *testing.T) {
	ctx := context.Background()
	uri := setupPostgresContainer(t, ctx)

	db, err := database.Open(uri, "")
	require.NoError(t, err)

	engine := createEngine(t, db)
	engine.Start(ctx)

	taskId, err := engine.Submit(ctx, "sensor_grid", models.Supervised, 1, nil)
	require.NoError(t, err)
	require.Equal(t, database.TaskCompleted, waitForTerminal(t, engine, taskId))

	transferId, err := engine.Submit(ctx, "sensor_patch", models.Transfer, 2, nil)
	require.NoError(t, err)
	require.Equal(t, database.TaskCompleted, waitForTerminal(t, engine, transferId))

	engine.Stop()

	var taskRows []database.LearningTask
	require.NoError(t, db.Order("sequence asc").Find(&taskRows).Error)
	require.Len(t, taskRows, 2)
	for _, row := range taskRows {
		assert.Equal(t, database.TaskCompleted, row.Status)
		assert.True(t, row.StartTime.Valid)
		assert.True(t, row.CompletionTime.Valid)
	}

	var modelRows []database.ModelRecord
	require.NoError(t, db.Find(&modelRows).Error)
	assert.Len(t, modelRows, 2)

	// A fresh engine over the same database restores everything.
	restarted := createEngine(t, db)
	status, err := restarted.Status(taskId)
	require.NoError(t, err)
	assert.Equal(t, database.TaskCompleted, status)
	assert.Equal(t, 2, restarted.ActiveModels())
	assert.Greater(t, restarted.AggregateScore(), 0.0)
}
