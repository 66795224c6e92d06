package api

import (
	"time"

	"learning-backend/pkg/models"
)

type SubmitTaskRequest struct {
	DatasetName string
	Mode        models.LearningMode
	Priority    int
	Parameters  map[string]any
}

type SubmitTaskResponse struct {
	Message string
	TaskId  string
}

type Task struct {
	TaskId       string
	DatasetName  string
	Mode         models.LearningMode
	Priority     int
	Status       string
	CreationTime time.Time
}

type Dataset struct {
	Name        string
	Kind        string
	Features    int
	Classes     int
	Samples     int
	DefaultMode models.LearningMode
}

type ModelRecord struct {
	TaskId       string
	DatasetName  string
	Mode         models.LearningMode
	ArtifactKind string
	ArtifactKey  string
	Accuracy     *float64 `json:"Accuracy,omitempty"`
	SourceTaskId string   `json:"SourceTaskId,omitempty"`
	CreationTime time.Time
}

type PerformanceMetric struct {
	TaskId       string
	DatasetName  string
	Mode         models.LearningMode
	Accuracy     float64
	Contribution float64
	CreationTime time.Time
}

type ScoreResponse struct {
	Score float64
}

type MetricsQuery struct {
	Dataset string `schema:"dataset"`
	Mode    string `schema:"mode"`
}

type AutoScheduleResponse struct {
	Message   string
	Submitted []string
}

type SystemStatus struct {
	Score        float64
	ActiveModels int
	QueuedTasks  int
	Datasets     []string
}
