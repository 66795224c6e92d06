package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"learning-backend/internal/learning"
	"learning-backend/internal/scheduling"
	"learning-backend/pkg/api"
	"learning-backend/pkg/models"
)

type LearningService struct {
	engine *scheduling.Engine
}

func NewLearningService(engine *scheduling.Engine) *LearningService {
	return &LearningService{engine: engine}
}

func (s *LearningService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(s.Health))
	r.Post("/tasks", RestHandler(s.SubmitTask))
	r.Get("/tasks/{task_id}", RestHandler(s.GetTask))
	r.Get("/score", RestHandler(s.GetScore))
	r.Get("/metrics", RestHandler(s.GetMetrics))
	r.Get("/status", RestHandler(s.GetStatus))
	r.Post("/auto-schedule", RestHandler(s.AutoSchedule))
	r.Get("/datasets", RestHandler(s.ListDatasets))
	r.Get("/models/{task_id}", RestHandler(s.GetModel))
}

func (s *LearningService) Health(r *http.Request) (any, error) {
	return map[string]string{"status": "ok"}, nil
}

func (s *LearningService) SubmitTask(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SubmitTaskRequest](r)
	if err != nil {
		return nil, err
	}

	if req.DatasetName == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "dataset name must not be empty")
	}
	if req.Priority < 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "priority must be non-negative")
	}

	taskId, err := s.engine.Submit(r.Context(), req.DatasetName, req.Mode, req.Priority, learning.Params(req.Parameters))
	if err != nil {
		return nil, convertEngineError(err)
	}

	return api.SubmitTaskResponse{Message: "task submitted", TaskId: taskId}, nil
}

func (s *LearningService) GetTask(r *http.Request) (any, error) {
	taskId, err := URLParamString(r, "task_id")
	if err != nil {
		return nil, err
	}

	task, err := s.engine.Task(taskId)
	if err != nil {
		return nil, convertEngineError(err)
	}

	return api.Task{
		TaskId:       task.Id,
		DatasetName:  task.DatasetName,
		Mode:         task.Mode,
		Priority:     task.Priority,
		Status:       task.Status,
		CreationTime: task.CreationTime,
	}, nil
}

func (s *LearningService) GetScore(r *http.Request) (any, error) {
	return api.ScoreResponse{Score: s.engine.AggregateScore()}, nil
}

func (s *LearningService) GetMetrics(r *http.Request) (any, error) {
	query, err := ParseRequestQueryParams[api.MetricsQuery](r)
	if err != nil {
		return nil, err
	}

	snapshot := s.engine.MetricsSnapshot()
	metrics := make([]api.PerformanceMetric, 0, len(snapshot))
	for _, metric := range snapshot {
		if query.Dataset != "" && metric.DatasetName != query.Dataset {
			continue
		}
		if query.Mode != "" && string(metric.Mode) != query.Mode {
			continue
		}
		metrics = append(metrics, api.PerformanceMetric{
			TaskId:       metric.TaskId,
			DatasetName:  metric.DatasetName,
			Mode:         metric.Mode,
			Accuracy:     metric.Accuracy,
			Contribution: metric.Contribution,
			CreationTime: metric.CreationTime,
		})
	}
	sort.Slice(metrics, func(i, j int) bool {
		if !metrics[i].CreationTime.Equal(metrics[j].CreationTime) {
			return metrics[i].CreationTime.Before(metrics[j].CreationTime)
		}
		return metrics[i].TaskId < metrics[j].TaskId
	})

	return metrics, nil
}

func (s *LearningService) GetStatus(r *http.Request) (any, error) {
	descriptors := s.engine.Datasets()
	names := make([]string, 0, len(descriptors))
	for _, desc := range descriptors {
		names = append(names, desc.Name)
	}

	return api.SystemStatus{
		Score:        s.engine.AggregateScore(),
		ActiveModels: s.engine.ActiveModels(),
		QueuedTasks:  s.engine.QueuedTasks(),
		Datasets:     names,
	}, nil
}

func (s *LearningService) AutoSchedule(r *http.Request) (any, error) {
	submitted, err := s.engine.RunAutoScheduler(r.Context())
	if err != nil {
		return nil, convertEngineError(err)
	}
	if submitted == nil {
		submitted = []string{}
	}

	return api.AutoScheduleResponse{Message: "auto-scheduling complete", Submitted: submitted}, nil
}

func (s *LearningService) ListDatasets(r *http.Request) (any, error) {
	descriptors := s.engine.Datasets()
	out := make([]api.Dataset, 0, len(descriptors))
	for _, desc := range descriptors {
		out = append(out, api.Dataset{
			Name:        desc.Name,
			Kind:        string(desc.Kind),
			Features:    desc.Features,
			Classes:     desc.Classes,
			Samples:     desc.Samples,
			DefaultMode: desc.DefaultMode,
		})
	}
	return out, nil
}

func (s *LearningService) GetModel(r *http.Request) (any, error) {
	taskId, err := URLParamString(r, "task_id")
	if err != nil {
		return nil, err
	}

	record, err := s.engine.Model(taskId)
	if err != nil {
		return nil, convertEngineError(err)
	}

	return api.ModelRecord{
		TaskId:       record.TaskId,
		DatasetName:  record.DatasetName,
		Mode:         record.Mode,
		ArtifactKind: string(record.ArtifactKind),
		ArtifactKey:  record.ArtifactKey,
		Accuracy:     record.Accuracy,
		SourceTaskId: record.SourceTaskId,
		CreationTime: record.CreationTime,
	}, nil
}

// convertEngineError maps engine sentinel errors onto http status codes.
func convertEngineError(err error) error {
	switch {
	case errors.Is(err, scheduling.ErrUnknownDataset):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, scheduling.ErrUnknownTask):
		return CodedError(http.StatusNotFound, err)
	case errors.Is(err, scheduling.ErrQueueClosed):
		return CodedError(http.StatusServiceUnavailable, err)
	case errors.Is(err, models.ErrInvalidLearningMode):
		return CodedError(http.StatusUnprocessableEntity, err)
	default:
		return err
	}
}
