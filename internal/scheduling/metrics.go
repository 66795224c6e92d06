package scheduling

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"learning-backend/pkg/models"
)

// Metric is the performance record derived from one completed task.
type Metric struct {
	TaskId       string
	DatasetName  string
	Mode         models.LearningMode
	Accuracy     float64
	Contribution float64
	CreationTime time.Time
}

// MetricsStore holds per-task performance metrics and the aggregate score.
// Metrics are written only by the worker and read by any number of callers;
// records are published atomically under the lock, and the score is a single
// atomically updated scalar.
type MetricsStore struct {
	mu      sync.RWMutex
	metrics map[string]Metric

	score atomic.Uint64 // math.Float64bits
}

func NewMetricsStore() *MetricsStore {
	return &MetricsStore{metrics: make(map[string]Metric)}
}

func (m *MetricsStore) Record(metric Metric) {
	m.mu.Lock()
	m.metrics[metric.TaskId] = metric
	m.mu.Unlock()

	if metric.Contribution > 0 {
		m.addScore(metric.Contribution)
	}
}

// addScore raises the aggregate score by delta, clamped at 1.0. The CAS loop
// keeps the score monotonically non-decreasing without a lock.
func (m *MetricsStore) addScore(delta float64) {
	for {
		old := m.score.Load()
		next := math.Min(1.0, math.Float64frombits(old)+delta)
		if m.score.CompareAndSwap(old, math.Float64bits(next)) {
			return
		}
	}
}

// Score returns the aggregate quality indicator in [0,1].
func (m *MetricsStore) Score() float64 {
	return math.Float64frombits(m.score.Load())
}

func (m *MetricsStore) Snapshot() map[string]Metric {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]Metric, len(m.metrics))
	for id, metric := range m.metrics {
		out[id] = metric
	}
	return out
}

// LatestAccuracy returns the accuracy of the most recently recorded metric for
// the dataset, or 0 if none exists. Ties on creation time break by task id so
// the result is deterministic.
func (m *MetricsStore) LatestAccuracy(dataset string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var found bool
	var latest Metric
	for _, metric := range m.metrics {
		if metric.DatasetName != dataset {
			continue
		}
		if !found || metric.CreationTime.After(latest.CreationTime) ||
			(metric.CreationTime.Equal(latest.CreationTime) && metric.TaskId > latest.TaskId) {
			found = true
			latest = metric
		}
	}
	if !found {
		return 0
	}
	return latest.Accuracy
}

func (m *MetricsStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.metrics)
}
