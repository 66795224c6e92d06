package scheduling

import (
	"fmt"
	"sync"
	"time"

	"learning-backend/internal/learning"
	"learning-backend/pkg/models"
)

// ModelRecord is the output of one completed task: the decoded artifact plus
// its metadata. Records are written exactly once and never mutated.
type ModelRecord struct {
	TaskId       string
	DatasetName  string
	Mode         models.LearningMode
	ArtifactKind learning.ArtifactKind
	ArtifactKey  string
	Artifact     *learning.Artifact
	Accuracy     *float64
	SourceTaskId string
	CreationTime time.Time
}

// ModelRegistry is the in-memory keyed store of completed models. It is
// written only by the worker and read concurrently, including by the transfer
// strategy when it looks for a source model.
type ModelRegistry struct {
	mu      sync.RWMutex
	records map[string]*ModelRecord
	order   []string // insertion order, needed for the first-match policy
}

var _ learning.SourceFinder = (*ModelRegistry)(nil)

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{records: make(map[string]*ModelRecord)}
}

// Put publishes a record. Records are write-once; a duplicate task id is a
// bug in the caller.
func (r *ModelRegistry) Put(record *ModelRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.TaskId]; exists {
		return fmt.Errorf("model record for task %s already exists", record.TaskId)
	}
	r.records[record.TaskId] = record
	r.order = append(r.order, record.TaskId)
	return nil
}

func (r *ModelRegistry) Get(taskId string) (*ModelRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[taskId]
	return record, ok
}

func (r *ModelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// FindTransferSource locates a prior model usable as a transfer source for the
// target dataset: any record for a different dataset whose artifact carries
// network weights. Under the first-match policy the earliest such record wins;
// under best-match the eligible record with the highest accuracy wins.
func (r *ModelRegistry) FindTransferSource(targetDataset string, policy learning.SourcePolicy) (*learning.TransferSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *ModelRecord
	for _, id := range r.order {
		record := r.records[id]
		if record.DatasetName == targetDataset {
			continue
		}
		if record.Artifact == nil || record.Artifact.Network == nil {
			continue
		}

		if policy != learning.BestMatch {
			best = record
			break
		}
		if best == nil || accuracyOf(record) > accuracyOf(best) {
			best = record
		}
	}

	if best == nil {
		return nil, false
	}
	return &learning.TransferSource{
		TaskId:   best.TaskId,
		Dataset:  best.DatasetName,
		Network:  best.Artifact.Network,
		Accuracy: best.Accuracy,
	}, true
}

func accuracyOf(record *ModelRecord) float64 {
	if record.Accuracy == nil {
		return -1
	}
	return *record.Accuracy
}
