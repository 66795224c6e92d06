package scheduling

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownDataset is returned when a submission or execution references a
	// dataset that is not in the registry.
	ErrUnknownDataset = errors.New("unknown dataset")

	// ErrUnknownTask is returned for status queries of never-submitted task ids.
	ErrUnknownTask = errors.New("unknown task")

	// ErrQueueClosed is returned by Pop after the queue is closed.
	ErrQueueClosed = errors.New("task queue closed")
)

// StrategyError wraps any error raised inside a learning strategy. It is
// caught by the worker and converted into a terminal failed status; it never
// propagates out of the worker loop.
type StrategyError struct {
	TaskId      string
	DatasetName string
	Err         error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy execution failed for task %s (dataset %s): %v", e.TaskId, e.DatasetName, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

// PersistenceError indicates an artifact write that did not complete after the
// model record was already committed. It is logged but does not roll back the
// completed status.
type PersistenceError struct {
	TaskId string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist artifact for task %s: %v", e.TaskId, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
