package scheduling

import (
	"container/heap"
	"context"
	"sync"
)

// TaskQueue is a thread safe priority queue of pending tasks. Submissions may
// come from any number of goroutines; Pop is called by the single worker.
// Tasks are served lowest priority value first, FIFO among equal priorities.
type TaskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	tasks  taskHeap
	closed bool
}

func NewTaskQueue() *TaskQueue {
	q := &TaskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *TaskQueue) Push(task *Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	heap.Push(&q.tasks, task)
	q.cond.Signal()
	return nil
}

// Pop blocks until a task is available, the queue is closed, or ctx is done.
// Cancellation takes precedence over queued tasks so a stopping consumer
// leaves them untouched. Remaining tasks are still served after Close when
// ctx is live; ErrQueueClosed is returned once the queue is closed and
// drained.
func (q *TaskQueue) Pop(ctx context.Context) (*Task, error) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(q.tasks) > 0 {
			return heap.Pop(&q.tasks).(*Task), nil
		}
		if q.closed {
			return nil, ErrQueueClosed
		}
		q.cond.Wait()
	}
}

func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

func (q *TaskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// taskHeap orders tasks by the explicit total order key (Priority, Sequence).
type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].Sequence < h[j].Sequence
}

func (h taskHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *taskHeap) Push(x any) { *h = append(*h, x.(*Task)) }

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return task
}
