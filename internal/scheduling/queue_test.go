package scheduling

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTask(id string, priority int, sequence uint64) *Task {
	return &Task{Id: id, Priority: priority, Sequence: sequence}
}

func TestQueuePriorityOrder(t *testing.T) {
	queue := NewTaskQueue()

	require.NoError(t, queue.Push(makeTask("low", 5, 1)))
	require.NoError(t, queue.Push(makeTask("high", 1, 2)))
	require.NoError(t, queue.Push(makeTask("mid", 3, 3)))

	for _, expected := range []string{"high", "mid", "low"} {
		task, err := queue.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, task.Id)
	}
}

func TestQueueFifoAmongEqualPriorities(t *testing.T) {
	queue := NewTaskQueue()

	require.NoError(t, queue.Push(makeTask("first", 2, 1)))
	require.NoError(t, queue.Push(makeTask("second", 2, 2)))
	require.NoError(t, queue.Push(makeTask("third", 2, 3)))

	for _, expected := range []string{"first", "second", "third"} {
		task, err := queue.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, task.Id)
	}
}

func TestQueuePriorityBeatsSubmissionOrder(t *testing.T) {
	queue := NewTaskQueue()

	require.NoError(t, queue.Push(makeTask("early-low", 5, 1)))
	require.NoError(t, queue.Push(makeTask("late-high", 1, 2)))

	task, err := queue.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "late-high", task.Id)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	queue := NewTaskQueue()

	results := make(chan *Task, 1)
	go func() {
		task, err := queue.Pop(context.Background())
		if err == nil {
			results <- task
		}
	}()

	// Give the consumer a moment to block on the empty queue.
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, queue.Push(makeTask("delayed", 1, 1)))

	select {
	case task := <-results:
		assert.Equal(t, "delayed", task.Id)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueuePopHonorsContextCancellation(t *testing.T) {
	queue := NewTaskQueue()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := queue.Pop(ctx)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Pop did not return after context cancellation")
	}
}

func TestQueueCancellationTakesPrecedenceOverQueuedTasks(t *testing.T) {
	queue := NewTaskQueue()
	require.NoError(t, queue.Push(makeTask("pending", 1, 1)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := queue.Pop(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, queue.Len())
}

func TestQueueDrainsAfterClose(t *testing.T) {
	queue := NewTaskQueue()

	require.NoError(t, queue.Push(makeTask("a", 1, 1)))
	require.NoError(t, queue.Push(makeTask("b", 1, 2)))
	queue.Close()

	assert.ErrorIs(t, queue.Push(makeTask("c", 1, 3)), ErrQueueClosed)

	task, err := queue.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", task.Id)

	task, err = queue.Pop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "b", task.Id)

	_, err = queue.Pop(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueueConcurrentProducersSingleConsumer(t *testing.T) {
	queue := NewTaskQueue()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	var seq uint64
	var seqMu sync.Mutex
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				seqMu.Lock()
				seq++
				s := seq
				seqMu.Unlock()
				assert.NoError(t, queue.Push(makeTask("task", p%3, s)))
			}
		}(p)
	}
	wg.Wait()

	lastPriority, lastSequence := -1, uint64(0)
	for i := 0; i < producers*perProducer; i++ {
		task, err := queue.Pop(context.Background())
		require.NoError(t, err)
		if task.Priority == lastPriority {
			assert.Greater(t, task.Sequence, lastSequence)
		} else {
			assert.Greater(t, task.Priority, lastPriority)
		}
		lastPriority, lastSequence = task.Priority, task.Sequence
	}
	assert.Equal(t, 0, queue.Len())
}
