package queue_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/queue"
)

func TestEnqueuePriorityOrdering(t *testing.T) {
	q := queue.New(1)
	q.Enqueue("low", "s1", 0)
	pos := q.Enqueue("high", "s1", 10)
	assert.Equal(t, 1, pos, "higher priority run should be ranked ahead of the earlier low-priority run")

	pos, ok := q.Position("low")
	require.True(t, ok)
	assert.Equal(t, 2, pos)
}

func TestAwaitAdmission_RespectsCapacity(t *testing.T) {
	q := queue.New(1)
	q.Enqueue("r1", "s1", 0)
	q.Enqueue("r2", "s1", 0)

	require.NoError(t, q.AwaitAdmission(context.Background(), "r1", nil))
	assert.True(t, q.IsRunning("r1"))

	admitted := make(chan error, 1)
	go func() {
		admitted <- q.AwaitAdmission(context.Background(), "r2", nil)
	}()

	select {
	case <-admitted:
		t.Fatal("r2 should not be admitted while r1 holds the only slot")
	case <-time.After(20 * time.Millisecond):
	}

	q.Complete("r1")

	select {
	case err := <-admitted:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("r2 was not admitted after r1 completed")
	}
	assert.True(t, q.IsRunning("r2"))
}

func TestAwaitAdmission_RespectsCancel(t *testing.T) {
	q := queue.New(1)
	q.Enqueue("r1", "s1", 0)
	require.NoError(t, q.AwaitAdmission(context.Background(), "r1", nil))

	q.Enqueue("r2", "s1", 0)
	ctrl := cancelctl.New()
	sig := ctrl.Create("r2")
	go func() {
		time.Sleep(5 * time.Millisecond)
		ctrl.Cancel("r2", "stop")
	}()
	err := q.AwaitAdmission(context.Background(), "r2", sig)
	assert.ErrorIs(t, err, cancelctl.ErrCancelled)
}

func TestRemoveAndNotQueued(t *testing.T) {
	q := queue.New(2)
	q.Enqueue("r1", "s1", 0)
	assert.True(t, q.Remove("r1"))
	assert.False(t, q.Remove("r1"))

	err := q.AwaitAdmission(context.Background(), "r1", nil)
	assert.ErrorIs(t, err, queue.ErrNotQueued)
}

func TestStatusSnapshot(t *testing.T) {
	q := queue.New(2)
	q.Enqueue("r1", "s1", 0)
	q.Enqueue("r2", "s1", 0)
	require.NoError(t, q.AwaitAdmission(context.Background(), "r1", nil))

	status := q.StatusSnapshot()
	assert.Equal(t, 1, status.Queued)
	assert.Equal(t, 1, status.Running)
	assert.Equal(t, 2, status.Capacity)
}

func TestConcurrentAdmissionNeverExceedsCapacity(t *testing.T) {
	q := queue.New(3)
	const n = 20
	for i := 0; i < n; i++ {
		q.Enqueue(string(rune('a'+i)), "s1", 0)
	}

	var mu sync.Mutex
	maxObserved := 0
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		runID := string(rune('a' + i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, q.AwaitAdmission(context.Background(), runID, nil))
			mu.Lock()
			if status := q.StatusSnapshot(); status.Running > maxObserved {
				maxObserved = status.Running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			q.Complete(runID)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxObserved, 3)
}
