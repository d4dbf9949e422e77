package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
	"github.com/arrowctl/agentrun/runtime/lock"
)

func TestAcquireUncontended(t *testing.T) {
	m := lock.New()
	l, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, "r1", m.Holder("s1"))
	l.Release()
	assert.Equal(t, "", m.Holder("s1"))
}

func TestReleaseGrantsFIFOWaiter(t *testing.T) {
	m := lock.New()
	l1, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)

	results := make(chan string, 2)
	for _, runID := range []string{"r2", "r3"} {
		runID := runID
		go func() {
			l, err := m.Acquire(context.Background(), "s1", runID, time.Second, nil)
			if err == nil {
				results <- runID
				time.Sleep(5 * time.Millisecond)
				l.Release()
			}
		}()
		time.Sleep(5 * time.Millisecond) // stable submission order for the FIFO assertion
	}

	l1.Release()
	first := <-results
	assert.Equal(t, "r2", first)
	second := <-results
	assert.Equal(t, "r3", second)
}

func TestAcquireTimeout(t *testing.T) {
	m := lock.New()
	l1, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)
	defer l1.Release()

	_, err = m.Acquire(context.Background(), "s1", "r2", 10*time.Millisecond, nil)
	assert.ErrorIs(t, err, lock.ErrAcquireTimeout)
}

func TestAcquireRespectsCancel(t *testing.T) {
	m := lock.New()
	l1, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)
	defer l1.Release()

	ctrl := cancelctl.New()
	sig := ctrl.Create("r2")
	go func() {
		time.Sleep(5 * time.Millisecond)
		ctrl.Cancel("r2", "stop")
	}()
	_, err = m.Acquire(context.Background(), "s1", "r2", time.Hour, sig)
	assert.ErrorIs(t, err, cancelctl.ErrCancelled)
}

func TestRepeatedReleaseAndUnknownForceReleaseAreNoops(t *testing.T) {
	m := lock.New()
	l, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)

	m.ForceRelease("s2") // unknown session: no-op, must not panic
	l.Release()
	l.Release() // idempotent
	assert.Equal(t, "", m.Holder("s1"))
}

func TestForceRelease(t *testing.T) {
	m := lock.New()
	_, err := m.Acquire(context.Background(), "s1", "r1", time.Second, nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		l, err := m.Acquire(context.Background(), "s1", "r2", time.Second, nil)
		require.NoError(t, err)
		l.Release()
		close(done)
	}()
	time.Sleep(5 * time.Millisecond)
	m.ForceRelease("s1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not granted the lock after ForceRelease")
	}
}
