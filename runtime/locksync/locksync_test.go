package locksync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// fakeRedis implements redisCommander against an in-process map, enough to
// exercise Manager's SETNX-acquire / Lua-compare-and-delete-release protocol
// without a live Redis server.
type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string]string)}
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewBoolCmd(ctx)
	if _, exists := f.data[key]; exists {
		cmd.SetVal(false)
		return cmd
	}
	f.data[key] = value.(string)
	cmd.SetVal(true)
	return cmd
}

func (f *fakeRedis) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewCmd(ctx)
	key := keys[0]
	token, _ := args[0].(string)
	if f.data[key] == token {
		delete(f.data, key)
		cmd.SetVal(int64(1))
	} else {
		cmd.SetVal(int64(0))
	}
	return cmd
}

func TestManager_AcquireThenRelease(t *testing.T) {
	m := newManager(newFakeRedis(), Options{RetryEvery: time.Millisecond})

	lock, err := m.Acquire(context.Background(), "session-1", "run-1", time.Second, cancelctl.New().Create("test-run"))
	require.NoError(t, err)
	require.NotNil(t, lock)

	require.NoError(t, lock.Release(context.Background()))
}

func TestManager_SecondAcquireBlocksUntilReleased(t *testing.T) {
	fake := newFakeRedis()
	m := newManager(fake, Options{RetryEvery: time.Millisecond})

	first, err := m.Acquire(context.Background(), "session-1", "run-1", time.Second, cancelctl.New().Create("test-run"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		second, err := m.Acquire(context.Background(), "session-1", "run-2", time.Second, cancelctl.New().Create("test-run"))
		assert.NoError(t, err)
		assert.NotNil(t, second)
	}()

	select {
	case <-done:
		t.Fatal("second Acquire returned before the first lock was released")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, first.Release(context.Background()))
	<-done
}

func TestManager_AcquireTimesOutWhenContended(t *testing.T) {
	fake := newFakeRedis()
	m := newManager(fake, Options{RetryEvery: time.Millisecond})

	_, err := m.Acquire(context.Background(), "session-1", "run-1", time.Second, cancelctl.New().Create("test-run"))
	require.NoError(t, err)

	_, err = m.Acquire(context.Background(), "session-1", "run-2", 10*time.Millisecond, cancelctl.New().Create("test-run"))
	assert.ErrorIs(t, err, ErrAcquireTimeout)
}

func TestManager_ReleaseIsANoOpForANonHolder(t *testing.T) {
	fake := newFakeRedis()
	m := newManager(fake, Options{RetryEvery: time.Millisecond})

	first, err := m.Acquire(context.Background(), "session-1", "run-1", time.Second, cancelctl.New().Create("test-run"))
	require.NoError(t, err)
	require.NoError(t, first.Release(context.Background()))

	second, err := m.Acquire(context.Background(), "session-1", "run-2", time.Second, cancelctl.New().Create("test-run"))
	require.NoError(t, err)

	// Releasing the already-superseded first lock must not clear run-2's hold.
	require.NoError(t, first.Release(context.Background()))
	require.NoError(t, second.Release(context.Background()))
}
