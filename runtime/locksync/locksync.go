// Package locksync is an illustrative Redis-backed alternative to
// runtime/lock's in-process Manager. spec.md's Non-goals exclude cross-node
// coordination, so this package is not wired into runner.Runner by default;
// it exists to show where a distributed session lock would plug into the
// same (ctx, sessionID, runID, timeout, sig) -> (Lock, error) shape that
// runtime/lock.Manager.Acquire exposes.
package locksync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// ErrAcquireTimeout mirrors runtime/lock.ErrAcquireTimeout: the lock did not
// become available before the caller's timeout elapsed.
var ErrAcquireTimeout = errors.New("locksync: acquire timeout")

// unlockScript deletes the lock key only if it still holds this holder's
// fencing token, so a releaser can never clear a lock another holder has
// since acquired after this one's TTL expired.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// redisCommander captures the subset of *redis.Client the Manager depends
// on, so tests can substitute a fake instead of a live Redis server.
type redisCommander interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Manager acquires per-session locks backed by a single Redis instance,
// using SETNX for acquisition and a token-checked Lua script for release.
type Manager struct {
	rdb        redisCommander
	keyPrefix  string
	lockTTL    time.Duration
	retryEvery time.Duration
}

// Options configures a Manager.
type Options struct {
	// KeyPrefix namespaces lock keys; defaults to "agentrun:lock:".
	KeyPrefix string
	// LockTTL bounds how long a holder may keep the lock without renewing
	// it, guarding against a crashed holder wedging a session forever.
	// Defaults to 30s.
	LockTTL time.Duration
	// RetryEvery is the polling interval used while waiting for a
	// contended lock. Defaults to 50ms.
	RetryEvery time.Duration
}

// New constructs a Manager over an existing Redis client.
func New(rdb *redis.Client, opts Options) *Manager {
	return newManager(rdb, opts)
}

func newManager(rdb redisCommander, opts Options) *Manager {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "agentrun:lock:"
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.RetryEvery <= 0 {
		opts.RetryEvery = 50 * time.Millisecond
	}
	return &Manager{rdb: rdb, keyPrefix: opts.KeyPrefix, lockTTL: opts.LockTTL, retryEvery: opts.RetryEvery}
}

// Lock is a held distributed lock. Release is idempotent.
type Lock struct {
	mgr   *Manager
	key   string
	token string
}

// Acquire blocks until runID holds sessionID's lock, timeout elapses
// (ErrAcquireTimeout), ctx is done, or sig fires (cancelctl.ErrCancelled).
// Unlike runtime/lock.Manager, waiters are not FIFO-ordered: Redis SETNX
// admits whichever poller wins the next race, so callers needing fairness
// across nodes must layer a separate queue (for example, a Redis list used
// as a ticket queue) in front of this Manager.
func (m *Manager) Acquire(ctx context.Context, sessionID, runID string, timeout time.Duration, sig cancelctl.Signal) (*Lock, error) {
	key := m.keyPrefix + sessionID
	token := runID + ":" + uuid.NewString()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(m.retryEvery)
	defer ticker.Stop()

	sigCtx := sig.Context(ctx)
	for {
		ok, err := m.rdb.SetNX(sigCtx, key, token, m.lockTTL).Result()
		if err != nil {
			return nil, fmt.Errorf("locksync: acquire %q: %w", key, err)
		}
		if ok {
			return &Lock{mgr: m, key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrAcquireTimeout
		}
		select {
		case <-sigCtx.Done():
			if sig.Cancelled() {
				return nil, cancelctl.ErrCancelled
			}
			return nil, sigCtx.Err()
		case <-ticker.C:
		}
	}
}

// Release relinquishes the lock if this holder's token still matches the
// key's current value. A non-holder or repeated release is a no-op.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.mgr.rdb.Eval(ctx, unlockScript, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("locksync: release %q: %w", l.key, err)
	}
	return nil
}
