// Package lock implements per-session mutual exclusion so only one run at a
// time executes turns against a given session. Waiters queue FIFO and each
// carries its own deadline independent of the others.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// ErrAcquireTimeout is returned by Acquire when the waiter's deadline
// elapses before the lock becomes available.
var ErrAcquireTimeout = errors.New("lock: acquire timeout")

// Lock is returned by Acquire. Release is idempotent and bound to the
// (sessionID, runID) pair it was issued for.
type Lock struct {
	mgr       *Manager
	sessionID string
	runID     string
	once      sync.Once
}

// Release relinquishes the lock if held by this holder. A non-holder or
// repeated release is a no-op.
func (l *Lock) Release() {
	l.once.Do(func() {
		l.mgr.release(l.sessionID, l.runID)
	})
}

type waiter struct {
	runID     string
	deadline  time.Time
	resultCh  chan error
	cancelled bool
}

type session struct {
	holder  string
	waiters []*waiter
}

// Manager owns one mutual-exclusion lock per sessionID. Manager is safe for
// concurrent use.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// New constructs an empty Manager.
func New() *Manager {
	return &Manager{sessions: make(map[string]*session)}
}

// Acquire blocks until runID holds sessionID's lock, the timeout elapses
// (ErrAcquireTimeout), ctx is done, or sig fires (cancelctl.ErrCancelled).
func (m *Manager) Acquire(ctx context.Context, sessionID, runID string, timeout time.Duration, sig cancelctl.Signal) (*Lock, error) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{}
		m.sessions[sessionID] = s
	}
	if s.holder == "" {
		s.holder = runID
		m.mu.Unlock()
		return &Lock{mgr: m, sessionID: sessionID, runID: runID}, nil
	}

	w := &waiter{runID: runID, deadline: time.Now().Add(timeout), resultCh: make(chan error, 1)}
	s.waiters = append(s.waiters, w)
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	var cancelDone <-chan struct{}
	if sig != nil {
		cancelDone = sig.Done()
	}

	select {
	case err := <-w.resultCh:
		if err != nil {
			return nil, err
		}
		return &Lock{mgr: m, sessionID: sessionID, runID: runID}, nil
	case <-timer.C:
		m.expireWaiter(sessionID, w)
		select {
		case err := <-w.resultCh:
			if err == nil {
				return &Lock{mgr: m, sessionID: sessionID, runID: runID}, nil
			}
			return nil, err
		default:
			return nil, ErrAcquireTimeout
		}
	case <-cancelDone:
		m.removeWaiter(sessionID, w)
		return nil, cancelctl.ErrCancelled
	case <-ctx.Done():
		m.removeWaiter(sessionID, w)
		return nil, ctx.Err()
	}
}

// release relinquishes sessionID's lock if held by runID, then grants it to
// the head waiter (skipping any whose deadline has already elapsed).
func (m *Manager) release(sessionID, runID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s.holder != runID {
		m.mu.Unlock()
		return
	}
	s.holder = ""
	for len(s.waiters) > 0 {
		w := s.waiters[0]
		s.waiters = s.waiters[1:]
		if w.cancelled {
			continue
		}
		if time.Now().After(w.deadline) {
			w.resultCh <- ErrAcquireTimeout
			continue
		}
		s.holder = w.runID
		w.resultCh <- nil
		break
	}
	m.mu.Unlock()
}

// ForceRelease releases sessionID's lock regardless of holder, granting it
// to the next eligible waiter exactly as release does.
func (m *Manager) ForceRelease(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	holder := s.holder
	m.mu.Unlock()
	if holder == "" {
		return
	}
	m.release(sessionID, holder)
}

func (m *Manager) expireWaiter(sessionID string, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	for i, other := range s.waiters {
		if other == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			w.cancelled = true
			return
		}
	}
}

func (m *Manager) removeWaiter(sessionID string, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	for i, other := range s.waiters {
		if other == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			w.cancelled = true
			return
		}
	}
}

// IsHeld reports whether sessionID currently has a holder.
func (m *Manager) IsHeld(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return ok && s.holder != ""
}

// Holder returns the current holder of sessionID's lock, or "" if unheld.
func (m *Manager) Holder(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ""
	}
	return s.holder
}

// WaiterCount returns the number of runs currently waiting for sessionID.
func (m *Manager) WaiterCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return 0
	}
	return len(s.waiters)
}
