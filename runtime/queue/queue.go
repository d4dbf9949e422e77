// Package queue implements the priority admission queue that gates how many
// runs execute concurrently. Admission is strict priority with FIFO tiebreak;
// starvation of low-priority runs is permitted by design.
package queue

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// ErrNotQueued is returned by AwaitAdmission when runID is neither queued
// nor running, typically because it was already admitted and completed, or
// was removed.
var ErrNotQueued = errors.New("queue: run not queued")

// Item describes a run waiting for admission.
type Item struct {
	RunID      string
	SessionID  string
	Priority   int
	EnqueuedAt time.Time

	seq   int64
	index int
}

// Status reports a point-in-time snapshot of queue occupancy.
type Status struct {
	Queued   int
	Running  int
	Capacity int
}

// Queue holds queued items ordered by (-priority, enqueuedAt) and tracks the
// set of currently-running runIDs under maxConcurrent. Queue is safe for
// concurrent use.
type Queue struct {
	maxConcurrent int

	mu      sync.Mutex
	items   priorityHeap
	byRunID map[string]*Item
	running map[string]struct{}
	seq     int64

	// admitted is signalled (non-blocking) whenever queue state changes in a
	// way that might admit a new waiter (enqueue, complete, remove), waking
	// any goroutine blocked in AwaitAdmission to recheck.
	admitted chan struct{}
}

// New constructs a Queue with the given concurrency cap. maxConcurrent <= 0
// is treated as 1.
func New(maxConcurrent int) *Queue {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Queue{
		maxConcurrent: maxConcurrent,
		byRunID:       make(map[string]*Item),
		running:       make(map[string]struct{}),
		admitted:      make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Enqueue inserts runID into the queue at its priority-ordered position and
// returns its 1-based position among queued (not-yet-running) items.
func (q *Queue) Enqueue(runID, sessionID string, priority int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	item := &Item{
		RunID:      runID,
		SessionID:  sessionID,
		Priority:   priority,
		EnqueuedAt: time.Now(),
		seq:        q.seq,
	}
	q.byRunID[runID] = item
	heap.Push(&q.items, item)
	notify(q.admitted)
	return q.positionLocked(runID)
}

// Dequeue removes and returns the head of the queue and marks it running, if
// capacity allows. It reports (nil, false) when the queue is empty or the
// running set is already at capacity.
func (q *Queue) Dequeue() (*Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dequeueHeadLocked()
}

func (q *Queue) dequeueHeadLocked() (*Item, bool) {
	if len(q.running) >= q.maxConcurrent || q.items.Len() == 0 {
		return nil, false
	}
	item := heap.Pop(&q.items).(*Item)
	delete(q.byRunID, item.RunID)
	q.running[item.RunID] = struct{}{}
	return item, true
}

// AwaitAdmission blocks until runID reaches the head of the queue with
// capacity available (at which point it is moved into the running set and
// AwaitAdmission returns nil), ctx is done, or sig fires. It never polls on
// a timer: it only wakes when queue state actually changes.
func (q *Queue) AwaitAdmission(ctx context.Context, runID string, sig cancelctl.Signal) error {
	var cancelDone <-chan struct{}
	if sig != nil {
		cancelDone = sig.Done()
	}
	for {
		q.mu.Lock()
		if _, ok := q.running[runID]; ok {
			q.mu.Unlock()
			return nil
		}
		if _, ok := q.byRunID[runID]; !ok {
			q.mu.Unlock()
			return ErrNotQueued
		}
		if len(q.running) < q.maxConcurrent && q.items.Len() > 0 && q.items[0].RunID == runID {
			heap.Pop(&q.items)
			delete(q.byRunID, runID)
			q.running[runID] = struct{}{}
			q.mu.Unlock()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-q.admitted:
		case <-cancelDone:
			return cancelctl.ErrCancelled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Complete removes runID from the running set, freeing a capacity slot.
func (q *Queue) Complete(runID string) {
	q.mu.Lock()
	delete(q.running, runID)
	q.mu.Unlock()
	notify(q.admitted)
}

// Remove removes runID from the queued (not-yet-running) set and reports
// whether it was present.
func (q *Queue) Remove(runID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	item, ok := q.byRunID[runID]
	if !ok {
		return false
	}
	heap.Remove(&q.items, item.index)
	delete(q.byRunID, runID)
	notify(q.admitted)
	return true
}

// Position returns the 1-based position of runID among queued items, or
// (0, false) if it is not currently queued (it may be running or unknown).
func (q *Queue) Position(runID string) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.byRunID[runID]; !ok {
		return 0, false
	}
	return q.positionLocked(runID), true
}

// positionLocked computes runID's 1-based rank among queued items without
// mutating the heap. Caller must hold q.mu.
func (q *Queue) positionLocked(runID string) int {
	ordered := make(priorityHeap, len(q.items))
	copy(ordered, q.items)
	sortForPosition(ordered)
	for i, it := range ordered {
		if it.RunID == runID {
			return i + 1
		}
	}
	return 0
}

// IsRunning reports whether runID is in the running set.
func (q *Queue) IsRunning(runID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.running[runID]
	return ok
}

// IsQueued reports whether runID is waiting in the queue (not yet running).
func (q *Queue) IsQueued(runID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byRunID[runID]
	return ok
}

// StatusSnapshot reports current occupancy.
func (q *Queue) StatusSnapshot() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Queued:   len(q.byRunID),
		Running:  len(q.running),
		Capacity: q.maxConcurrent,
	}
}
