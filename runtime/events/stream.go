package events

import (
	"context"
	"errors"
	"iter"
	"sync"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// ErrStreamClosed is returned by Emit once the stream has been closed.
var ErrStreamClosed = errors.New("events: stream closed")

// DefaultCapacity is the buffer size used when a Stream is constructed with
// capacity <= 0.
const DefaultCapacity = 100

// Stream is a single-producer single-consumer, ordered, bounded channel of
// Events with backpressure. It is owned by exactly one run: events for that
// run preserve emission order and never interleave with another run's
// events, since each run gets its own Stream.
type Stream struct {
	cap int
	low int
	sig cancelctl.Signal

	mu     sync.Mutex
	buf    []Event
	closed bool
	err    error

	// readable is signalled (non-blocking) whenever an event is appended or
	// the stream is closed, waking a blocked consumer.
	readable chan struct{}
	// spaceFreed is signalled (non-blocking) whenever buffered depth drops
	// to the low-water mark or the stream is closed, waking a blocked
	// producer.
	spaceFreed chan struct{}
}

// NewStream constructs a Stream with the given buffer capacity (DefaultCapacity
// if capacity <= 0). sig, if non-nil, is consulted by Emit so a cancelled
// run never blocks forever on a lagging consumer. Next does not consult sig;
// it waits only on new events, Close, and its ctx.
func NewStream(capacity int, sig cancelctl.Signal) *Stream {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Stream{
		cap:        capacity,
		low:        capacity / 2,
		sig:        sig,
		readable:   make(chan struct{}, 1),
		spaceFreed: make(chan struct{}, 1),
	}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (s *Stream) cancelDone() <-chan struct{} {
	if s.sig == nil {
		return nil
	}
	return s.sig.Done()
}

// Emit appends event to the stream, blocking the producer while the buffered
// depth is at or above capacity until the consumer drains it to the
// low-water mark. Events are never dropped. Emit returns ErrStreamClosed if
// the stream was already closed, and cancelctl.ErrCancelled if the run's
// cancel signal fires while blocked.
func (s *Stream) Emit(event Event) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrStreamClosed
		}
		if len(s.buf) < s.cap {
			s.buf = append(s.buf, event)
			s.mu.Unlock()
			notify(s.readable)
			return nil
		}
		s.mu.Unlock()

		select {
		case <-s.spaceFreed:
		case <-s.cancelDone():
			return cancelctl.ErrCancelled
		}
	}
}

// Close unblocks all waiters and marks end-of-stream. Idempotent.
func (s *Stream) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	notify(s.readable)
	notify(s.spaceFreed)
}

// SetError closes the stream and arranges for err to surface to the consumer
// once the buffered events already emitted have been drained.
func (s *Stream) SetError(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.closed = true
	s.mu.Unlock()
	notify(s.readable)
	notify(s.spaceFreed)
}

// Err returns the error passed to SetError, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Next blocks until an event is available, the stream is closed, or ctx is
// done. ok is false once the stream has drained and closed; err carries any
// value passed to SetError or ctx's error.
func (s *Stream) Next(ctx context.Context) (event Event, ok bool, err error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			ev := s.buf[0]
			s.buf = s.buf[1:]
			drained := len(s.buf) <= s.low
			s.mu.Unlock()
			if drained {
				notify(s.spaceFreed)
			}
			return ev, true, nil
		}
		if s.closed {
			storedErr := s.err
			s.mu.Unlock()
			return nil, false, storedErr
		}
		s.mu.Unlock()

		select {
		case <-s.readable:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Events returns a lazy, finite, non-restartable sequence over the stream's
// events, ending at Close (or once any SetError has been recorded). Ranging
// again over the same Stream after exhaustion yields nothing further.
// Consumers that need to observe the stored error should call Err after the
// sequence ends, or use Next directly.
func (s *Stream) Events() iter.Seq[Event] {
	return func(yield func(Event) bool) {
		ctx := context.Background()
		for {
			ev, ok, _ := s.Next(ctx)
			if !ok {
				return
			}
			if !yield(ev) {
				return
			}
		}
	}
}
