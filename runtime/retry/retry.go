// Package retry classifies errors and schedules exponential backoff retries
// for a single run. Attempt counters are kept per-runID so concurrent runs
// never interfere with one another's backoff state.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/arrowctl/agentrun/runtime/cancelctl"
)

// ErrMaxRetriesExceeded is returned by Execute once the configured attempt
// budget is exhausted for a retryable error.
var ErrMaxRetriesExceeded = errors.New("retry: max retries exceeded")

// Config controls backoff behavior and which error kinds are retryable.
type Config struct {
	MaxRetries          int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	BackoffMultiplier   float64
	RetryableErrorKinds []string
}

// DefaultConfig returns sane defaults: 3 retries, 500ms initial delay
// doubling up to 30s.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// KindError is implemented by errors that carry a retry classification tag.
// Callers that want substring-based kind matching (spec §4.4) should wrap
// transient errors with WithKind.
type KindError interface {
	error
	RetryKind() string
}

type kindError struct {
	error
	kind string
}

func (k kindError) RetryKind() string { return k.kind }
func (k kindError) Unwrap() error     { return k.error }

// WithKind tags err with a retry-kind string matched by Config's
// RetryableErrorKinds via substring search.
func WithKind(err error, kind string) error {
	if err == nil {
		return nil
	}
	return kindError{error: err, kind: kind}
}

// Engine tracks retry attempts per run and schedules cancel-respecting
// backoff waits. Engine is safe for concurrent use across runs.
type Engine struct {
	cfg Config

	mu       sync.Mutex
	attempts map[string]int
	// limiter paces backoff waits across many concurrent runs so a burst of
	// simultaneously-retrying runs doesn't thundering-herd the downstream
	// collaborator. The deterministic per-run delay formula always governs
	// the minimum wait; the limiter only adds scheduling jitter under load.
	limiter *rate.Limiter
}

// New constructs an Engine with the given config. A zero Config is replaced
// with DefaultConfig.
func New(cfg Config) *Engine {
	if cfg.MaxDelay == 0 {
		cfg = DefaultConfig()
	}
	return &Engine{
		cfg:      cfg,
		attempts: make(map[string]int),
		limiter:  rate.NewLimiter(rate.Limit(50), 50),
	}
}

// IsRetryable reports whether err matches one of the configured retryable
// error kinds via substring match on the error's kind tag, or on err.Error()
// when err carries no explicit kind.
func (e *Engine) IsRetryable(err error) bool {
	if err == nil || len(e.cfg.RetryableErrorKinds) == 0 {
		return false
	}
	tag := err.Error()
	var ke KindError
	if errors.As(err, &ke) {
		tag = ke.RetryKind()
	}
	for _, kind := range e.cfg.RetryableErrorKinds {
		if strings.Contains(tag, kind) {
			return true
		}
	}
	return false
}

// GetDelay returns the backoff delay for the run's next attempt:
// min(maxDelay, initialDelay * backoffMultiplier^attempts).
func (e *Engine) GetDelay(runID string) time.Duration {
	e.mu.Lock()
	attempts := e.attempts[runID]
	e.mu.Unlock()
	return e.delayForAttempt(attempts)
}

func (e *Engine) delayForAttempt(attempts int) time.Duration {
	mult := math.Pow(e.cfg.BackoffMultiplier, float64(attempts))
	d := time.Duration(float64(e.cfg.InitialDelay) * mult)
	if d > e.cfg.MaxDelay {
		d = e.cfg.MaxDelay
	}
	return d
}

// Execute runs op, retrying on retryable errors with backoff until success,
// a non-retryable error, cancellation, or attempt exhaustion.
func (e *Engine) Execute(ctx context.Context, runID string, sig cancelctl.Signal, op func(context.Context) error) error {
	for {
		if sig != nil && sig.Cancelled() {
			return cancelctl.ErrCancelled
		}
		err := op(ctx)
		if err == nil {
			e.reset(runID)
			return nil
		}
		if !e.IsRetryable(err) {
			return err
		}
		attempts := e.recordAttempt(runID)
		if attempts > e.cfg.MaxRetries {
			return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
		}
		delay := e.delayForAttempt(attempts - 1)
		if waitErr := e.sleep(ctx, sig, delay); waitErr != nil {
			return waitErr
		}
	}
}

func (e *Engine) sleep(ctx context.Context, sig cancelctl.Signal, d time.Duration) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	var cancelled <-chan struct{}
	if sig != nil {
		cancelled = sig.Done()
	}
	select {
	case <-timer.C:
		return nil
	case <-cancelled:
		return cancelctl.ErrCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) recordAttempt(runID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attempts[runID]++
	return e.attempts[runID]
}

// Reset clears the attempt counter for runID. Callers invoke this on run
// completion so runIDs are not retained indefinitely.
func (e *Engine) Reset(runID string) { e.reset(runID) }

func (e *Engine) reset(runID string) {
	e.mu.Lock()
	delete(e.attempts, runID)
	e.mu.Unlock()
}
