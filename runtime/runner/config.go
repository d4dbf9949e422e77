package runner

import "time"

// Config is the merged, effective configuration for a Runner. It mirrors
// spec §6.5's recognized options; a partial Config passed to Configure is
// merged over the existing one field-by-field (zero values are left alone).
type Config struct {
	Concurrency ConcurrencyConfig
	Limits      LimitsConfig
	Execution   ExecutionConfig
	Retry       RetryConfig
	Streaming   StreamingConfig
	Persistence PersistenceConfig
}

// ConcurrencyConfig bounds how many runs, and how many tool calls within a
// run, execute at once.
type ConcurrencyConfig struct {
	// MaxConcurrentRuns is the global Admission Queue cap.
	MaxConcurrentRuns int
	// MaxConcurrentToolCalls bounds parallel tool-call execution within one
	// round. 0 or 1 means serial.
	MaxConcurrentToolCalls int
}

// LimitsConfig bounds how far a single run's turn/tool-round loop proceeds.
type LimitsConfig struct {
	MaxTurns             int
	MaxToolRounds        int
	MaxToolCallsPerRound int
	QueueTimeout         time.Duration
}

// ExecutionConfig toggles streaming and persistence behavior.
type ExecutionConfig struct {
	StreamEvents  bool
	SaveToSession bool
}

// RetryConfig configures the retry.Engine used for model and tool calls.
type RetryConfig struct {
	MaxRetries          int
	InitialDelay        time.Duration
	MaxDelay            time.Duration
	BackoffMultiplier   float64
	RetryableErrorKinds []string
}

// StreamingConfig sizes the per-run event stream.
type StreamingConfig struct {
	BufferSize         int
	EnableBackpressure bool
}

// PersistenceConfig controls autosave cadence for long-running turns.
type PersistenceConfig struct {
	AutoSave     bool
	SaveInterval time.Duration
}

// DefaultConfig returns the Runner's baseline configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: ConcurrencyConfig{
			MaxConcurrentRuns:      10,
			MaxConcurrentToolCalls: 1,
		},
		Limits: LimitsConfig{
			MaxTurns:             25,
			MaxToolRounds:        10,
			MaxToolCallsPerRound: 8,
			QueueTimeout:         30 * time.Second,
		},
		Execution: ExecutionConfig{
			StreamEvents:  true,
			SaveToSession: true,
		},
		Retry: RetryConfig{
			MaxRetries:          3,
			InitialDelay:        500 * time.Millisecond,
			MaxDelay:            30 * time.Second,
			BackoffMultiplier:   2,
			RetryableErrorKinds: []string{"transient", "timeout", "rate_limit"},
		},
		Streaming: StreamingConfig{
			BufferSize:         100,
			EnableBackpressure: true,
		},
		Persistence: PersistenceConfig{
			AutoSave:     true,
			SaveInterval: 10 * time.Second,
		},
	}
}

// merge overlays non-zero fields of partial onto base and returns the
// result; base is left unmodified.
func merge(base, partial Config) Config {
	out := base
	if partial.Concurrency.MaxConcurrentRuns != 0 {
		out.Concurrency.MaxConcurrentRuns = partial.Concurrency.MaxConcurrentRuns
	}
	if partial.Concurrency.MaxConcurrentToolCalls != 0 {
		out.Concurrency.MaxConcurrentToolCalls = partial.Concurrency.MaxConcurrentToolCalls
	}
	if partial.Limits.MaxTurns != 0 {
		out.Limits.MaxTurns = partial.Limits.MaxTurns
	}
	if partial.Limits.MaxToolRounds != 0 {
		out.Limits.MaxToolRounds = partial.Limits.MaxToolRounds
	}
	if partial.Limits.MaxToolCallsPerRound != 0 {
		out.Limits.MaxToolCallsPerRound = partial.Limits.MaxToolCallsPerRound
	}
	if partial.Limits.QueueTimeout != 0 {
		out.Limits.QueueTimeout = partial.Limits.QueueTimeout
	}
	if partial.Execution != (ExecutionConfig{}) {
		out.Execution = partial.Execution
	}
	if partial.Retry.MaxRetries != 0 {
		out.Retry.MaxRetries = partial.Retry.MaxRetries
	}
	if partial.Retry.InitialDelay != 0 {
		out.Retry.InitialDelay = partial.Retry.InitialDelay
	}
	if partial.Retry.MaxDelay != 0 {
		out.Retry.MaxDelay = partial.Retry.MaxDelay
	}
	if partial.Retry.BackoffMultiplier != 0 {
		out.Retry.BackoffMultiplier = partial.Retry.BackoffMultiplier
	}
	if len(partial.Retry.RetryableErrorKinds) != 0 {
		out.Retry.RetryableErrorKinds = partial.Retry.RetryableErrorKinds
	}
	if partial.Streaming.BufferSize != 0 {
		out.Streaming.BufferSize = partial.Streaming.BufferSize
	}
	out.Streaming.EnableBackpressure = partial.Streaming.EnableBackpressure || out.Streaming.EnableBackpressure
	if partial.Persistence.SaveInterval != 0 {
		out.Persistence.SaveInterval = partial.Persistence.SaveInterval
	}
	out.Persistence.AutoSave = partial.Persistence.AutoSave || out.Persistence.AutoSave
	return out
}
