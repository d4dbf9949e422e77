// Package config loads a runner.Config from a layered YAML/env source using
// github.com/spf13/viper, matching the recognized option keys enumerated for
// configuring the agent run orchestrator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arrowctl/agentrun/runtime/runner"
)

// fileConfig mirrors the recognized dotted option keys so viper's nested-key
// unmarshaling (SetDefault/BindEnv use "." by default, matching the keys
// below verbatim) lands directly on a Go struct.
type fileConfig struct {
	Concurrency struct {
		MaxConcurrentRuns      int `mapstructure:"maxConcurrentRuns"`
		MaxConcurrentToolCalls int `mapstructure:"maxConcurrentToolCalls"`
	} `mapstructure:"concurrency"`
	Limits struct {
		MaxTurns             int `mapstructure:"maxTurns"`
		MaxToolRounds        int `mapstructure:"maxToolRounds"`
		MaxToolCallsPerRound int `mapstructure:"maxToolCallsPerRound"`
		QueueTimeoutMS       int `mapstructure:"queueTimeout"`
	} `mapstructure:"limits"`
	Execution struct {
		StreamEvents  bool `mapstructure:"streamEvents"`
		SaveToSession bool `mapstructure:"saveToSession"`
	} `mapstructure:"execution"`
	Retry struct {
		MaxRetries          int      `mapstructure:"maxRetries"`
		InitialDelayMS      int      `mapstructure:"initialDelay"`
		MaxDelayMS          int      `mapstructure:"maxDelay"`
		BackoffMultiplier   float64  `mapstructure:"backoffMultiplier"`
		RetryableErrorKinds []string `mapstructure:"retryableErrorKinds"`
	} `mapstructure:"retry"`
	Streaming struct {
		BufferSize         int  `mapstructure:"bufferSize"`
		EnableBackpressure bool `mapstructure:"enableBackpressure"`
	} `mapstructure:"streaming"`
	Persistence struct {
		AutoSave       bool `mapstructure:"autoSave"`
		SaveIntervalMS int  `mapstructure:"saveInterval"`
	} `mapstructure:"persistence"`
}

// Loader reads agentrun configuration from a YAML file, overridable by
// AGENTRUN_-prefixed environment variables, merged over runner.DefaultConfig.
type Loader struct {
	v *viper.Viper
}

// NewLoader constructs a Loader seeded with runner.DefaultConfig's values as
// viper defaults, so an absent config file and absent env vars still produce
// a complete, valid runner.Config.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("AGENTRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	seedDefaults(v, runner.DefaultConfig())
	return &Loader{v: v}
}

// seedDefaults registers base's values under the recognized dotted keys so
// viper.Unmarshal always produces a fully populated fileConfig even when no
// config file or environment override is present.
func seedDefaults(v *viper.Viper, base runner.Config) {
	v.SetDefault("concurrency.maxConcurrentRuns", base.Concurrency.MaxConcurrentRuns)
	v.SetDefault("concurrency.maxConcurrentToolCalls", base.Concurrency.MaxConcurrentToolCalls)
	v.SetDefault("limits.maxTurns", base.Limits.MaxTurns)
	v.SetDefault("limits.maxToolRounds", base.Limits.MaxToolRounds)
	v.SetDefault("limits.maxToolCallsPerRound", base.Limits.MaxToolCallsPerRound)
	v.SetDefault("limits.queueTimeout", int(base.Limits.QueueTimeout/time.Millisecond))
	v.SetDefault("execution.streamEvents", base.Execution.StreamEvents)
	v.SetDefault("execution.saveToSession", base.Execution.SaveToSession)
	v.SetDefault("retry.maxRetries", base.Retry.MaxRetries)
	v.SetDefault("retry.initialDelay", int(base.Retry.InitialDelay/time.Millisecond))
	v.SetDefault("retry.maxDelay", int(base.Retry.MaxDelay/time.Millisecond))
	v.SetDefault("retry.backoffMultiplier", base.Retry.BackoffMultiplier)
	v.SetDefault("retry.retryableErrorKinds", base.Retry.RetryableErrorKinds)
	v.SetDefault("streaming.bufferSize", base.Streaming.BufferSize)
	v.SetDefault("streaming.enableBackpressure", base.Streaming.EnableBackpressure)
	v.SetDefault("persistence.autoSave", base.Persistence.AutoSave)
	v.SetDefault("persistence.saveInterval", int(base.Persistence.SaveInterval/time.Millisecond))
}

// Load reads path (if it exists) and returns the resulting runner.Config. A
// missing file is not an error: defaults and environment overrides still
// apply.
func (l *Loader) Load(path string) (runner.Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return runner.Config{}, fmt.Errorf("config: read %q: %w", path, err)
			}
		}
	}

	var fc fileConfig
	if err := l.v.Unmarshal(&fc); err != nil {
		return runner.Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return fc.toRunnerConfig(), nil
}

func (fc fileConfig) toRunnerConfig() runner.Config {
	return runner.Config{
		Concurrency: runner.ConcurrencyConfig{
			MaxConcurrentRuns:      fc.Concurrency.MaxConcurrentRuns,
			MaxConcurrentToolCalls: fc.Concurrency.MaxConcurrentToolCalls,
		},
		Limits: runner.LimitsConfig{
			MaxTurns:             fc.Limits.MaxTurns,
			MaxToolRounds:        fc.Limits.MaxToolRounds,
			MaxToolCallsPerRound: fc.Limits.MaxToolCallsPerRound,
			QueueTimeout:         time.Duration(fc.Limits.QueueTimeoutMS) * time.Millisecond,
		},
		Execution: runner.ExecutionConfig{
			StreamEvents:  fc.Execution.StreamEvents,
			SaveToSession: fc.Execution.SaveToSession,
		},
		Retry: runner.RetryConfig{
			MaxRetries:          fc.Retry.MaxRetries,
			InitialDelay:        time.Duration(fc.Retry.InitialDelayMS) * time.Millisecond,
			MaxDelay:            time.Duration(fc.Retry.MaxDelayMS) * time.Millisecond,
			BackoffMultiplier:   fc.Retry.BackoffMultiplier,
			RetryableErrorKinds: fc.Retry.RetryableErrorKinds,
		},
		Streaming: runner.StreamingConfig{
			BufferSize:         fc.Streaming.BufferSize,
			EnableBackpressure: fc.Streaming.EnableBackpressure,
		},
		Persistence: runner.PersistenceConfig{
			AutoSave:     fc.Persistence.AutoSave,
			SaveInterval: time.Duration(fc.Persistence.SaveIntervalMS) * time.Millisecond,
		},
	}
}
