// Package pulsestream is an illustrative goa.design/pulse-backed mirror for
// runtime/events.Stream, publishing a run's events to a Redis-backed Pulse
// stream so an out-of-process subscriber (a persistence drain, a dashboard)
// can consume them independently of the run's own single consumer. It is not
// wired into runner.Runner by default: spec.md's Event Stream component
// (§4.5) is a bounded, single-consumer, in-process channel, and cross-
// process fan-out is the same kind of distribution concern runtime/locksync
// documents for session locks rather than implements by default. This
// package only covers the publish side; a subscriber would use
// goa.design/pulse's own sink/consumer-group API directly.
package pulsestream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

// ClientOptions configures a Client.
type ClientOptions struct {
	// Redis is the connection Pulse streams are stored on. Required.
	Redis *redis.Client
	// StreamMaxLen bounds the number of entries kept per stream. Zero uses
	// Pulse's own default.
	StreamMaxLen int
	// OperationTimeout bounds individual Add calls. Zero means no timeout.
	OperationTimeout time.Duration
}

// Client opens named Pulse streams. Narrowed to the publish path only.
type Client interface {
	Stream(name string) (Stream, error)
}

// Stream is a single named Pulse stream.
type Stream interface {
	// Add publishes an event with the given name and payload, returning the
	// Redis-assigned entry ID (e.g. "1234567890-0").
	Add(ctx context.Context, event string, payload []byte) (string, error)
}

type client struct {
	redis   *redis.Client
	maxLen  int
	timeout time.Duration
}

// NewClient constructs a Client backed by an existing Redis connection.
func NewClient(opts ClientOptions) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("pulsestream: redis client is required")
	}
	return &client{redis: opts.Redis, maxLen: opts.StreamMaxLen, timeout: opts.OperationTimeout}, nil
}

func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("pulsestream: stream name is required")
	}
	var opts []streamopts.Stream
	if c.maxLen > 0 {
		opts = append(opts, streamopts.WithStreamMaxLen(c.maxLen))
	}
	str, err := streaming.NewStream(name, c.redis, opts...)
	if err != nil {
		return nil, fmt.Errorf("pulsestream: create stream %q: %w", name, err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

// handle applies the configured operation timeout around a *streaming.Stream.
type handle struct {
	stream  *streaming.Stream
	timeout time.Duration
}

func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("pulsestream: add: %w", err)
	}
	return id, nil
}
