package pulsestream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arrowctl/agentrun/runtime/events"
)

type (
	// Options configures a Sink.
	Options struct {
		// Client publishes to Pulse streams. Required.
		Client Client
		// StreamID derives the target stream name from a session ID.
		// Defaults to "session/<sessionID>".
		StreamID func(sessionID string) (string, error)
		// MarshalEnvelope overrides envelope serialization (primarily for
		// tests). Defaults to json.Marshal.
		MarshalEnvelope func(Envelope) ([]byte, error)
	}

	// Sink mirrors events.Event values onto Pulse streams, one stream per
	// session. Safe for concurrent use.
	Sink struct {
		client          Client
		streamID        func(sessionID string) (string, error)
		marshalEnvelope func(Envelope) ([]byte, error)
	}

	// Envelope wraps an event for transmission over a Pulse stream.
	Envelope struct {
		Type      events.Type `json:"type"`
		Timestamp time.Time   `json:"timestamp"`
		Payload   any         `json:"payload,omitempty"`
	}

	// PublishedEvent describes an event that was written to a Pulse stream.
	PublishedEvent struct {
		Event    events.Event
		StreamID string
		EntryID  string
	}
)

// New constructs a Sink. opts.Client is required.
func New(opts Options) (*Sink, error) {
	if opts.Client == nil {
		return nil, fmt.Errorf("pulsestream: client is required")
	}
	streamID := opts.StreamID
	if streamID == nil {
		streamID = func(sessionID string) (string, error) {
			if sessionID == "" {
				return "", fmt.Errorf("pulsestream: session id is required to derive a stream name")
			}
			return "session/" + sessionID, nil
		}
	}
	marshal := opts.MarshalEnvelope
	if marshal == nil {
		marshal = json.Marshal
	}
	return &Sink{client: opts.Client, streamID: streamID, marshalEnvelope: marshal}, nil
}

// Publish writes ev to sessionID's Pulse stream. Callers typically invoke
// this once per event drained from a RunHandle's Events() iterator, the same
// loop cmd/agentrun-demo uses to print events, fanning the same sequence out
// to Pulse as well.
func (s *Sink) Publish(ctx context.Context, sessionID string, ev events.Event) (PublishedEvent, error) {
	streamID, err := s.streamID(sessionID)
	if err != nil {
		return PublishedEvent{}, err
	}
	payload, err := s.marshalEnvelope(Envelope{Type: ev.Type(), Timestamp: time.Now(), Payload: ev.Payload()})
	if err != nil {
		return PublishedEvent{}, fmt.Errorf("pulsestream: marshal envelope: %w", err)
	}
	stream, err := s.client.Stream(streamID)
	if err != nil {
		return PublishedEvent{}, err
	}
	entryID, err := stream.Add(ctx, string(ev.Type()), payload)
	if err != nil {
		return PublishedEvent{}, err
	}
	return PublishedEvent{Event: ev, StreamID: streamID, EntryID: entryID}, nil
}
