// Package inmemsession provides an in-memory implementation of
// session.Store, intended for tests and local development. Production
// deployments should use a durable implementation such as session/mongosession.
package inmemsession

import (
	"context"
	"fmt"
	"sync"

	"github.com/arrowctl/agentrun/session"
)

// Store is an in-memory implementation of session.Store. It is safe for
// concurrent use.
type Store struct {
	mu       sync.RWMutex
	messages map[string][]session.Message
	metadata map[string]session.Metadata
	seq      int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		messages: make(map[string][]session.Message),
		metadata: make(map[string]session.Metadata),
	}
}

// Append implements session.Store. It assigns msg an ID if it doesn't
// already have one and stores it at the tail of sessionID's history.
func (s *Store) Append(_ context.Context, sessionID string, msg session.Message) (session.Message, error) {
	if sessionID == "" {
		return session.Message{}, fmt.Errorf("inmemsession: session id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if msg.ID == "" {
		msg.ID = fmt.Sprintf("%s-%d", sessionID, s.seq)
	}
	msg.SessionID = sessionID
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return msg, nil
}

// GetMessages implements session.Store. The returned slice is a copy; the
// caller may retain and mutate it freely.
func (s *Store) GetMessages(_ context.Context, sessionID string) ([]session.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]session.Message(nil), s.messages[sessionID]...), nil
}

// GetMetadata implements session.Store. Sessions with no metadata set
// return an empty, non-nil map.
func (s *Store) GetMetadata(_ context.Context, sessionID string) (session.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	md, ok := s.metadata[sessionID]
	if !ok {
		return session.Metadata{}, nil
	}
	out := make(session.Metadata, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out, nil
}

// SetMetadata replaces sessionID's metadata wholesale. It is not part of
// session.Store; callers that need to seed agent/session defaults for tests
// or a demo use it directly against the concrete Store.
func (s *Store) SetMetadata(sessionID string, md session.Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make(session.Metadata, len(md))
	for k, v := range md {
		cp[k] = v
	}
	s.metadata[sessionID] = cp
}
