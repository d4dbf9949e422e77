// Package mongosession implements session.Store against MongoDB. It is the
// durable counterpart to session/inmemsession.
package mongosession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/arrowctl/agentrun/session"
)

const (
	defaultMessagesCollection = "agent_messages"
	defaultMetadataCollection = "agent_session_metadata"
	defaultOpTimeout          = 5 * time.Second
)

// Options configures a mongosession.Store.
type Options struct {
	Client             *mongodriver.Client
	Database           string
	MessagesCollection string
	MetadataCollection string
	Timeout            time.Duration
}

// Store implements session.Store against two MongoDB collections: one
// append-only collection of messages ordered by insertion sequence, and one
// collection of per-session metadata documents.
type Store struct {
	messages collection
	metadata collection
	timeout  time.Duration
}

// New returns a Store backed by MongoDB, creating the indexes it needs to
// serve GetMessages in insertion order and GetMetadata by session ID.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongosession: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongosession: database name is required")
	}
	messagesName := opts.MessagesCollection
	if messagesName == "" {
		messagesName = defaultMessagesCollection
	}
	metadataName := opts.MetadataCollection
	if metadataName == "" {
		metadataName = defaultMetadataCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}

	db := opts.Client.Database(opts.Database)
	messages := mongoCollection{coll: db.Collection(messagesName)}
	metadata := mongoCollection{coll: db.Collection(metadataName)}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := ensureIndexes(ctx, messages, metadata); err != nil {
		return nil, err
	}
	return newStoreWithCollections(messages, metadata, timeout), nil
}

func newStoreWithCollections(messages, metadata collection, timeout time.Duration) *Store {
	return &Store{messages: messages, metadata: metadata, timeout: timeout}
}

func ensureIndexes(ctx context.Context, messages, metadata collection) error {
	sessionSeqIndex := mongodriver.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}},
	}
	if _, err := messages.Indexes().CreateOne(ctx, sessionSeqIndex); err != nil {
		return err
	}
	metadataIndex := mongodriver.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := metadata.Indexes().CreateOne(ctx, metadataIndex); err != nil {
		return err
	}
	return nil
}

// Append implements session.Store. Messages are ordered by an
// auto-incrementing sequence counter scoped to the session, assigned by
// counting existing documents under the timeout budget.
func (s *Store) Append(ctx context.Context, sessionID string, msg session.Message) (session.Message, error) {
	if sessionID == "" {
		return session.Message{}, errors.New("mongosession: session id is required")
	}
	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	msg.SessionID = sessionID

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.messages.CountDocuments(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return session.Message{}, fmt.Errorf("mongosession: count messages: %w", err)
	}
	doc := messageDocument{
		ID:        msg.ID,
		SessionID: sessionID,
		Seq:       count,
		Role:      string(msg.Role),
		Content:   msg.Content,
		ParentID:  msg.ParentID,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return session.Message{}, fmt.Errorf("mongosession: insert message: %w", err)
	}
	return msg, nil
}

// GetMessages implements session.Store, returning the session's messages in
// insertion order.
func (s *Store) GetMessages(ctx context.Context, sessionID string) ([]session.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	cur, err := s.messages.Find(ctx, bson.M{"session_id": sessionID}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongosession: find messages: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []session.Message
	for cur.Next(ctx) {
		var doc messageDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongosession: decode message: %w", err)
		}
		out = append(out, doc.toMessage())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("mongosession: cursor: %w", err)
	}
	return out, nil
}

// GetMetadata implements session.Store. Sessions with no metadata document
// return an empty, non-nil map.
func (s *Store) GetMetadata(ctx context.Context, sessionID string) (session.Metadata, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var doc metadataDocument
	err := s.metadata.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return session.Metadata{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mongosession: find metadata: %w", err)
	}
	return doc.Data, nil
}

// SetMetadata replaces sessionID's metadata document wholesale. It is not
// part of session.Store; it exists so callers can seed agent/session
// defaults the Defaults Resolver reads back through GetMetadata.
func (s *Store) SetMetadata(ctx context.Context, sessionID string, md session.Metadata) error {
	if sessionID == "" {
		return errors.New("mongosession: session id is required")
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	filter := bson.M{"session_id": sessionID}
	update := bson.M{"$set": bson.M{"session_id": sessionID, "data": bson.M(md)}}
	_, err := s.metadata.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongosession: upsert metadata: %w", err)
	}
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

type messageDocument struct {
	ID        string `bson:"_id"`
	SessionID string `bson:"session_id"`
	Seq       int64  `bson:"seq"`
	Role      string `bson:"role"`
	Content   any    `bson:"content"`
	ParentID  string `bson:"parent_id,omitempty"`
}

func (d messageDocument) toMessage() session.Message {
	return session.Message{
		ID:        d.ID,
		SessionID: d.SessionID,
		Role:      session.Role(d.Role),
		Content:   d.Content,
		ParentID:  d.ParentID,
	}
}

type metadataDocument struct {
	SessionID string           `bson:"session_id"`
	Data      session.Metadata `bson:"data"`
}
