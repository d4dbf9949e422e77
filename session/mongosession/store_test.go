package mongosession

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/arrowctl/agentrun/session"
)

func mustNewTestStore() *Store {
	return newStoreWithCollections(newFakeMessages(), newFakeMetadata(), 0)
}

func TestAppendAndGetMessagesOrdersBySeq(t *testing.T) {
	store := mustNewTestStore()
	ctx := context.Background()

	first, err := store.Append(ctx, "sess-1", session.Message{Role: session.RoleUser, Content: "hi"})
	require.NoError(t, err)
	second, err := store.Append(ctx, "sess-1", session.Message{Role: session.RoleAssistant, Content: "hello", ParentID: first.ID})
	require.NoError(t, err)

	msgs, err := store.GetMessages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, first.ID, msgs[0].ID)
	require.Equal(t, second.ID, msgs[1].ID)
}

func TestGetMetadataMissingReturnsEmpty(t *testing.T) {
	store := mustNewTestStore()
	md, err := store.GetMetadata(context.Background(), "unknown")
	require.NoError(t, err)
	require.NotNil(t, md)
	require.Empty(t, md)
}

func TestSetMetadataThenGetMetadataRoundTrips(t *testing.T) {
	store := mustNewTestStore()
	ctx := context.Background()
	require.NoError(t, store.SetMetadata(ctx, "sess-1", session.Metadata{"defaultModelId": "claude-opus"}))

	md, err := store.GetMetadata(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "claude-opus", md["defaultModelId"])

	require.NoError(t, store.SetMetadata(ctx, "sess-1", session.Metadata{"defaultModelId": "gpt-5"}))
	md, err = store.GetMetadata(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "gpt-5", md["defaultModelId"])
}

func TestAppendRequiresSessionID(t *testing.T) {
	store := mustNewTestStore()
	_, err := store.Append(context.Background(), "", session.Message{Role: session.RoleUser})
	require.Error(t, err)
}

// fakeMessages is an in-memory stand-in for the messages collection, letting
// Store's query and update logic run without a live MongoDB deployment.
type fakeMessages struct {
	mu   sync.Mutex
	docs []messageDocument
}

func newFakeMessages() *fakeMessages { return &fakeMessages{} }

func (c *fakeMessages) InsertOne(_ context.Context, doc any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := doc.(messageDocument)
	c.docs = append(c.docs, d)
	return d.ID, nil
}

func (c *fakeMessages) CountDocuments(_ context.Context, filter any) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	var n int64
	for _, d := range c.docs {
		if d.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (c *fakeMessages) FindOne(context.Context, any, ...*options.FindOneOptions) singleResult {
	return fakeSingleResult{err: errors.New("not implemented")}
}

func (c *fakeMessages) Find(_ context.Context, filter any, _ ...*options.FindOptions) (cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	var out []any
	for _, d := range c.docs {
		if d.SessionID == sessionID {
			copyDoc := d
			out = append(out, &copyDoc)
		}
	}
	return newFakeCursor(out), nil
}

func (c *fakeMessages) UpdateOne(context.Context, any, any, ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeMessages) Indexes() indexView { return fakeIndexView{} }

// fakeMetadata is an in-memory stand-in for the metadata collection.
type fakeMetadata struct {
	mu   sync.Mutex
	docs map[string]metadataDocument
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{docs: make(map[string]metadataDocument)}
}

func (c *fakeMetadata) InsertOne(context.Context, any) (any, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeMetadata) CountDocuments(context.Context, any) (int64, error) {
	return 0, errors.New("not implemented")
}

func (c *fakeMetadata) FindOne(_ context.Context, filter any, _ ...*options.FindOneOptions) singleResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	doc, ok := c.docs[sessionID]
	if !ok {
		return fakeSingleResult{err: mongodriver.ErrNoDocuments}
	}
	copyDoc := doc
	return fakeSingleResult{doc: &copyDoc}
}

func (c *fakeMetadata) Find(context.Context, any, ...*options.FindOptions) (cursor, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeMetadata) UpdateOne(_ context.Context, filter, update any, _ ...*options.UpdateOptions) (*mongodriver.UpdateResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sessionID := filter.(bson.M)["session_id"].(string)
	set := update.(bson.M)["$set"].(bson.M)
	c.docs[sessionID] = metadataDocument{SessionID: sessionID, Data: session.Metadata(set["data"].(bson.M))}
	return &mongodriver.UpdateResult{MatchedCount: 1}, nil
}

func (c *fakeMetadata) Indexes() indexView { return fakeIndexView{} }

type fakeIndexView struct{}

func (fakeIndexView) CreateOne(context.Context, mongodriver.IndexModel, ...*options.CreateIndexesOptions) (string, error) {
	return "idx", nil
}

type fakeSingleResult struct {
	doc any
	err error
}

func (r fakeSingleResult) Decode(val any) error {
	if r.err != nil {
		return r.err
	}
	switch typed := val.(type) {
	case *metadataDocument:
		*typed = *(r.doc.(*metadataDocument))
	default:
		return errors.New("unsupported decode target")
	}
	return nil
}

type fakeCursor struct {
	docs []any
	pos  int
}

func newFakeCursor(docs []any) *fakeCursor { return &fakeCursor{docs: docs, pos: -1} }

func (c *fakeCursor) Close(context.Context) error { return nil }

func (c *fakeCursor) Next(context.Context) bool {
	c.pos++
	return c.pos < len(c.docs)
}

func (c *fakeCursor) Decode(val any) error {
	typed, ok := val.(*messageDocument)
	if !ok {
		return errors.New("unsupported decode target")
	}
	*typed = *(c.docs[c.pos].(*messageDocument))
	return nil
}

func (c *fakeCursor) Err() error { return nil }
