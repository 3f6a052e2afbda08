package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"ai-interface/backend/n8n"
	"ai-interface/backend/pkg/logger"
	"ai-interface/backend/relay/models"
	"ai-interface/backend/relay/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	ensureErr  error
	appendErr  error
	listErr    error
	sessions   []string
	appended   []models.Message
	transcript []models.Message
}

func (s *fakeStore) EnsureSession(_ context.Context, id string) (string, error) {
	if id == "" {
		id = "generated-id"
	}
	s.sessions = append(s.sessions, id)
	return id, s.ensureErr
}

func (s *fakeStore) AppendMessage(_ context.Context, sessionID, role, content string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.appended = append(s.appended, models.Message{SessionID: sessionID, Role: role, Content: content})
	return nil
}

func (s *fakeStore) ListMessages(_ context.Context, _ string) ([]models.Message, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.transcript, nil
}

type fakeUpstream struct {
	payload n8n.ChatPayload
	reply   n8n.Reply
	err     error
}

func (u *fakeUpstream) Invoke(_ context.Context, payload n8n.ChatPayload) (n8n.Reply, error) {
	u.payload = payload
	if u.err != nil {
		return n8n.Reply{}, u.err
	}
	return u.reply, nil
}

func (u *fakeUpstream) Health(_ context.Context) (int, error) {
	return 200, nil
}

type fakeCache struct {
	data    map[string]string
	deleted []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string]string{}}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool) {
	value, ok := c.data[key]
	return value, ok
}

func (c *fakeCache) Set(_ context.Context, key, value string) error {
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", JSON: true, Output: io.Discard})
}

func newService(store repository.Store, upstream UpstreamClient) *ChatService {
	return NewChatService(store, upstream, nil, nil, testLogger())
}

func TestHandleTurnPersistsBothMessages(t *testing.T) {
	store := &fakeStore{}
	upstream := &fakeUpstream{reply: n8n.Reply{StatusCode: 200, Body: []byte(`{"response":"hello back"}`)}}
	svc := newService(store, upstream)

	result, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.NoError(t, err)

	assert.Equal(t, "hello back", result.Response)
	assert.Equal(t, "abc", result.SessionID)
	assert.Equal(t, "abc", upstream.payload.SessionID)

	require.Len(t, store.appended, 2)
	assert.Equal(t, models.RoleUser, store.appended[0].Role)
	assert.Equal(t, "hi", store.appended[0].Content)
	assert.Equal(t, models.RoleAssistant, store.appended[1].Role)
	assert.Equal(t, "hello back", store.appended[1].Content)
}

func TestHandleTurnUsesResolvedSessionID(t *testing.T) {
	store := &fakeStore{}
	upstream := &fakeUpstream{reply: n8n.Reply{Body: []byte(`{"response":"ok"}`)}}
	svc := newService(store, upstream)

	result, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "generated-id", result.SessionID)
	assert.Equal(t, "generated-id", upstream.payload.SessionID)
}

func TestHandleTurnSurvivesSessionRegistrationFailure(t *testing.T) {
	store := &fakeStore{ensureErr: errors.New("db down")}
	upstream := &fakeUpstream{reply: n8n.Reply{Body: []byte(`{"response":"ok"}`)}}
	svc := newService(store, upstream)

	result, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
	assert.Equal(t, "abc", result.SessionID)
}

func TestHandleTurnSurvivesMessageWriteFailure(t *testing.T) {
	store := &fakeStore{appendErr: errors.New("insert failed")}
	upstream := &fakeUpstream{reply: n8n.Reply{Body: []byte(`{"response":"ok"}`)}}
	svc := newService(store, upstream)

	result, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Response)
}

func TestHandleTurnUpstreamFailureWritesNothing(t *testing.T) {
	store := &fakeStore{}
	upstream := &fakeUpstream{err: &n8n.Error{Kind: n8n.KindUnreachable, Err: errors.New("connection refused")}}
	svc := newService(store, upstream)

	_, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.Error(t, err)
	assert.Empty(t, store.appended)
}

func TestHistoryEmptySessionIDShortCircuits(t *testing.T) {
	store := &fakeStore{listErr: errors.New("should not be called")}
	svc := newService(store, &fakeUpstream{})

	messages, err := svc.History(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestHistoryReturnsTranscript(t *testing.T) {
	store := &fakeStore{transcript: []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello back"},
	}}
	svc := newService(store, &fakeUpstream{})

	messages, err := svc.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestHistoryPropagatesStoreFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("query failed")}
	svc := newService(store, &fakeUpstream{})

	_, err := svc.History(context.Background(), "abc")
	assert.Error(t, err)
}

func TestHistoryCacheHitSkipsStore(t *testing.T) {
	store := &fakeStore{listErr: errors.New("should not be called")}
	transcriptCache := newFakeCache()
	transcriptCache.data["history:abc"] = `[{"role":"user","content":"hi","created_at":"0001-01-01T00:00:00Z"}]`
	svc := NewChatService(store, &fakeUpstream{}, transcriptCache, nil, testLogger())

	messages, err := svc.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestHistoryCacheMissPopulatesCache(t *testing.T) {
	store := &fakeStore{transcript: []models.Message{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello back"},
	}}
	transcriptCache := newFakeCache()
	svc := NewChatService(store, &fakeUpstream{}, transcriptCache, nil, testLogger())

	messages, err := svc.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	cached, ok := transcriptCache.data["history:abc"]
	require.True(t, ok)
	var roundTripped []models.Message
	require.NoError(t, json.Unmarshal([]byte(cached), &roundTripped))
	require.Len(t, roundTripped, 2)
	assert.Equal(t, "hello back", roundTripped[1].Content)
}

func TestHistoryCorruptCacheEntryFallsBackToStore(t *testing.T) {
	store := &fakeStore{transcript: []models.Message{{Role: models.RoleUser, Content: "hi"}}}
	transcriptCache := newFakeCache()
	transcriptCache.data["history:abc"] = "not json"
	svc := NewChatService(store, &fakeUpstream{}, transcriptCache, nil, testLogger())

	messages, err := svc.History(context.Background(), "abc")
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "hi", messages[0].Content)
}

func TestHandleTurnInvalidatesHistoryCache(t *testing.T) {
	store := &fakeStore{}
	upstream := &fakeUpstream{reply: n8n.Reply{Body: []byte(`{"response":"ok"}`)}}
	transcriptCache := newFakeCache()
	transcriptCache.data["history:abc"] = `[{"role":"user","content":"stale"}]`
	svc := NewChatService(store, upstream, transcriptCache, nil, testLogger())

	_, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.NoError(t, err)

	assert.NotContains(t, transcriptCache.data, "history:abc")
	assert.Equal(t, []string{"history:abc"}, transcriptCache.deleted)
}

func TestHandleTurnUpstreamFailureKeepsCache(t *testing.T) {
	store := &fakeStore{}
	upstream := &fakeUpstream{err: &n8n.Error{Kind: n8n.KindUnreachable, Err: errors.New("connection refused")}}
	transcriptCache := newFakeCache()
	transcriptCache.data["history:abc"] = `[{"role":"user","content":"hi"}]`
	svc := NewChatService(store, upstream, transcriptCache, nil, testLogger())

	_, err := svc.HandleTurn(context.Background(), ChatTurn{ChatInput: "hi", SessionID: "abc"})
	require.Error(t, err)
	assert.Contains(t, transcriptCache.data, "history:abc")
	assert.Empty(t, transcriptCache.deleted)
}
