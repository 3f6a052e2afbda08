// Package service orchestrates a chat turn: resolve the session, invoke the
// workflow engine, extract a reply and persist the transcript.
package service

import (
	"context"
	"encoding/json"
	"time"

	"ai-interface/backend/n8n"
	"ai-interface/backend/pkg/logger"
	"ai-interface/backend/relay/models"
	"ai-interface/backend/relay/repository"
	"ai-interface/backend/shared/observability"
)

// UpstreamClient is what the service needs from the workflow engine.
type UpstreamClient interface {
	Invoke(ctx context.Context, payload n8n.ChatPayload) (n8n.Reply, error)
	Health(ctx context.Context) (int, error)
}

// TranscriptCache memoizes history responses. Satisfied by *cache.Cache;
// declared here so the service can run against any key/value store.
type TranscriptCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// ChatTurn is one user turn as received by the relay endpoint.
type ChatTurn struct {
	ChatInput string
	Files     []n8n.FileAttachment
	SessionID string
}

// TurnResult is the outcome of a successful turn.
type TurnResult struct {
	Response  string
	SessionID string
}

// ChatService coordinates the store, the upstream client and the transcript
// cache for the relay endpoints.
type ChatService struct {
	store    repository.Store
	upstream UpstreamClient
	cache    TranscriptCache // nil when caching is disabled
	metrics  *observability.Metrics
	log      *logger.Logger
}

// NewChatService creates the service. cache and metrics may be nil.
func NewChatService(store repository.Store, upstream UpstreamClient, c TranscriptCache, m *observability.Metrics, log *logger.Logger) *ChatService {
	return &ChatService{
		store:    store,
		upstream: upstream,
		cache:    c,
		metrics:  m,
		log:      log,
	}
}

// HandleTurn runs one chat turn end to end. Storage failures never fail the
// turn; only an upstream failure does, and then nothing is persisted.
func (s *ChatService) HandleTurn(ctx context.Context, turn ChatTurn) (TurnResult, error) {
	sessionID, err := s.store.EnsureSession(ctx, turn.SessionID)
	log := s.log.WithSessionID(sessionID)
	if err != nil {
		// Registration is best-effort: log and continue with the id.
		log.LogError(err, "session registration failed")
	}

	payload := n8n.ChatPayload{
		ChatInput: turn.ChatInput,
		Files:     turn.Files,
		SessionID: sessionID,
	}

	start := time.Now()
	reply, err := s.upstream.Invoke(ctx, payload)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.RecordTurn(ctx, "upstream_error", elapsed)
		return TurnResult{}, err
	}

	response := n8n.ExtractReply(reply.Body)

	// The upstream succeeded; record both sides of the exchange. A write
	// failure loses history, not the reply, so it is logged and swallowed.
	if err := s.store.AppendMessage(ctx, sessionID, models.RoleUser, turn.ChatInput); err != nil {
		log.LogError(err, "failed to persist user message")
	}
	if err := s.store.AppendMessage(ctx, sessionID, models.RoleAssistant, response); err != nil {
		log.LogError(err, "failed to persist assistant message")
	}
	s.invalidateHistory(ctx, sessionID)

	s.metrics.RecordTurn(ctx, "ok", elapsed)
	return TurnResult{Response: response, SessionID: sessionID}, nil
}

// History returns the session's transcript, ascending by creation time.
// A missing session id short-circuits to an empty transcript.
func (s *ChatService) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	if sessionID == "" {
		return []models.Message{}, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, historyKey(sessionID)); ok {
			var messages []models.Message
			if err := json.Unmarshal([]byte(cached), &messages); err == nil {
				return messages, nil
			}
		}
	}

	messages, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(messages); err == nil {
			if err := s.cache.Set(ctx, historyKey(sessionID), string(encoded)); err != nil {
				s.log.Debug("history cache write failed", "session_id", sessionID, "error", err.Error())
			}
		}
	}

	return messages, nil
}

// UpstreamHealth probes the workflow engine.
func (s *ChatService) UpstreamHealth(ctx context.Context) (int, error) {
	return s.upstream.Health(ctx)
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID string) {
	if s.cache == nil || sessionID == "" {
		return
	}
	if err := s.cache.Delete(ctx, historyKey(sessionID)); err != nil {
		s.log.Debug("history cache invalidation failed", "session_id", sessionID, "error", err.Error())
	}
}

func historyKey(sessionID string) string {
	return "history:" + sessionID
}
