// Package repository is the persistence boundary for sessions and
// transcripts. The Store interface has two implementations: a postgres-backed
// one and a no-op used when the relay runs without a database. Handlers never
// check for a nil database; they always talk to a Store.
package repository

import (
	"context"

	"ai-interface/backend/relay/models"
)

// Store is the session store contract.
type Store interface {
	// EnsureSession registers a session row for id, generating a fresh id
	// when none is supplied, and returns the resolved id. Registration is
	// idempotent: repeated calls with the same id leave exactly one row.
	EnsureSession(ctx context.Context, id string) (string, error)

	// AppendMessage appends one message to a session's transcript.
	AppendMessage(ctx context.Context, sessionID, role, content string) error

	// ListMessages returns the session's transcript ordered by creation
	// time ascending.
	ListMessages(ctx context.Context, sessionID string) ([]models.Message, error)
}

// NoopStore is the degraded mode used when no database is configured.
// Every operation succeeds and nothing is stored.
type NoopStore struct{}

// NewNoopStore creates a store that persists nothing.
func NewNoopStore() *NoopStore { return &NoopStore{} }

// EnsureSession returns the supplied id unchanged, even when empty.
func (s *NoopStore) EnsureSession(_ context.Context, id string) (string, error) {
	return id, nil
}

func (s *NoopStore) AppendMessage(_ context.Context, _, _, _ string) error {
	return nil
}

func (s *NoopStore) ListMessages(_ context.Context, _ string) ([]models.Message, error) {
	return []models.Message{}, nil
}
