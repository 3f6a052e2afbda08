package repository

import (
	"context"
	"time"

	"ai-interface/backend/relay/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore persists sessions and messages in postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a postgres-backed store.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// EnsureSession inserts the session row if it does not exist yet, the same
// ON CONFLICT (id) DO NOTHING write every time. The resolved id is returned
// even when the insert fails so a storage outage cannot lose the turn.
func (s *GormStore) EnsureSession(ctx context.Context, id string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}

	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Session{ID: id, CreatedAt: time.Now()}).Error

	return id, err
}

func (s *GormStore) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	return s.db.WithContext(ctx).Create(&models.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}).Error
}

func (s *GormStore) ListMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}
