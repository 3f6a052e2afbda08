package models

import (
	"time"
)

// Message roles. The relay only ever writes these two; the schema does not
// constrain other producers.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is a conversation identifier grouping an ordered transcript.
// Sessions are created implicitly on first contact and never deleted.
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName keeps the table the deployed schema uses.
func (Session) TableName() string { return "chat_sessions" }

// Message is one persisted chat message. Immutable once stored.
type Message struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	SessionID string    `json:"-" gorm:"index"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
