package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// Exchange is one completed conversation turn: the user's message and
// the generated reply. Immutable once recorded.
type Exchange struct {
	Human     string    `json:"human"`
	Assistant string    `json:"assistant"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary describes the current state of a user's session without
// exposing the exchanges themselves.
type Summary struct {
	UserID       string    `json:"user_id"`
	Exists       bool      `json:"exists"`
	MessageCount int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	Active       bool      `json:"is_active"`
}
