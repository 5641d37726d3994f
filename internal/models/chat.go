package models

import (
	"time"

	"github.com/google/uuid"
)

// ChatMessage is a durable meeting-scoped chat line.
type ChatMessage struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
