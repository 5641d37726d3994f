package models

import (
	"time"

	"github.com/google/uuid"
)

// Invitation is a durable record of a host inviting an email address to a
// meeting. It does not gate admission — the lobby does that — it only
// drives the invite-participant email send and the host's invite history.
type Invitation struct {
	ID              uuid.UUID `json:"id"`
	MeetingID       uuid.UUID `json:"meeting_id"`
	InvitedByUserID uuid.UUID `json:"invited_by_user_id"`
	Email           string    `json:"email"`
	CreatedAt       time.Time `json:"created_at"`
}
