package models

import (
	"time"

	"github.com/google/uuid"
)

// BreakoutRoom is a durable sub-room record; the runtime Router/peer-set
// that backs it lives only in the Room aggregate.
type BreakoutRoom struct {
	ID        uuid.UUID  `json:"id"`
	MeetingID uuid.UUID  `json:"meeting_id"`
	Name      string     `json:"name"`
	IsActive  bool       `json:"is_active"`
	EndsAt    *time.Time `json:"ends_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
