package models

import (
	"time"

	"github.com/google/uuid"
)

// MeetingStatus is the lifecycle stage of a Meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "SCHEDULED"
	MeetingLive      MeetingStatus = "LIVE"
	MeetingEnded     MeetingStatus = "ENDED"
)

// Meeting is the durable record a Room is built on top of.
type Meeting struct {
	ID           uuid.UUID     `json:"id"`
	Code         string        `json:"code"`
	Title        string        `json:"title"`
	HostUserID   uuid.UUID     `json:"host_user_id"`
	LobbyEnabled bool          `json:"lobby_enabled"`
	Status       MeetingStatus `json:"status"`
	ScheduledAt  *time.Time    `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	EndedAt      *time.Time    `json:"ended_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsInstant reports whether this meeting was started ad hoc, without a
// scheduled time — the shape the idle-meeting GC pass (C9) looks for.
func (m Meeting) IsInstant() bool {
	return m.ScheduledAt == nil
}
