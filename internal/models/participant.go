package models

import (
	"time"

	"github.com/google/uuid"
)

// ParticipantRole governs what a Connection may request.
type ParticipantRole string

const (
	RoleHost        ParticipantRole = "HOST"
	RoleCoHost      ParticipantRole = "CO_HOST"
	RoleParticipant ParticipantRole = "PARTICIPANT"
)

// ParticipantStatus is the authoritative presence state; Room membership is
// a cache of the live subset of rows with status IN_MEETING/IN_BREAKOUT.
type ParticipantStatus string

const (
	StatusInLobby    ParticipantStatus = "IN_LOBBY"
	StatusInMeeting  ParticipantStatus = "IN_MEETING"
	StatusInBreakout ParticipantStatus = "IN_BREAKOUT"
	StatusRemoved    ParticipantStatus = "REMOVED"
)

// Participant is the durable (userId, meetingId) record.
type Participant struct {
	ID             uuid.UUID         `json:"id"`
	UserID         uuid.UUID         `json:"user_id"`
	MeetingID      uuid.UUID         `json:"meeting_id"`
	Role           ParticipantRole   `json:"role"`
	Status         ParticipantStatus `json:"status"`
	BreakoutRoomID *uuid.UUID        `json:"breakout_room_id,omitempty"`
	JoinedAt       time.Time         `json:"joined_at"`
	LeftAt         *time.Time        `json:"left_at,omitempty"`
}

// IsHostOrCoHost reports whether this participant may issue host-only events.
func (p Participant) IsHostOrCoHost() bool {
	return p.Role == RoleHost || p.Role == RoleCoHost
}
