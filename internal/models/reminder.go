package models

import (
	"time"

	"github.com/google/uuid"
)

// ReminderType selects the delivery channel C9 uses when a reminder fires.
type ReminderType string

const (
	ReminderEmail  ReminderType = "EMAIL"
	ReminderInApp  ReminderType = "IN_APP"
)

// Reminder is a durable scheduled notification tied to a Meeting.
type Reminder struct {
	ID            uuid.UUID    `json:"id"`
	MeetingID     uuid.UUID    `json:"meeting_id"`
	Type          ReminderType `json:"type"`
	TriggerAt     time.Time    `json:"trigger_at"`
	TargetEmail   string       `json:"target_email,omitempty"`
	MinutesBefore int          `json:"minutes_before"`
	Sent          bool         `json:"sent"`
	CreatedAt     time.Time    `json:"created_at"`
}
