package models

import (
	"time"

	"github.com/google/uuid"
)

// Question is an audience question raised in a meeting.
type Question struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	Answered  bool      `json:"answered"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

// Upvote is the (questionId, userId) toggle row; its unique constraint is
// what keeps concurrent toggles from ever producing two rows for one pair.
type Upvote struct {
	QuestionID uuid.UUID `json:"question_id"`
	UserID     uuid.UUID `json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}
