// Package chat persists and serves the in-meeting text channel.
package chat

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

const maxContentLength = 2000
const historyLimit = 100

// Repository persists ChatMessage rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, meetingID, userID uuid.UUID, content string) (*models.ChatMessage, error) {
	const query = `INSERT INTO chat_messages (id, meeting_id, user_id, content)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	m := &models.ChatMessage{MeetingID: meetingID, UserID: userID, Content: content}
	err := r.pool.QueryRow(ctx, query, meetingID, userID, content).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// History returns the last 100 messages, ascending by createdAt.
func (r *Repository) History(ctx context.Context, meetingID uuid.UUID) ([]*models.ChatMessage, error) {
	const query = `SELECT id, meeting_id, user_id, content, created_at FROM (
			SELECT id, meeting_id, user_id, content, created_at
			FROM chat_messages WHERE meeting_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, meetingID, historyLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.MeetingID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ListByMeeting returns the full chat log for a meeting, ascending by
// createdAt — used by the transcript exporter, unlike History's
// last-100 live-view window.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.ChatMessage, error) {
	const query = `SELECT id, meeting_id, user_id, content, created_at
		FROM chat_messages WHERE meeting_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.MeetingID, &m.UserID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

// ValidateContent enforces the 1..2000 character bound.
func ValidateContent(content string) bool {
	n := len([]rune(content))
	return n >= 1 && n <= maxContentLength
}
