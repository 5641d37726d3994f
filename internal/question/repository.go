// Package question persists Q&A questions and implements upvote toggle
// semantics; the upvotes unique (questionId, userId) constraint is what
// keeps a racing double-toggle at 0 or 1 rows, never 2.
package question

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

const maxContentLength = 1000

// Repository persists Question/Upvote rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func ValidateContent(content string) bool {
	n := len([]rune(content))
	return n >= 1 && n <= maxContentLength
}

func (r *Repository) Ask(ctx context.Context, meetingID, userID uuid.UUID, content string) (*models.Question, error) {
	const query = `INSERT INTO questions (id, meeting_id, user_id, content, answered, pinned)
		VALUES (gen_random_uuid(), $1, $2, $3, FALSE, FALSE)
		RETURNING id, created_at`
	q := &models.Question{MeetingID: meetingID, UserID: userID, Content: content}
	err := r.pool.QueryRow(ctx, query, meetingID, userID, content).Scan(&q.ID, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return q, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Question, error) {
	const query = `SELECT id, meeting_id, user_id, content, answered, pinned, created_at
		FROM questions WHERE id = $1`
	var q models.Question
	err := r.pool.QueryRow(ctx, query, id).Scan(&q.ID, &q.MeetingID, &q.UserID, &q.Content, &q.Answered, &q.Pinned, &q.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ToggleUpvote adds or removes userID's upvote on questionID within one
// transaction, returning the new upvoted state and the resulting count.
func (r *Repository) ToggleUpvote(ctx context.Context, questionID, userID uuid.UUID) (upvoted bool, count int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	var exists int
	err = tx.QueryRow(ctx, `SELECT 1 FROM upvotes WHERE question_id = $1 AND user_id = $2 FOR UPDATE`, questionID, userID).Scan(&exists)
	switch err {
	case nil:
		if _, err = tx.Exec(ctx, `DELETE FROM upvotes WHERE question_id = $1 AND user_id = $2`, questionID, userID); err != nil {
			return false, 0, err
		}
		upvoted = false
	case pgx.ErrNoRows:
		if _, err = tx.Exec(ctx, `INSERT INTO upvotes (question_id, user_id) VALUES ($1, $2)
			ON CONFLICT (question_id, user_id) DO NOTHING`, questionID, userID); err != nil {
			return false, 0, err
		}
		upvoted = true
	default:
		return false, 0, err
	}

	if err = tx.QueryRow(ctx, `SELECT COUNT(*) FROM upvotes WHERE question_id = $1`, questionID).Scan(&count); err != nil {
		return false, 0, err
	}
	if err = tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return upvoted, count, nil
}

// ListByMeeting returns every question asked in a meeting, oldest first —
// used by the transcript exporter, which wants the full Q&A record rather
// than the live view's pinned-first ordering.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]*models.Question, error) {
	const query = `SELECT id, meeting_id, user_id, content, answered, pinned, created_at
		FROM questions WHERE meeting_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Question
	for rows.Next() {
		var q models.Question
		if err := rows.Scan(&q.ID, &q.MeetingID, &q.UserID, &q.Content, &q.Answered, &q.Pinned, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &q)
	}
	return out, rows.Err()
}

func (r *Repository) ToggleAnswered(ctx context.Context, questionID uuid.UUID) (bool, error) {
	const query = `UPDATE questions SET answered = NOT answered WHERE id = $1 RETURNING answered`
	var answered bool
	err := r.pool.QueryRow(ctx, query, questionID).Scan(&answered)
	return answered, err
}

func (r *Repository) TogglePinned(ctx context.Context, questionID uuid.UUID) (bool, error) {
	const query = `UPDATE questions SET pinned = NOT pinned WHERE id = $1 RETURNING pinned`
	var pinned bool
	err := r.pool.QueryRow(ctx, query, questionID).Scan(&pinned)
	return pinned, err
}
