// Package sessionlog tracks join/leave timestamps per (meetingId, userId)
// for the host's attendee view, adapted from the teacher's package of the
// same name (user_session_logs) onto this module's attendance_logs table.
package sessionlog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AttendeeRow is one row for GET /meetings/:id/attendees.
type AttendeeRow struct {
	UserID       uuid.UUID  `json:"user_id"`
	JoinedAt     time.Time  `json:"joined_at"`
	LeftAt       *time.Time `json:"left_at,omitempty"`
	WatchSeconds int64      `json:"watch_seconds"`
}

// Repository handles attendance_logs.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LogJoin inserts a row when a participant's Connection binds to a meeting
// (lobby admit or direct join, mirroring admission.StateMachine.Join).
func (r *Repository) LogJoin(ctx context.Context, meetingID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attendance_logs (meeting_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		meetingID, userID)
	return err
}

// LogLeave closes the most recent open session for this user in this
// meeting — called from the same disconnect path as
// admission.StateMachine.Disconnect.
func (r *Repository) LogLeave(ctx context.Context, meetingID, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attendance_logs a SET left_at = NOW()
		 FROM (SELECT id FROM attendance_logs WHERE meeting_id = $1 AND user_id = $2 AND left_at IS NULL ORDER BY joined_at DESC LIMIT 1) AS sub
		 WHERE a.id = sub.id`,
		meetingID, userID)
	return err
}

// WatchTimeAggregates feeds internal/analytics' unique-joiner count.
type WatchTimeAggregates struct {
	TotalWatchSeconds int64
	DistinctUsers     int
}

func (r *Repository) GetWatchTimeAggregates(ctx context.Context, meetingID uuid.UUID) (*WatchTimeAggregates, error) {
	const q = `SELECT COALESCE(SUM(EXTRACT(EPOCH FROM (COALESCE(left_at, NOW()) - joined_at))), 0)::BIGINT,
		COUNT(DISTINCT user_id) FROM attendance_logs WHERE meeting_id = $1`
	var agg WatchTimeAggregates
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&agg.TotalWatchSeconds, &agg.DistinctUsers)
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

// ListByMeeting returns attendees for a meeting, most recent join first.
func (r *Repository) ListByMeeting(ctx context.Context, meetingID uuid.UUID) ([]AttendeeRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, joined_at, left_at,
			COALESCE(EXTRACT(EPOCH FROM (COALESCE(left_at, NOW()) - joined_at)), 0)::BIGINT
		 FROM attendance_logs WHERE meeting_id = $1 ORDER BY joined_at DESC`,
		meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []AttendeeRow
	for rows.Next() {
		var row AttendeeRow
		if err := rows.Scan(&row.UserID, &row.JoinedAt, &row.LeftAt, &row.WatchSeconds); err != nil {
			return nil, err
		}
		list = append(list, row)
	}
	return list, rows.Err()
}
