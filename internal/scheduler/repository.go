// Package scheduler runs the periodic reminder-firing and idle-meeting GC
// tick (C9), the same shape as the teacher's internal/worker dequeue loop
// generalized from "pull one job" to "sweep two due-work tables."
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

// Repository is the plain pgxpool persistence surface C9 reads and writes,
// in the same no-service-layer style as internal/admission.Repository.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DueReminders returns up to limit unsent reminders whose triggerAt has
// passed, oldest first.
func (r *Repository) DueReminders(ctx context.Context, now time.Time, limit int) ([]*models.Reminder, error) {
	const query = `SELECT id, meeting_id, type, trigger_at, target_email, minutes_before, sent, created_at
		FROM reminders WHERE sent = false AND trigger_at <= $1
		ORDER BY trigger_at ASC LIMIT $2`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if err := rows.Scan(&rem.ID, &rem.MeetingID, &rem.Type, &rem.TriggerAt, &rem.TargetEmail,
			&rem.MinutesBefore, &rem.Sent, &rem.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &rem)
	}
	return out, rows.Err()
}

func (r *Repository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE reminders SET sent = true WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func (r *Repository) MeetingByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	const query = `SELECT id, code, title, host_user_id, lobby_enabled, status,
		scheduled_at, started_at, ended_at, created_at, updated_at
		FROM meetings WHERE id = $1`
	var m models.Meeting
	err := r.pool.QueryRow(ctx, query, id).Scan(&m.ID, &m.Code, &m.Title, &m.HostUserID,
		&m.LobbyEnabled, &m.Status, &m.ScheduledAt, &m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ParticipantEmails lists the email addresses of every non-removed
// participant in a meeting, for the EMAIL reminder fan-out.
func (r *Repository) ParticipantEmails(ctx context.Context, meetingID uuid.UUID) ([]string, error) {
	const query = `SELECT u.email FROM participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.meeting_id = $1 AND p.status != 'REMOVED'`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// IdleScheduledMeetingIDs finds instant meetings (no scheduledAt) that were
// created but never progressed past SCHEDULED before the cutoff.
func (r *Repository) IdleScheduledMeetingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	const query = `SELECT id FROM meetings
		WHERE scheduled_at IS NULL AND status = 'SCHEDULED' AND created_at <= $1`
	return r.idQuery(ctx, query, cutoff)
}

// IdleLiveMeetingIDs finds instant meetings still marked LIVE where nobody
// is connected and nobody has left recently enough to still be "winding
// down" — i.e. every participant row's leftAt (if any) is older than cutoff.
func (r *Repository) IdleLiveMeetingIDs(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	const query = `SELECT id FROM meetings m
		WHERE m.scheduled_at IS NULL AND m.status = 'LIVE'
		AND NOT EXISTS (
			SELECT 1 FROM participants p
			WHERE p.meeting_id = m.id AND (p.left_at IS NULL OR p.left_at > $1)
		)`
	return r.idQuery(ctx, query, cutoff)
}

func (r *Repository) idQuery(ctx context.Context, query string, arg time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteMeeting removes a meeting row; ON DELETE CASCADE takes every
// dependent row (participants, breakout rooms, questions, chat, reminders,
// invitations) with it.
func (r *Repository) DeleteMeeting(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM meetings WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}
