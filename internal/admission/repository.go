package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

// Repository persists Meeting/Participant admission state.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) GetMeetingByCode(ctx context.Context, code string) (*models.Meeting, error) {
	const query = `SELECT id, code, title, host_user_id, lobby_enabled, status,
		scheduled_at, started_at, ended_at, created_at, updated_at
		FROM meetings WHERE code = $1`
	var m models.Meeting
	err := r.pool.QueryRow(ctx, query, code).Scan(&m.ID, &m.Code, &m.Title, &m.HostUserID,
		&m.LobbyEnabled, &m.Status, &m.ScheduledAt, &m.StartedAt, &m.EndedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *Repository) GetParticipant(ctx context.Context, meetingID, userID uuid.UUID) (*models.Participant, error) {
	const query = `SELECT id, user_id, meeting_id, role, status, breakout_room_id, joined_at, left_at
		FROM participants WHERE meeting_id = $1 AND user_id = $2`
	var p models.Participant
	err := r.pool.QueryRow(ctx, query, meetingID, userID).Scan(&p.ID, &p.UserID, &p.MeetingID,
		&p.Role, &p.Status, &p.BreakoutRoomID, &p.JoinedAt, &p.LeftAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) GetParticipantByID(ctx context.Context, participantID uuid.UUID) (*models.Participant, error) {
	const query = `SELECT id, user_id, meeting_id, role, status, breakout_room_id, joined_at, left_at
		FROM participants WHERE id = $1`
	var p models.Participant
	err := r.pool.QueryRow(ctx, query, participantID).Scan(&p.ID, &p.UserID, &p.MeetingID,
		&p.Role, &p.Status, &p.BreakoutRoomID, &p.JoinedAt, &p.LeftAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) CreateParticipant(ctx context.Context, meetingID, userID uuid.UUID, name, avatarURL string,
	role models.ParticipantRole, status models.ParticipantStatus) (*models.Participant, error) {
	const query = `INSERT INTO participants (id, user_id, meeting_id, role, status, joined_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, now())
		RETURNING id, joined_at`
	p := &models.Participant{UserID: userID, MeetingID: meetingID, Role: role, Status: status}
	err := r.pool.QueryRow(ctx, query, userID, meetingID, role, status).Scan(&p.ID, &p.JoinedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) SetStatus(ctx context.Context, participantID uuid.UUID, status models.ParticipantStatus) error {
	const query = `UPDATE participants SET status = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, participantID, status)
	return err
}

func (r *Repository) SetBreakout(ctx context.Context, participantID uuid.UUID, breakoutID *uuid.UUID, status models.ParticipantStatus) error {
	const query = `UPDATE participants SET status = $2, breakout_room_id = $3 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, participantID, status, breakoutID)
	return err
}

func (r *Repository) MarkLeft(ctx context.Context, participantID uuid.UUID, at time.Time) error {
	const query = `UPDATE participants SET left_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, participantID, at)
	return err
}

func (r *Repository) MarkStarted(ctx context.Context, meetingID uuid.UUID) error {
	const query = `UPDATE meetings SET status = 'LIVE', started_at = now()
		WHERE id = $1 AND status = 'SCHEDULED'`
	_, err := r.pool.Exec(ctx, query, meetingID)
	return err
}

func (r *Repository) EndMeeting(ctx context.Context, meetingID uuid.UUID, at time.Time) error {
	const query = `UPDATE meetings SET status = 'ENDED', ended_at = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, meetingID, at)
	return err
}

// TransferHost is one atomic write across two participant rows and the
// meeting's hostUserId column.
func (r *Repository) TransferHost(ctx context.Context, meetingID, oldHostParticipantID, newHostParticipantID, newHostUserID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE participants SET role = 'PARTICIPANT' WHERE id = $1`, oldHostParticipantID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE participants SET role = 'HOST' WHERE id = $1`, newHostParticipantID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE meetings SET host_user_id = $2 WHERE id = $1`, meetingID, newHostUserID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) ListActiveParticipants(ctx context.Context, meetingID uuid.UUID) ([]*models.Participant, error) {
	const query = `SELECT id, user_id, meeting_id, role, status, breakout_room_id, joined_at, left_at
		FROM participants WHERE meeting_id = $1 AND status != 'REMOVED'`
	rows, err := r.pool.Query(ctx, query, meetingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		var p models.Participant
		if err := rows.Scan(&p.ID, &p.UserID, &p.MeetingID, &p.Role, &p.Status, &p.BreakoutRoomID, &p.JoinedAt, &p.LeftAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
