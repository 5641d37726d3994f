// Package invitation adapts the teacher's registration-invite pattern to
// meeting invites: a durable record of who invited which email to which
// meeting, written by the signaling engine's invite-participant handler
// (which also sends the invite email) and read by the external REST
// surface for invite-link display (out of core scope).
package invitation

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

// Repository persists Invitation rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, meetingID, invitedByUserID uuid.UUID, email string) (*models.Invitation, error) {
	const query = `INSERT INTO invitations (id, meeting_id, invited_by_user_id, email)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id, created_at`
	inv := &models.Invitation{MeetingID: meetingID, InvitedByUserID: invitedByUserID, Email: email}
	err := r.pool.QueryRow(ctx, query, meetingID, invitedByUserID, email).Scan(&inv.ID, &inv.CreatedAt)
	if err != nil {
		return nil, err
	}
	return inv, nil
}
