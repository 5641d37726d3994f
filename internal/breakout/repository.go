package breakout

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridmeet/sfu-backend/internal/models"
)

// Repository persists BreakoutRoom rows.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, meetingID uuid.UUID, name string, endsAt *time.Time) (*models.BreakoutRoom, error) {
	const query = `INSERT INTO breakout_rooms (id, meeting_id, name, is_active, ends_at)
		VALUES (gen_random_uuid(), $1, $2, TRUE, $3)
		RETURNING id, created_at`
	b := &models.BreakoutRoom{MeetingID: meetingID, Name: name, IsActive: true, EndsAt: endsAt}
	err := r.pool.QueryRow(ctx, query, meetingID, name, endsAt).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// DeactivateAll marks every active breakout room of a meeting inactive.
func (r *Repository) DeactivateAll(ctx context.Context, meetingID uuid.UUID) error {
	const query = `UPDATE breakout_rooms SET is_active = FALSE WHERE meeting_id = $1 AND is_active = TRUE`
	_, err := r.pool.Exec(ctx, query, meetingID)
	return err
}
