// Package analytics tracks lightweight per-meeting stats: peak concurrent
// participants and total unique joiners, adapted from the teacher's
// internal/analytics + internal/streams peak_viewers tracking.
package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists meeting_stats.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpdatePeakIfHigher records current as the new peak only if it exceeds the
// stored value, the same conditional-update pattern as the teacher's
// UpdatePeakViewers (`WHERE $1 > peak_viewers`).
func (r *Repository) UpdatePeakIfHigher(ctx context.Context, meetingID uuid.UUID, current int) error {
	const upsert = `INSERT INTO meeting_stats (meeting_id, peak_participants) VALUES ($1, $2)
		ON CONFLICT (meeting_id) DO UPDATE SET peak_participants = $2
		WHERE meeting_stats.peak_participants < $2`
	_, err := r.pool.Exec(ctx, upsert, meetingID, current)
	return err
}

// Summary is the peak-concurrency + unique-joiner view for a meeting.
type Summary struct {
	PeakParticipants int   `json:"peak_participants"`
	UniqueJoiners    int   `json:"unique_joiners"`
	TotalWatchSeconds int64 `json:"total_watch_seconds"`
}

func (r *Repository) PeakParticipants(ctx context.Context, meetingID uuid.UUID) (int, error) {
	const q = `SELECT peak_participants FROM meeting_stats WHERE meeting_id = $1`
	var peak int
	err := r.pool.QueryRow(ctx, q, meetingID).Scan(&peak)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return peak, nil
}
