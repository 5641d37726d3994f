// Package breakout implements C6: sub-room creation, participant
// assignment, timed auto-close, and merge-back.
package breakout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridmeet/sfu-backend/internal/admission"
	"github.com/gridmeet/sfu-backend/internal/room"
	"github.com/gridmeet/sfu-backend/internal/sfu"
)

var (
	ErrTooFewRooms     = errors.New("breakout: at least one room required")
	ErrTooManyRooms    = errors.New("breakout: at most 20 rooms allowed")
	ErrNameLength      = errors.New("breakout: room name must be 1..100 characters")
	ErrDuration        = errors.New("breakout: duration must be 1..120 minutes")
	ErrDuplicateInRoom = errors.New("breakout: a participant cannot appear twice in the same room")
)

// RoomSpec is one requested sub-room.
type RoomSpec struct {
	Name           string
	ParticipantIDs []uuid.UUID
}

// Assignment is the result of creating one sub-room, carrying everything the
// signaling layer needs to notify affected connections.
type Assignment struct {
	BreakoutID uuid.UUID
	Name       string
	EndsAt     *time.Time
	Router     *sfu.Router
	Moved      []MovedPeer
}

// MovedPeer is a connection that was live in the main scope and has now been
// reseated onto the breakout router.
type MovedPeer struct {
	ConnID        string
	ParticipantID uuid.UUID
}

// Coordinator owns the durable breakout rows and the per-meeting auto-close
// timers. One Coordinator is shared process-wide, like the Room Registry.
type Coordinator struct {
	logger    *zap.Logger
	repo      *Repository
	admission *admission.StateMachine

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer // meetingID -> pending auto-close
}

func New(repo *Repository, sm *admission.StateMachine, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		logger:    logger,
		repo:      repo,
		admission: sm,
		timers:    make(map[uuid.UUID]*time.Timer),
	}
}

func validate(configs []RoomSpec, durationMinutes *int) error {
	if len(configs) < 1 {
		return ErrTooFewRooms
	}
	if len(configs) > 20 {
		return ErrTooManyRooms
	}
	for _, c := range configs {
		if len(c.Name) < 1 || len(c.Name) > 100 {
			return ErrNameLength
		}
		seen := make(map[uuid.UUID]bool, len(c.ParticipantIDs))
		for _, pid := range c.ParticipantIDs {
			if seen[pid] {
				return ErrDuplicateInRoom
			}
			seen[pid] = true
		}
	}
	if durationMinutes != nil && (*durationMinutes < 1 || *durationMinutes > 120) {
		return ErrDuration
	}
	return nil
}

// CreateBreakout runs the §4.6 algorithm. onAutoClose is invoked from the
// timer goroutine if a duration was set and nothing cancels it first.
func (co *Coordinator) CreateBreakout(ctx context.Context, rm *room.Room, meetingID uuid.UUID,
	configs []RoomSpec, durationMinutes *int, onAutoClose func(meetingID uuid.UUID)) ([]Assignment, error) {

	if err := validate(configs, durationMinutes); err != nil {
		return nil, err
	}

	// Cross-room duplicates: the participant ends up in the last config that
	// lists them. Build the final per-participant room index before touching
	// durable state or routers.
	finalRoomOf := make(map[uuid.UUID]int, 0)
	for i, c := range configs {
		for _, pid := range c.ParticipantIDs {
			finalRoomOf[pid] = i
		}
	}

	var endsAt *time.Time
	if durationMinutes != nil {
		t := time.Now().Add(time.Duration(*durationMinutes) * time.Minute)
		endsAt = &t
	}

	assignments := make([]Assignment, len(configs))
	for i, c := range configs {
		row, err := co.repo.Create(ctx, meetingID, c.Name, endsAt)
		if err != nil {
			return nil, fmt.Errorf("persist breakout room: %w", err)
		}
		router, err := rm.CreateBreakoutRouter(row.ID)
		if err != nil {
			return nil, fmt.Errorf("create breakout router: %w", err)
		}
		assignments[i] = Assignment{BreakoutID: row.ID, Name: c.Name, EndsAt: endsAt, Router: router}
	}

	for pid, roomIdx := range finalRoomOf {
		breakoutID := assignments[roomIdx].BreakoutID
		if err := co.admission.EnterBreakout(ctx, pid, breakoutID); err != nil {
			co.logger.Error("enter breakout durable write failed", zap.Error(err), zap.String("participant_id", pid.String()))
			continue
		}
		connID, ok := rm.FindConnIDByParticipant(pid)
		if !ok {
			continue // not currently connected; will re-seat on next join
		}
		if _, err := rm.MovePeerToBreakout(connID, breakoutID); err != nil {
			co.logger.Error("move peer to breakout failed", zap.Error(err), zap.String("conn_id", connID))
			continue
		}
		assignments[roomIdx].Moved = append(assignments[roomIdx].Moved, MovedPeer{ConnID: connID, ParticipantID: pid})
	}

	if durationMinutes != nil {
		co.armAutoClose(meetingID, time.Duration(*durationMinutes)*time.Minute, onAutoClose)
	}

	return assignments, nil
}

func (co *Coordinator) armAutoClose(meetingID uuid.UUID, d time.Duration, onAutoClose func(uuid.UUID)) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if existing, ok := co.timers[meetingID]; ok {
		existing.Stop()
	}
	co.timers[meetingID] = time.AfterFunc(d, func() {
		co.mu.Lock()
		delete(co.timers, meetingID)
		co.mu.Unlock()
		if onAutoClose != nil {
			onAutoClose(meetingID)
		}
	})
}

// CancelAutoClose stops a pending timer, called by CloseBreakouts so a
// manual close never races a later automatic one (§9 design note).
func (co *Coordinator) CancelAutoClose(meetingID uuid.UUID) {
	co.mu.Lock()
	defer co.mu.Unlock()
	if t, ok := co.timers[meetingID]; ok {
		t.Stop()
		delete(co.timers, meetingID)
	}
}

// ReseatedPeer mirrors MovedPeer for the merge-back direction.
type ReseatedPeer struct {
	ConnID        string
	ParticipantID uuid.UUID
}

// CloseBreakouts deactivates every breakout row, reverts durable status for
// in-breakout participants, and closes the runtime breakout scopes.
func (co *Coordinator) CloseBreakouts(ctx context.Context, rm *room.Room, meetingID uuid.UUID, activeParticipantIDs []uuid.UUID) ([]string, error) {
	co.CancelAutoClose(meetingID)

	if err := co.repo.DeactivateAll(ctx, meetingID); err != nil {
		return nil, fmt.Errorf("deactivate breakout rows: %w", err)
	}
	for _, pid := range activeParticipantIDs {
		if err := co.admission.LeaveBreakout(ctx, pid); err != nil {
			co.logger.Error("leave breakout durable write failed", zap.Error(err), zap.String("participant_id", pid.String()))
		}
	}
	return rm.CloseAllBreakouts(), nil
}
