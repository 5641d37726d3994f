// Package admission implements C5: the lobby/host state machine. It is the
// only writer of Participant.status and Meeting.hostUserId; every handler
// that changes admission state must go through these operations.
package admission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gridmeet/sfu-backend/internal/models"
)

var (
	ErrTargetIsHost  = errors.New("admission: target participant holds host role")
	ErrNotHost       = errors.New("admission: caller does not hold host role")
	ErrAlreadyEnded  = errors.New("admission: meeting already ended")
	ErrRemoved       = errors.New("admission: participant was removed from this meeting")
)

// Identity is the claim set the join path needs beyond (userID, meetingID).
type Identity struct {
	Name      string
	AvatarURL string
}

// StateMachine mediates every durable admission transition.
type StateMachine struct {
	repo *Repository
}

func New(repo *Repository) *StateMachine {
	return &StateMachine{repo: repo}
}

// Join resolves a (userID, meetingID) pair to a Participant, applying the
// lobby/host/rejoin rules of §4.5. Returns the resolved participant; its
// Role says whether the caller is this meeting's host.
func (s *StateMachine) Join(ctx context.Context, meeting *models.Meeting, userID uuid.UUID, identity Identity) (*models.Participant, error) {
	if meeting.Status == models.MeetingEnded {
		return nil, ErrAlreadyEnded
	}

	existing, err := s.repo.GetParticipant(ctx, meeting.ID, userID)
	if err != nil {
		return nil, err
	}
	isHost := meeting.HostUserID == userID

	if existing != nil {
		if existing.Status == models.StatusRemoved {
			return nil, ErrRemoved
		}
		// Rejoin: a participant who previously reached IN_MEETING stays
		// IN_MEETING rather than being re-held in the lobby. A participant
		// who was IN_LOBBY (never admitted) or IN_BREAKOUT is left as-is;
		// the signaling layer re-seats IN_BREAKOUT peers on their breakout
		// router rather than replaying join-meeting semantics.
		if existing.Status == models.StatusInBreakout {
			return existing, nil
		}
		if existing.Status == models.StatusInMeeting {
			return existing, nil
		}
		// existing.Status == StatusInLobby: still waiting, nothing to do.
		return existing, nil
	}

	status := models.StatusInLobby
	if !meeting.LobbyEnabled || isHost {
		status = models.StatusInMeeting
	}
	role := models.RoleParticipant
	if isHost {
		role = models.RoleHost
	}
	p, err := s.repo.CreateParticipant(ctx, meeting.ID, userID, identity.Name, identity.AvatarURL, role, status)
	if err != nil {
		return nil, err
	}
	if status == models.StatusInMeeting && meeting.Status == models.MeetingScheduled {
		if err := s.repo.MarkStarted(ctx, meeting.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Admit moves a lobby-held participant into the meeting.
func (s *StateMachine) Admit(ctx context.Context, meetingID uuid.UUID, participantID uuid.UUID) error {
	if err := s.repo.SetStatus(ctx, participantID, models.StatusInMeeting); err != nil {
		return err
	}
	return s.repo.MarkStarted(ctx, meetingID)
}

// Reject removes a lobby-held participant permanently.
func (s *StateMachine) Reject(ctx context.Context, participantID uuid.UUID) error {
	return s.repo.SetStatus(ctx, participantID, models.StatusRemoved)
}

// MoveToLobby sends an in-meeting, non-host participant back to the lobby.
func (s *StateMachine) MoveToLobby(ctx context.Context, target *models.Participant) error {
	if target.Role == models.RoleHost {
		return ErrTargetIsHost
	}
	return s.repo.SetStatus(ctx, target.ID, models.StatusInLobby)
}

// Kick permanently removes a non-host participant from the meeting.
func (s *StateMachine) Kick(ctx context.Context, target *models.Participant) error {
	if target.Role == models.RoleHost {
		return ErrTargetIsHost
	}
	return s.repo.SetStatus(ctx, target.ID, models.StatusRemoved)
}

// TransferHost atomically demotes the current host and promotes target.
// Caller must already have verified caller.Role == RoleHost.
func (s *StateMachine) TransferHost(ctx context.Context, meetingID uuid.UUID, oldHost, newHost *models.Participant) error {
	return s.repo.TransferHost(ctx, meetingID, oldHost.ID, newHost.ID, newHost.UserID)
}

// EndMeeting marks the meeting ENDED. Room/Peer teardown is the engine's job.
func (s *StateMachine) EndMeeting(ctx context.Context, meetingID uuid.UUID) error {
	return s.repo.EndMeeting(ctx, meetingID, time.Now())
}

// Disconnect records leftAt without changing status, preserving the source
// system's transparent-reconnect behavior (see design notes: this is a
// recorded ambiguity, not a redesign).
func (s *StateMachine) Disconnect(ctx context.Context, participantID uuid.UUID) error {
	return s.repo.MarkLeft(ctx, participantID, time.Now())
}

// EnterBreakout and LeaveBreakout are invoked by the Breakout Coordinator,
// kept here because Participant.status/breakoutRoomId is admission-owned
// durable state.
func (s *StateMachine) EnterBreakout(ctx context.Context, participantID uuid.UUID, breakoutID uuid.UUID) error {
	return s.repo.SetBreakout(ctx, participantID, &breakoutID, models.StatusInBreakout)
}

func (s *StateMachine) LeaveBreakout(ctx context.Context, participantID uuid.UUID) error {
	return s.repo.SetBreakout(ctx, participantID, nil, models.StatusInMeeting)
}
