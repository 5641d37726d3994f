package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/gridmeet/sfu-backend/internal/models"
	"github.com/gridmeet/sfu-backend/internal/signaling"
	"github.com/gridmeet/sfu-backend/pkg/mailer"
)

const (
	tickInterval = time.Minute
	reminderBatch = 50
	idleThreshold = 30 * time.Minute
	leaseKey      = "sfu:scheduler:lease"
)

// Scheduler is the C9 periodic tick: fire due reminders, then GC idle
// instant meetings. Grounded on the teacher's internal/worker dequeue loop,
// generalized from "pull one job off a queue" to "sweep two due-work
// tables every tick."
type Scheduler struct {
	logger *zap.Logger
	repo   *Repository
	mail   *mailer.Mailer
	hub    *signaling.Hub
	lease  *goredis.Client // nil disables cross-replica coordination (single instance)

	instanceID string
}

func New(logger *zap.Logger, repo *Repository, mail *mailer.Mailer, hub *signaling.Hub, lease *goredis.Client) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		logger:     logger,
		repo:       repo,
		mail:       mail,
		hub:        hub,
		lease:      lease,
		instanceID: uuid.NewString(),
	}
}

// Run ticks every minute until ctx is cancelled. Each tick acquires (or
// renews) the cross-replica lease before doing any work; an instance that
// cannot claim the lease sits the tick out.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping")
			return
		case <-ticker.C:
			if !s.acquireLease(ctx) {
				continue
			}
			now := time.Now()
			if err := s.firePassA(ctx, now); err != nil {
				s.logger.Error("reminder pass failed", zap.Error(err))
			}
			if err := s.gcPassB(ctx, now); err != nil {
				s.logger.Error("idle meeting gc pass failed", zap.Error(err))
			}
		}
	}
}

// acquireLease implements the external-lease requirement for multi-instance
// deployments: SETNX claims the lease for an instance that doesn't hold it;
// an instance that already holds it renews the TTL instead of losing it to
// its own next SETNX attempt. With no redis client configured, every tick
// runs unconditionally (single-instance deployment).
func (s *Scheduler) acquireLease(ctx context.Context) bool {
	if s.lease == nil {
		return true
	}
	ttl := tickInterval * 2
	ok, err := s.lease.SetNX(ctx, leaseKey, s.instanceID, ttl).Result()
	if err != nil {
		s.logger.Error("lease acquire failed", zap.Error(err))
		return false
	}
	if ok {
		return true
	}
	holder, err := s.lease.Get(ctx, leaseKey).Result()
	if err != nil {
		s.logger.Error("lease read failed", zap.Error(err))
		return false
	}
	if holder != s.instanceID {
		return false
	}
	if err := s.lease.Expire(ctx, leaseKey, ttl).Err(); err != nil {
		s.logger.Error("lease renew failed", zap.Error(err))
	}
	return true
}

func (s *Scheduler) firePassA(ctx context.Context, now time.Time) error {
	due, err := s.repo.DueReminders(ctx, now, reminderBatch)
	if err != nil {
		return err
	}
	for _, rem := range due {
		s.fireReminder(ctx, rem)
	}
	return nil
}

func (s *Scheduler) fireReminder(ctx context.Context, rem *models.Reminder) {
	meeting, err := s.repo.MeetingByID(ctx, rem.MeetingID)
	if err != nil || meeting == nil {
		s.logger.Error("reminder: meeting lookup failed", zap.String("reminder_id", rem.ID.String()), zap.Error(err))
		return
	}

	switch rem.Type {
	case models.ReminderEmail:
		s.fireEmailReminder(ctx, rem, meeting)
	case models.ReminderInApp:
		s.fireInAppReminder(rem, meeting)
	default:
		s.logger.Error("reminder: unknown type", zap.String("type", string(rem.Type)))
	}
}

// fireEmailReminder sends one email per non-removed participant. A reminder
// is marked sent once at least one send succeeds; if every send in the
// fan-out errors, the reminder is left unsent so the next tick retries the
// whole batch rather than re-emailing participants who already got one.
func (s *Scheduler) fireEmailReminder(ctx context.Context, rem *models.Reminder, meeting *models.Meeting) {
	emails, err := s.repo.ParticipantEmails(ctx, rem.MeetingID)
	if err != nil {
		s.logger.Error("reminder: list participant emails failed", zap.Error(err))
		return
	}

	subject := "Reminder: " + meeting.Title
	body := reminderEmailBody(meeting, rem)

	sent := 0
	for _, email := range emails {
		if err := s.mail.Send(email, subject, body); err != nil {
			s.logger.Error("reminder email send failed", zap.String("email", email), zap.Error(err))
			continue
		}
		sent++
	}
	if sent == 0 && len(emails) > 0 {
		return
	}
	if err := s.repo.MarkReminderSent(ctx, rem.ID); err != nil {
		s.logger.Error("reminder: mark sent failed", zap.Error(err))
	}
}

// fireInAppReminder pushes a reminder event to the meeting's broadcast
// group; there is no email-to-connection directory, so the event carries
// targetEmail and the client filters to itself, the same way the wire
// payload is specified.
func (s *Scheduler) fireInAppReminder(rem *models.Reminder, meeting *models.Meeting) {
	payload := map[string]interface{}{
		"type":          rem.Type,
		"meetingId":     meeting.ID.String(),
		"meetingTitle":  meeting.Title,
		"meetingCode":   meeting.Code,
		"minutesBefore": rem.MinutesBefore,
		"targetEmail":   rem.TargetEmail,
	}
	s.hub.Broadcast(signaling.MeetingGroup(meeting.Code), signaling.PushReminder, payload, "")
	if err := s.repo.MarkReminderSent(context.Background(), rem.ID); err != nil {
		s.logger.Error("reminder: mark sent failed", zap.Error(err))
	}
}

func reminderEmailBody(meeting *models.Meeting, rem *models.Reminder) string {
	return "Your meeting \"" + meeting.Title + "\" (code " + meeting.Code + ") starts soon."
}

// gcPassB deletes idle instant meetings: SCHEDULED ones that were created
// but never joined, and LIVE ones nobody is connected to or has recently
// left. Deletion cascades to every dependent row.
func (s *Scheduler) gcPassB(ctx context.Context, now time.Time) error {
	cutoff := now.Add(-idleThreshold)

	scheduled, err := s.repo.IdleScheduledMeetingIDs(ctx, cutoff)
	if err != nil {
		return err
	}
	live, err := s.repo.IdleLiveMeetingIDs(ctx, cutoff)
	if err != nil {
		return err
	}

	for _, id := range append(scheduled, live...) {
		if err := s.repo.DeleteMeeting(ctx, id); err != nil {
			s.logger.Error("gc: delete meeting failed", zap.String("meeting_id", id.String()), zap.Error(err))
			continue
		}
		s.logger.Info("gc: deleted idle meeting", zap.String("meeting_id", id.String()))
	}
	return nil
}
