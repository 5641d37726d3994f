package scheduler

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/gridmeet/sfu-backend/internal/models"
)

func TestReminderEmailBody_MentionsTitleAndCode(t *testing.T) {
	meeting := &models.Meeting{Title: "Sprint Planning", Code: "happy-otter-42"}
	rem := &models.Reminder{MinutesBefore: 10}

	body := reminderEmailBody(meeting, rem)

	assert.Contains(t, body, "Sprint Planning")
	assert.Contains(t, body, "happy-otter-42")
}

func TestNew_GeneratesUniqueInstanceIDs(t *testing.T) {
	s1 := New(nil, nil, nil, nil, nil)
	s2 := New(nil, nil, nil, nil, nil)

	assert.NotEmpty(t, s1.instanceID)
	assert.NotEqual(t, s1.instanceID, s2.instanceID)
	_, err := uuid.Parse(s1.instanceID)
	assert.NoError(t, err)
}

func TestAcquireLease_NilLeaseAlwaysSucceeds(t *testing.T) {
	s := New(nil, nil, nil, nil, nil)
	assert.True(t, s.acquireLease(nil))
}
