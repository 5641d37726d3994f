package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeeting_IsInstant(t *testing.T) {
	scheduledAt := time.Now().Add(time.Hour)

	instant := Meeting{ScheduledAt: nil}
	scheduled := Meeting{ScheduledAt: &scheduledAt}

	assert.True(t, instant.IsInstant())
	assert.False(t, scheduled.IsInstant())
}
