package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		event    string
		expected Category
	}{
		{"produce", CategoryMedia},
		{"consume", CategoryMedia},
		{"send-chat", CategoryChat},
		{"ask-question", CategoryChat},
		{"kick-participant", CategoryAdmin},
		{"end-meeting", CategoryAdmin},
		{"join-meeting", CategoryDefault},
		{"some-unknown-event", CategoryDefault},
	}
	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.event))
		})
	}
}

func TestLimiter_AllowUpToLimitThenBlocks(t *testing.T) {
	l := New()
	for i := 0; i < limits[CategoryChat]; i++ {
		assert.True(t, l.Allow("conn-1", CategoryChat), "event %d should be allowed", i)
	}
	assert.False(t, l.Allow("conn-1", CategoryChat), "limit'th+1 event should be blocked")
}

func TestLimiter_SeparateBucketsPerConnection(t *testing.T) {
	l := New()
	for i := 0; i < limits[CategoryAdmin]; i++ {
		assert.True(t, l.Allow("conn-a", CategoryAdmin))
	}
	assert.False(t, l.Allow("conn-a", CategoryAdmin))
	// A different connection has its own bucket.
	assert.True(t, l.Allow("conn-b", CategoryAdmin))
}

func TestLimiter_SeparateBucketsPerCategory(t *testing.T) {
	l := New()
	for i := 0; i < limits[CategoryAdmin]; i++ {
		assert.True(t, l.Allow("conn-1", CategoryAdmin))
	}
	assert.False(t, l.Allow("conn-1", CategoryAdmin))
	// Chat bucket for the same connection is unaffected.
	assert.True(t, l.Allow("conn-1", CategoryChat))
}

func TestLimiter_ResetsAfterWindow(t *testing.T) {
	current := time.Now()
	l := New()
	l.now = func() time.Time { return current }

	for i := 0; i < limits[CategoryAdmin]; i++ {
		assert.True(t, l.Allow("conn-1", CategoryAdmin))
	}
	assert.False(t, l.Allow("conn-1", CategoryAdmin))

	current = current.Add(window + time.Millisecond)
	assert.True(t, l.Allow("conn-1", CategoryAdmin), "new window should reset the bucket")
}

func TestLimiter_ReleaseClearsAllCategoriesForConnection(t *testing.T) {
	l := New()
	l.Allow("conn-1", CategoryChat)
	l.Allow("conn-1", CategoryAdmin)
	l.Allow("conn-2", CategoryChat)

	l.Release("conn-1")

	assert.Len(t, l.buckets, 1)
	for k := range l.buckets {
		assert.Equal(t, "conn-2:chat", k)
	}
}
