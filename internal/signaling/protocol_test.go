package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGroupNames_AreNamespacedAndDistinct(t *testing.T) {
	code := "abc-123"
	lobby := LobbyGroup(code)
	meeting := MeetingGroup(code)
	breakout := BreakoutGroup(code)

	assert.Equal(t, "lobby:abc-123", lobby)
	assert.Equal(t, "meeting:abc-123", meeting)
	assert.Equal(t, "breakout:abc-123", breakout)

	assert.NotEqual(t, lobby, meeting)
	assert.NotEqual(t, meeting, breakout)
	assert.NotEqual(t, lobby, breakout)
}
