package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(id string) *Client {
	return NewClient(id, nil, zap.NewNop())
}

func drain(c *Client) (Message, bool) {
	select {
	case m := <-c.send:
		return m, true
	default:
		return Message{}, false
	}
}

func TestHub_JoinAndGroupSize(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a")
	b := newTestClient("b")

	h.Join(MeetingGroup("code-1"), a)
	h.Join(MeetingGroup("code-1"), b)

	assert.Equal(t, 2, h.GroupSize(MeetingGroup("code-1")))
	assert.Equal(t, 0, h.GroupSize(MeetingGroup("code-2")))
}

func TestHub_LeaveRemovesMember(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a")
	h.Join(MeetingGroup("code-1"), a)

	h.Leave(MeetingGroup("code-1"), "a")

	assert.Equal(t, 0, h.GroupSize(MeetingGroup("code-1")))
}

func TestHub_BroadcastExcludesSender(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	sender := newTestClient("sender")
	other := newTestClient("other")
	h.Join(MeetingGroup("code-1"), sender)
	h.Join(MeetingGroup("code-1"), other)

	h.Broadcast(MeetingGroup("code-1"), "new-chat", map[string]string{"text": "hi"}, "sender")

	_, gotSender := drain(sender)
	assert.False(t, gotSender, "sender should not receive its own broadcast")

	msg, gotOther := drain(other)
	require.True(t, gotOther)
	assert.Equal(t, "new-chat", msg.Event)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, "hi", payload["text"])
}

func TestHub_SendToClientUnicasts(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	a := newTestClient("a")
	b := newTestClient("b")
	h.Join(MeetingGroup("code-1"), a)
	h.Join(MeetingGroup("code-1"), b)

	h.SendToClient("b", "kicked", nil)

	_, gotA := drain(a)
	assert.False(t, gotA)
	msg, gotB := drain(b)
	require.True(t, gotB)
	assert.Equal(t, "kicked", msg.Event)
}
