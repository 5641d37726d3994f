package signaling

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// RedisPublisher publishes an event to a named broadcast group so other
// instances' Hubs can fan it out locally.
type RedisPublisher interface {
	PublishGroupEvent(ctx context.Context, group, event string, data interface{}) error
}

// RedisSubscriber subscribes to a named broadcast group; the callback fires
// once per event received from any instance, including this one.
type RedisSubscriber interface {
	SubscribeGroup(ctx context.Context, group string, onEvent func(event string, data []byte)) (cancel func(), err error)
}

// Hub is the cross-instance broadcast fan-out for the three group types:
// lobby:<code>, meeting:<code>, breakout:<id>. Membership is tracked per
// group; moving a Connection between groups is a Leave followed by a
// separate Join, not one atomic step relative to outbound sends.
type Hub struct {
	logger      *zap.Logger
	redis       RedisPublisher
	redisSub    RedisSubscriber

	mu      sync.Mutex
	groups  map[string]map[string]*Client // group -> connId -> client
	subs    map[string]func()             // group -> redis unsubscribe
}

// NewHub builds a Hub. redis/redisSub may be nil for single-instance tests.
func NewHub(logger *zap.Logger, redis RedisPublisher, redisSub RedisSubscriber) *Hub {
	return &Hub{
		logger:   logger,
		redis:    redis,
		redisSub: redisSub,
		groups:   make(map[string]map[string]*Client),
		subs:     make(map[string]func()),
	}
}

// Join adds client to group, starting a Redis subscription on first member.
func (h *Hub) Join(group string, client *Client) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if !ok {
		members = make(map[string]*Client)
		h.groups[group] = members
	}
	members[client.ConnID()] = client
	startSub := h.redisSub != nil && len(members) == 1
	h.mu.Unlock()

	if startSub {
		cancel, err := h.redisSub.SubscribeGroup(context.Background(), group, func(event string, data []byte) {
			h.broadcastLocal(group, event, data, "")
		})
		if err != nil {
			h.logger.Error("subscribe group failed", zap.String("group", group), zap.Error(err))
			return
		}
		h.mu.Lock()
		h.subs[group] = cancel
		h.mu.Unlock()
	}
}

// Leave removes client from group, stopping the Redis subscription once the
// group is empty.
func (h *Hub) Leave(group string, connID string) {
	h.mu.Lock()
	members, ok := h.groups[group]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(members, connID)
	empty := len(members) == 0
	var cancel func()
	if empty {
		delete(h.groups, group)
		cancel = h.subs[group]
		delete(h.subs, group)
	}
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// broadcastLocal sends event/data to every member of group on this
// instance, optionally excluding one connId (the sender, for "excluding
// self" semantics).
func (h *Hub) broadcastLocal(group, event string, data []byte, exceptConnID string) {
	h.mu.Lock()
	members := make([]*Client, 0, len(h.groups[group]))
	for connID, c := range h.groups[group] {
		if connID == exceptConnID {
			continue
		}
		members = append(members, c)
	}
	h.mu.Unlock()
	for _, c := range members {
		c.Push(event, data)
	}
}

// Broadcast fans out to group on this instance and, if configured, every
// other instance via Redis.
func (h *Hub) Broadcast(group, event string, data interface{}, exceptConnID string) {
	raw, err := marshalPayload(data)
	if err != nil {
		h.logger.Error("marshal broadcast payload", zap.Error(err))
		return
	}
	h.broadcastLocal(group, event, raw, exceptConnID)
	if h.redis != nil {
		if err := h.redis.PublishGroupEvent(context.Background(), group, event, data); err != nil {
			h.logger.Error("publish group event", zap.String("group", group), zap.Error(err))
		}
	}
}

// SendToClient unicasts to one connId if it's a known member of any group.
func (h *Hub) SendToClient(connID, event string, data interface{}) {
	raw, err := marshalPayload(data)
	if err != nil {
		h.logger.Error("marshal unicast payload", zap.Error(err))
		return
	}
	h.mu.Lock()
	var target *Client
	for _, members := range h.groups {
		if c, ok := members[connID]; ok {
			target = c
			break
		}
	}
	h.mu.Unlock()
	if target != nil {
		target.Push(event, raw)
	}
}

// GroupSize reports the local member count of a group.
func (h *Hub) GroupSize(group string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.groups[group])
}
