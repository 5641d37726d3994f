package sfu

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// Consumer is an inbound media track paired to a specific Producer. Always
// created paused; resumed once the client has attached its sink.
type Consumer struct {
	ID         string
	ProducerID string
	Kind       string

	producer  *Producer
	transport *Transport
	sender    *webrtc.RTPSender

	mu            sync.Mutex
	paused        bool
	spatialLayer  int
	temporalLayer int
	closed        bool
}

// NewConsumer wires a fresh local track for producer onto transport, paused
// by default. The caller (Room) is expected to have already confirmed
// router.CanConsume.
func NewConsumer(producer *Producer, transport *Transport) (*Consumer, error) {
	if transport.Direction != DirectionRecv {
		return nil, fmt.Errorf("consumers can only be created on recv transports")
	}
	id := uuid.NewString()
	track, err := producer.addConsumerTrack(id)
	if err != nil {
		return nil, fmt.Errorf("create consumer track: %w", err)
	}
	sender, err := transport.AddLocalTrack(track)
	if err != nil {
		producer.removeConsumerTrack(id)
		return nil, fmt.Errorf("attach consumer track: %w", err)
	}
	return &Consumer{
		ID:         id,
		ProducerID: producer.ID,
		Kind:       producer.Kind,
		producer:   producer,
		transport:  transport,
		sender:     sender,
		paused:     true,
	}, nil
}

// Pause stops this consumer's share of the relay without affecting siblings.
func (c *Consumer) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	c.producer.setConsumerPaused(c.ID, true)
}

// Resume restarts this consumer's share of the relay.
func (c *Consumer) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.producer.setConsumerPaused(c.ID, false)
}

// Paused reports the consumer's current pause state.
func (c *Consumer) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// SetPreferredLayers records the spatial/temporal layer a simulcast-capable
// consumer prefers. The values are only stored: nothing reads them, and the
// forwarded stream is not changed by them.
func (c *Consumer) SetPreferredLayers(spatial, temporal int) {
	c.mu.Lock()
	c.spatialLayer = spatial
	c.temporalLayer = temporal
	c.mu.Unlock()
}

// Close detaches this consumer's track from its transport and from the
// producer's fan-out set. Idempotent.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	c.producer.removeConsumerTrack(c.ID)
	return c.transport.RemoveLocalTrack(c.sender)
}
