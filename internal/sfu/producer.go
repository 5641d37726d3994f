package sfu

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// AppType distinguishes a screen-share producer from a plain camera/mic one
// even though both may carry a video Kind.
type AppType string

const (
	AppTypeAudio  AppType = "audio"
	AppTypeVideo  AppType = "video"
	AppTypeScreen AppType = "screen"
)

type relayTarget struct {
	track  *webrtc.TrackLocalStaticRTP
	paused bool
}

// Producer is an inbound media track relayed, unmodified, to every
// consuming Peer's local track — the SFU never transcodes.
type Producer struct {
	ID      string
	Kind    string
	AppType AppType

	router *Router
	remote *webrtc.TrackRemote
	logger *zap.Logger

	mu      sync.Mutex
	paused  bool
	closed  bool
	targets map[string]*relayTarget // consumerID -> target
}

// Produce waits for the track the client just negotiated onto transport and
// wraps it as a Producer. transport must be a send transport that has
// already completed Connect.
func Produce(ctx context.Context, transport *Transport, appType AppType, logger *zap.Logger) (*Producer, error) {
	if transport.Direction != DirectionSend {
		return nil, fmt.Errorf("producers can only be created on send transports")
	}
	remote, err := transport.NextTrack(ctx)
	if err != nil {
		return nil, fmt.Errorf("await remote track: %w", err)
	}
	return newProducer(transport.router, remote, appType, logger), nil
}

func newProducer(router *Router, remote *webrtc.TrackRemote, appType AppType, logger *zap.Logger) *Producer {
	p := &Producer{
		ID:      uuid.NewString(),
		Kind:    remote.Kind().String(),
		AppType: appType,
		router:  router,
		remote:  remote,
		logger:  logger,
		targets: make(map[string]*relayTarget),
	}
	router.registerProducer(p.ID, remote.Codec().MimeType)
	go p.relayLoop()
	return p
}

func (p *Producer) relayLoop() {
	buf := make([]byte, 1500)
	for {
		n, _, err := p.remote.Read(buf)
		if err != nil {
			if err != io.EOF && p.logger != nil {
				p.logger.Debug("producer relay loop stopped", zap.String("producerId", p.ID), zap.Error(err))
			}
			return
		}
		p.mu.Lock()
		if p.paused {
			p.mu.Unlock()
			continue
		}
		targets := make([]*relayTarget, 0, len(p.targets))
		for _, t := range p.targets {
			if !t.paused {
				targets = append(targets, t)
			}
		}
		p.mu.Unlock()
		for _, t := range targets {
			_, _ = t.track.Write(buf[:n])
		}
	}
}

// addConsumerTrack creates and registers a fresh local track fanning out
// this producer's RTP to one new consumer.
func (p *Producer) addConsumerTrack(consumerID string) (*webrtc.TrackLocalStaticRTP, error) {
	track, err := webrtc.NewTrackLocalStaticRTP(p.remote.Codec().RTPCodecCapability, p.ID, p.ID+"-"+consumerID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.targets[consumerID] = &relayTarget{track: track, paused: true}
	p.mu.Unlock()
	return track, nil
}

func (p *Producer) removeConsumerTrack(consumerID string) {
	p.mu.Lock()
	delete(p.targets, consumerID)
	p.mu.Unlock()
}

func (p *Producer) setConsumerPaused(consumerID string, paused bool) {
	p.mu.Lock()
	if t, ok := p.targets[consumerID]; ok {
		t.paused = paused
	}
	p.mu.Unlock()
}

// Pause stops relaying RTP for every consumer of this producer.
func (p *Producer) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume restarts relaying.
func (p *Producer) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Paused reports the producer's current pause state.
func (p *Producer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Close unregisters the producer from its router. The remote track itself
// is torn down when the owning transport closes.
func (p *Producer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	p.router.unregisterProducer(p.ID)
}
