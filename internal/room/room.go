// Package room implements C3: per-meeting runtime aggregate of a main
// router, its peers, and any breakout sub-routers and their peers.
package room

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gridmeet/sfu-backend/internal/peer"
	"github.com/gridmeet/sfu-backend/internal/sfu"
	"go.uber.org/zap"
)

type breakoutScope struct {
	router *sfu.Router
	peers  map[string]*peer.Peer
}

// Room is the runtime aggregate per meeting.
type Room struct {
	MeetingID   uuid.UUID
	MeetingCode string

	adapter *sfu.Adapter
	logger  *zap.Logger

	mu         sync.Mutex
	mainRouter *sfu.Router
	mainPeers  map[string]*peer.Peer
	breakouts  map[uuid.UUID]*breakoutScope
	closed     bool
}

// New creates a Room with a fresh main router pulled from the adapter pool.
func New(meetingID uuid.UUID, meetingCode string, adapter *sfu.Adapter, logger *zap.Logger) (*Room, error) {
	router, err := adapter.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("create main router: %w", err)
	}
	return &Room{
		MeetingID:   meetingID,
		MeetingCode: meetingCode,
		adapter:     adapter,
		logger:      logger,
		mainRouter:  router,
		mainPeers:   make(map[string]*peer.Peer),
		breakouts:   make(map[uuid.UUID]*breakoutScope),
	}, nil
}

// AddPeer puts a peer in the main scope.
func (r *Room) AddPeer(p *peer.Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mainPeers[p.Identity.ConnID] = p
}

// RemovePeer removes a peer from whichever scope holds it, closes it, and
// returns the (now-closed) peer so the caller can fan out closure events.
func (r *Room) RemovePeer(connID string) *peer.Peer {
	r.mu.Lock()
	if p, ok := r.mainPeers[connID]; ok {
		delete(r.mainPeers, connID)
		r.mu.Unlock()
		p.Close()
		return p
	}
	for _, b := range r.breakouts {
		if p, ok := b.peers[connID]; ok {
			delete(b.peers, connID)
			r.mu.Unlock()
			p.Close()
			return p
		}
	}
	r.mu.Unlock()
	return nil
}

// GetPeer scans main then breakouts.
func (r *Room) GetPeer(connID string) *peer.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.mainPeers[connID]; ok {
		return p
	}
	for _, b := range r.breakouts {
		if p, ok := b.peers[connID]; ok {
			return p
		}
	}
	return nil
}

// routerFor returns the router a peer's scope is pinned to.
func (r *Room) routerFor(connID string) *sfu.Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mainPeers[connID]; ok {
		return r.mainRouter
	}
	for _, b := range r.breakouts {
		if _, ok := b.peers[connID]; ok {
			return b.router
		}
	}
	return nil
}

// CreateTransport creates a transport on the router the peer currently
// belongs to and stores it on the peer.
func (r *Room) CreateTransport(p *peer.Peer, direction sfu.Direction) (sfu.TransportParams, error) {
	router := r.routerFor(p.Identity.ConnID)
	if router == nil {
		return sfu.TransportParams{}, fmt.Errorf("peer not in this room")
	}
	t, err := router.CreateWebRtcTransport(direction)
	if err != nil {
		return sfu.TransportParams{}, err
	}
	if direction == sfu.DirectionSend {
		err = p.SetSendTransport(t)
	} else {
		err = p.SetRecvTransport(t)
	}
	if err != nil {
		_ = t.Close()
		return sfu.TransportParams{}, err
	}
	return t.Params(), nil
}

// CreateProducer verifies transportID matches the peer's send transport and
// wraps the client's newly negotiated track as a Producer.
func (r *Room) CreateProducer(ctx context.Context, p *peer.Peer, transportID string, appType sfu.AppType) (*sfu.Producer, error) {
	send := p.SendTransport()
	if send == nil || send.ID != transportID {
		return nil, fmt.Errorf("transport id mismatch")
	}
	if appType == sfu.AppTypeScreen {
		if r.screenShareActive(p.Identity.ConnID) {
			return nil, ErrScreenShareTaken
		}
	}
	prod, err := sfu.Produce(ctx, send, appType, r.logger)
	if err != nil {
		return nil, err
	}
	if err := p.AddProducer(prod); err != nil {
		prod.Close()
		return nil, err
	}
	return prod, nil
}

// ErrScreenShareTaken is returned when a second screen producer is attempted
// in the same scope.
var ErrScreenShareTaken = fmt.Errorf("someone is already sharing their screen")

// screenShareActive reports whether any peer in connID's scope already has
// an open screen producer.
func (r *Room) screenShareActive(connID string) bool {
	r.mu.Lock()
	var peers map[string]*peer.Peer
	if _, ok := r.mainPeers[connID]; ok {
		peers = r.mainPeers
	} else {
		for _, b := range r.breakouts {
			if _, ok := b.peers[connID]; ok {
				peers = b.peers
				break
			}
		}
	}
	r.mu.Unlock()
	if peers == nil {
		return false
	}
	for _, p := range peers {
		if len(p.ProducersOfType(sfu.AppTypeScreen)) > 0 {
			return true
		}
	}
	return false
}

// CreateConsumer returns nil when codecs are incompatible; the consumer is
// always created paused.
func (r *Room) CreateConsumer(consumerPeer *peer.Peer, producerPeer *peer.Peer, producerID string, rtpCapabilities []string) (*sfu.Consumer, error) {
	router := r.routerFor(consumerPeer.Identity.ConnID)
	if router == nil {
		return nil, fmt.Errorf("peer not in this room")
	}
	if !router.CanConsume(producerID, rtpCapabilities) {
		return nil, nil
	}
	prod, ok := producerPeer.GetProducer(producerID)
	if !ok {
		return nil, fmt.Errorf("producer not found")
	}
	recv := consumerPeer.RecvTransport()
	if recv == nil {
		return nil, fmt.Errorf("no recv transport")
	}
	c, err := sfu.NewConsumer(prod, recv)
	if err != nil {
		return nil, err
	}
	if err := consumerPeer.AddConsumer(c); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// CreateBreakoutRouter allocates a new router for a breakout sub-room.
func (r *Room) CreateBreakoutRouter(breakoutID uuid.UUID) (*sfu.Router, error) {
	router, err := r.adapter.CreateRouter()
	if err != nil {
		return nil, fmt.Errorf("create breakout router: %w", err)
	}
	r.mu.Lock()
	r.breakouts[breakoutID] = &breakoutScope{router: router, peers: make(map[string]*peer.Peer)}
	r.mu.Unlock()
	return router, nil
}

// MovePeerToBreakout destroys the peer's main-scope resources and builds a
// fresh Peer with the same identity in the breakout scope. Transports are
// never reattached across routers.
func (r *Room) MovePeerToBreakout(connID string, breakoutID uuid.UUID) (*peer.Peer, error) {
	r.mu.Lock()
	old, ok := r.mainPeers[connID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("peer not in main scope")
	}
	scope, ok := r.breakouts[breakoutID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("breakout not found")
	}
	delete(r.mainPeers, connID)
	r.mu.Unlock()

	old.Close()
	fresh := peer.New(old.Identity)

	r.mu.Lock()
	scope.peers[connID] = fresh
	r.mu.Unlock()
	return fresh, nil
}

// MovePeerToMain is the mirror of MovePeerToBreakout.
func (r *Room) MovePeerToMain(connID string) (*peer.Peer, error) {
	r.mu.Lock()
	var old *peer.Peer
	for _, b := range r.breakouts {
		if p, ok := b.peers[connID]; ok {
			old = p
			delete(b.peers, connID)
			break
		}
	}
	r.mu.Unlock()
	if old == nil {
		return nil, fmt.Errorf("peer not in a breakout scope")
	}

	old.Close()
	fresh := peer.New(old.Identity)

	r.mu.Lock()
	r.mainPeers[connID] = fresh
	r.mu.Unlock()
	return fresh, nil
}

// CloseAllBreakouts closes every breakout peer and router, reseating each
// peer's identity into mainPeers with a fresh Peer. Returns the reseated
// connIds so the caller can instruct them to renegotiate on the main router.
func (r *Room) CloseAllBreakouts() []string {
	r.mu.Lock()
	breakouts := r.breakouts
	r.breakouts = make(map[uuid.UUID]*breakoutScope)
	r.mu.Unlock()

	var reseated []string
	for _, scope := range breakouts {
		for connID, p := range scope.peers {
			p.Close()
			fresh := peer.New(p.Identity)
			r.mu.Lock()
			r.mainPeers[connID] = fresh
			r.mu.Unlock()
			reseated = append(reseated, connID)
		}
		scope.router.Close()
	}
	return reseated
}

// FindConnIDByParticipant scans the main scope for a peer with the given
// durable participantId, returning its connId if currently connected.
func (r *Room) FindConnIDByParticipant(participantID uuid.UUID) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID, p := range r.mainPeers {
		if p.Identity.ParticipantID == participantID {
			return connID, true
		}
	}
	return "", false
}

// MainRouter exposes the main router, e.g. for routerCapabilities on join.
func (r *Room) MainRouter() *sfu.Router {
	return r.mainRouter
}

// BreakoutRouter returns a breakout's router, or nil if it doesn't exist.
func (r *Room) BreakoutRouter(breakoutID uuid.UUID) *sfu.Router {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakouts[breakoutID]; ok {
		return b.router
	}
	return nil
}

// ActiveBreakoutIDs returns the IDs of every breakout sub-room currently
// open in this room.
func (r *Room) ActiveBreakoutIDs() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(r.breakouts))
	for id := range r.breakouts {
		ids = append(ids, id)
	}
	return ids
}

// IsEmpty reports whether every main and breakout peer map is empty.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mainPeers) > 0 {
		return false
	}
	for _, b := range r.breakouts {
		if len(b.peers) > 0 {
			return false
		}
	}
	return true
}

// Close closes every Peer in every scope, then every breakout router, then
// the main router. Idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	mainPeers := r.mainPeers
	breakouts := r.breakouts
	r.mainPeers = make(map[string]*peer.Peer)
	r.breakouts = make(map[uuid.UUID]*breakoutScope)
	r.mu.Unlock()

	for _, p := range mainPeers {
		p.Close()
	}
	for _, b := range breakouts {
		for _, p := range b.peers {
			p.Close()
		}
		b.router.Close()
	}
	r.mainRouter.Close()
}
