package sfu

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"
)

// Direction is which way media flows across a Transport.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// TransportParams is what CreateTransport hands back to the client verbatim.
type TransportParams struct {
	ID string `json:"id"`
}

// Transport wraps one PeerConnection: a send transport carries the client's
// producers, a recv transport carries the consumers the server pushes to
// that client. One of each per Peer, per scope.
type Transport struct {
	ID        string
	Direction Direction
	router    *Router
	pc        *webrtc.PeerConnection

	mu        sync.Mutex
	connected bool
	closed    bool
	pending   []*webrtc.TrackRemote
	waiters   []chan *webrtc.TrackRemote
}

func newTransport(router *Router, direction Direction) (*Transport, error) {
	pc, err := router.worker.api.NewPeerConnection(router.worker.iceConfiguration())
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	t := &Transport{
		ID:        uuid.NewString(),
		Direction: direction,
		router:    router,
		pc:        pc,
	}
	if direction == DirectionSend {
		pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			t.deliverTrack(remote)
		})
	}
	return t, nil
}

// Params returns the identifiers the signaling engine hands back to the
// client for create-transport.
func (t *Transport) Params() TransportParams {
	return TransportParams{ID: t.ID}
}

func (t *Transport) deliverTrack(remote *webrtc.TrackRemote) {
	t.mu.Lock()
	if len(t.waiters) > 0 {
		w := t.waiters[0]
		t.waiters = t.waiters[1:]
		t.mu.Unlock()
		w <- remote
		return
	}
	t.pending = append(t.pending, remote)
	t.mu.Unlock()
}

// NextTrack blocks until a remote track arrives on this send transport —
// the handoff point between Connect (which negotiates the track into
// existence) and Produce (which wraps it as a Producer).
func (t *Transport) NextTrack(ctx context.Context) (*webrtc.TrackRemote, error) {
	t.mu.Lock()
	if len(t.pending) > 0 {
		remote := t.pending[0]
		t.pending = t.pending[1:]
		t.mu.Unlock()
		return remote, nil
	}
	ch := make(chan *webrtc.TrackRemote, 1)
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()
	select {
	case remote := <-ch:
		return remote, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Connect completes negotiation for this transport. For a send transport
// sdp is the client's offer and the server answers; for a recv transport
// the server has already generated an offer out-of-band (via Renegotiate)
// and sdp is the client's answer. Idempotent on an already-connected
// transport of the same id.
func (t *Transport) Connect(sdp string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return "", nil
	}
	switch t.Direction {
	case DirectionSend:
		if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
			return "", fmt.Errorf("set remote offer: %w", err)
		}
		answer, err := t.pc.CreateAnswer(nil)
		if err != nil {
			return "", fmt.Errorf("create answer: %w", err)
		}
		gatherComplete := webrtc.GatheringCompletePromise(t.pc)
		if err := t.pc.SetLocalDescription(answer); err != nil {
			return "", fmt.Errorf("set local answer: %w", err)
		}
		<-gatherComplete
		t.connected = true
		return t.pc.LocalDescription().SDP, nil
	case DirectionRecv:
		if err := t.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
			return "", fmt.Errorf("set remote answer: %w", err)
		}
		t.connected = true
		return "", nil
	}
	return "", fmt.Errorf("unknown transport direction %q", t.Direction)
}

// Renegotiate regenerates an offer on a recv transport after a consumer's
// track has been added. The caller pushes the resulting SDP to the client
// as a renegotiation trigger; the client answers via Connect.
func (t *Transport) Renegotiate() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Direction != DirectionRecv {
		return "", fmt.Errorf("only recv transports renegotiate")
	}
	offer, err := t.pc.CreateOffer(nil)
	if err != nil {
		return "", fmt.Errorf("create offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return "", fmt.Errorf("set local offer: %w", err)
	}
	<-gatherComplete
	t.connected = false
	return t.pc.LocalDescription().SDP, nil
}

// AddLocalTrack attaches a consumer's local track to this transport.
func (t *Transport) AddLocalTrack(track *webrtc.TrackLocalStaticRTP) (*webrtc.RTPSender, error) {
	return t.pc.AddTrack(track)
}

// RemoveLocalTrack detaches a consumer's local track.
func (t *Transport) RemoveLocalTrack(sender *webrtc.RTPSender) error {
	return t.pc.RemoveTrack(sender)
}

// Close tears down the underlying PeerConnection. Idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	return t.pc.Close()
}
