// Package peer implements C2: per-connection state bound to one room scope.
package peer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gridmeet/sfu-backend/internal/sfu"
)

// Identity is the immutable snapshot a Peer carries for its lifetime.
type Identity struct {
	ConnID        string
	UserID        uuid.UUID
	ParticipantID uuid.UUID
	Name          string
	AvatarURL     string
}

// Peer is bound to one Connection for as long as it stays in one room
// scope (main or one breakout). Moving scopes destroys this Peer and its
// owned transports/producers/consumers, and a fresh Peer is built in the
// destination scope — see Room.MovePeerToBreakout/MovePeerToMain.
type Peer struct {
	Identity Identity

	mu            sync.Mutex
	sendTransport *sfu.Transport
	recvTransport *sfu.Transport
	producers     map[string]*sfu.Producer
	consumers     map[string]*sfu.Consumer
	closed        bool
}

// ErrClosed is returned by SetSendTransport, SetRecvTransport, AddProducer
// and AddConsumer once Close has run; the lookup and remove methods do not
// return it.
var ErrClosed = fmt.Errorf("peer closed")

// ErrAlreadySet is returned when a send/recv transport is set a second time.
var ErrAlreadySet = fmt.Errorf("transport already set")

// New builds a fresh Peer for the given identity.
func New(identity Identity) *Peer {
	return &Peer{
		Identity:  identity,
		producers: make(map[string]*sfu.Producer),
		consumers: make(map[string]*sfu.Consumer),
	}
}

// SetSendTransport sets the peer's outbound transport. At-most-once.
func (p *Peer) SetSendTransport(t *sfu.Transport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.sendTransport != nil {
		return ErrAlreadySet
	}
	p.sendTransport = t
	return nil
}

// SetRecvTransport sets the peer's inbound transport. At-most-once.
func (p *Peer) SetRecvTransport(t *sfu.Transport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	if p.recvTransport != nil {
		return ErrAlreadySet
	}
	p.recvTransport = t
	return nil
}

// SendTransport returns the peer's outbound transport, or nil.
func (p *Peer) SendTransport() *sfu.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendTransport
}

// RecvTransport returns the peer's inbound transport, or nil.
func (p *Peer) RecvTransport() *sfu.Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recvTransport
}

// AddProducer registers a newly created producer under this peer.
func (p *Peer) AddProducer(prod *sfu.Producer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.producers[prod.ID] = prod
	return nil
}

// RemoveProducer unregisters and closes the producer.
func (p *Peer) RemoveProducer(id string) {
	p.mu.Lock()
	prod, ok := p.producers[id]
	if ok {
		delete(p.producers, id)
	}
	p.mu.Unlock()
	if ok {
		prod.Close()
	}
}

// GetProducer looks up a producer by id.
func (p *Peer) GetProducer(id string) (*sfu.Producer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prod, ok := p.producers[id]
	return prod, ok
}

// ProducersOfType returns every live producer of the given app type.
func (p *Peer) ProducersOfType(appType sfu.AppType) []*sfu.Producer {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*sfu.Producer
	for _, prod := range p.producers {
		if prod.AppType == appType {
			out = append(out, prod)
		}
	}
	return out
}

// Producers returns every producer owned by this peer.
func (p *Peer) Producers() []*sfu.Producer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*sfu.Producer, 0, len(p.producers))
	for _, prod := range p.producers {
		out = append(out, prod)
	}
	return out
}

// AddConsumer registers a newly created consumer under this peer.
func (p *Peer) AddConsumer(c *sfu.Consumer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	p.consumers[c.ID] = c
	return nil
}

// RemoveConsumer unregisters and closes the consumer.
func (p *Peer) RemoveConsumer(id string) {
	p.mu.Lock()
	c, ok := p.consumers[id]
	if ok {
		delete(p.consumers, id)
	}
	p.mu.Unlock()
	if ok {
		_ = c.Close()
	}
}

// GetConsumer looks up a consumer by id.
func (p *Peer) GetConsumer(id string) (*sfu.Consumer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.consumers[id]
	return c, ok
}

// Closed reports whether Close has already run.
func (p *Peer) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close closes every owned Producer and Consumer, then both transports.
// Idempotent.
func (p *Peer) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	producers := p.producers
	consumers := p.consumers
	send := p.sendTransport
	recv := p.recvTransport
	p.producers = nil
	p.consumers = nil
	p.mu.Unlock()

	for _, c := range consumers {
		_ = c.Close()
	}
	for _, prod := range producers {
		prod.Close()
	}
	if send != nil {
		_ = send.Close()
	}
	if recv != nil {
		_ = recv.Close()
	}
}
