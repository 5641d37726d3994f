package sfu

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Router is a routing domain pinned to one Worker: producers and consumers
// created through it can interconnect; routers are isolated from each other
// the way a main room and a breakout room never share media.
type Router struct {
	ID     string
	worker *Worker
	logger *zap.Logger

	mu             sync.Mutex
	producerCodecs map[string]string // producerID -> mime type
	closed         bool
}

// CreateWebRtcTransport allocates a new Transport on this router's worker.
func (r *Router) CreateWebRtcTransport(direction Direction) (*Transport, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("router closed")
	}
	if r.worker.Dead() {
		return nil, fmt.Errorf("worker dead")
	}
	return newTransport(r, direction)
}

func (r *Router) registerProducer(producerID, mimeType string) {
	r.mu.Lock()
	r.producerCodecs[producerID] = mimeType
	r.mu.Unlock()
}

func (r *Router) unregisterProducer(producerID string) {
	r.mu.Lock()
	delete(r.producerCodecs, producerID)
	r.mu.Unlock()
}

// CanConsume is the codec-compatibility probe: since the SFU only forwards,
// never transcodes, a consumer can only attach if its rtpCapabilities list
// the producer's exact codec mime type.
func (r *Router) CanConsume(producerID string, rtpCapabilities []string) bool {
	r.mu.Lock()
	mime, ok := r.producerCodecs[producerID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	for _, c := range rtpCapabilities {
		if c == mime {
			return true
		}
	}
	return false
}

// Capabilities reports the fixed codec set every router on this adapter
// supports, echoed to clients as routerCapabilities.
func (r *Router) Capabilities() []string {
	return []string{"audio/opus", "video/VP8", "video/VP9", "video/H264"}
}

// Close releases the router. Closing the transports that live on it is the
// caller's (Room's) responsibility, since Router does not track them.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}
