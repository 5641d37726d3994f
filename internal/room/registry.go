package room

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gridmeet/sfu-backend/internal/sfu"
	"go.uber.org/zap"
)

// Registry is the process-wide meetingCode -> Room map. Insertion, lookup,
// and removal happen under a short exclusive guard that never spans a
// suspension point (DB/SFU calls happen after release, on handles fetched
// under the guard).
type Registry struct {
	adapter *sfu.Adapter
	logger  *zap.Logger

	mu    sync.Mutex
	rooms map[string]*Room
}

// NewRegistry constructs an empty registry over the given SFU adapter.
func NewRegistry(adapter *sfu.Adapter, logger *zap.Logger) *Registry {
	return &Registry{adapter: adapter, logger: logger, rooms: make(map[string]*Room)}
}

// GetOrCreate returns the existing Room for meetingCode, or builds one.
func (reg *Registry) GetOrCreate(meetingID uuid.UUID, meetingCode string) (*Room, error) {
	reg.mu.Lock()
	if r, ok := reg.rooms[meetingCode]; ok {
		reg.mu.Unlock()
		return r, nil
	}
	reg.mu.Unlock()

	r, err := New(meetingID, meetingCode, reg.adapter, reg.logger)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if existing, ok := reg.rooms[meetingCode]; ok {
		r.Close()
		return existing, nil
	}
	reg.rooms[meetingCode] = r
	return r, nil
}

// Get returns the Room for meetingCode, if any.
func (reg *Registry) Get(meetingCode string) (*Room, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	r, ok := reg.rooms[meetingCode]
	return r, ok
}

// Remove erases meetingCode from the map without closing the Room — the
// caller is expected to have already called Room.Close().
func (reg *Registry) Remove(meetingCode string) {
	reg.mu.Lock()
	delete(reg.rooms, meetingCode)
	reg.mu.Unlock()
}

// Count reports the number of live rooms, for C10's /health.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// CloseAll closes every room — used at shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()
	for _, r := range rooms {
		r.Close()
	}
}
