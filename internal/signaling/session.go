package signaling

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gridmeet/sfu-backend/internal/auth"
	"github.com/gridmeet/sfu-backend/internal/models"
	"github.com/gridmeet/sfu-backend/internal/peer"
)

// Session is the per-Connection signaling state: identity, current binding,
// and broadcast-group membership. A Connection owns exactly one Session for
// its lifetime; the Peer (room-scoped media state) only exists once the
// participant has left the lobby.
type Session struct {
	Client   *Client
	Identity auth.Claims

	mu            sync.Mutex
	bound         bool
	meetingCode   string
	participantID uuid.UUID
	role          models.ParticipantRole
	group         string // current hub group, "" if none
	peer          *peer.Peer
}

func NewSession(client *Client, identity auth.Claims) *Session {
	return &Session{Client: client, Identity: identity}
}

func (s *Session) Bind(meetingCode string, participantID uuid.UUID, role models.ParticipantRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bound = true
	s.meetingCode = meetingCode
	s.participantID = participantID
	s.role = role
}

func (s *Session) SetRole(role models.ParticipantRole) {
	s.mu.Lock()
	s.role = role
	s.mu.Unlock()
}

func (s *Session) SetPeer(p *peer.Peer) {
	s.mu.Lock()
	s.peer = p
	s.mu.Unlock()
}

func (s *Session) Snapshot() (bound bool, meetingCode string, participantID uuid.UUID, role models.ParticipantRole, p *peer.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound, s.meetingCode, s.participantID, s.role, s.peer
}

func (s *Session) Group() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group
}

func (s *Session) SetGroup(g string) {
	s.mu.Lock()
	s.group = g
	s.mu.Unlock()
}

// sessionRegistry is the process-wide connId -> Session map the Engine uses
// to reach connections that have no room Peer yet (lobby holds) or that a
// host action targets by participantId rather than connId.
type sessionRegistry struct {
	mu       sync.Mutex
	byConn   map[string]*Session
	byPartic map[uuid.UUID]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{byConn: make(map[string]*Session), byPartic: make(map[uuid.UUID]*Session)}
}

func (r *sessionRegistry) put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byConn[s.Client.ConnID()] = s
}

func (r *sessionRegistry) bindParticipant(participantID uuid.UUID, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byPartic[participantID] = s
}

func (r *sessionRegistry) getByParticipant(participantID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byPartic[participantID]
	return s, ok
}

func (r *sessionRegistry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byConn, s.Client.ConnID())
	_, _, participantID, _, _ := s.Snapshot()
	if existing, ok := r.byPartic[participantID]; ok && existing == s {
		delete(r.byPartic, participantID)
	}
}
