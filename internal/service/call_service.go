package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
	"github.com/pion/webrtc/v3"
)

// CallService relays one-to-one call signalling. After ring setup it
// resolves the counterpart through the call record only, so payload
// identifiers cannot redirect an established exchange.
type CallService struct {
	calls    repository.CallRepository
	rooms    repository.RoomRepository
	presence repository.PresenceRepository
	members  MemberListBroadcaster
	ice      []webrtc.ICEServer
	log      *slog.Logger
}

func NewCallService(
	calls repository.CallRepository,
	rooms repository.RoomRepository,
	presence repository.PresenceRepository,
	members MemberListBroadcaster,
	stunURLs []string,
	log *slog.Logger,
) *CallService {
	if log == nil {
		log = slog.Default()
	}
	return &CallService{
		calls:    calls,
		rooms:    rooms,
		presence: presence,
		members:  members,
		ice:      domain.ICEServersFromURLs(stunURLs),
		log:      log,
	}
}

func (s *CallService) Start(ctx context.Context, p StartCallParams) error {
	const op = "service.call.start"
	log := s.log.With(slog.String("op", op), slog.String("conn_id", p.ConnID))

	room, caller, err := lookupMember(ctx, s.presence, s.rooms, p.ConnID)
	if err != nil {
		return err
	}

	kind := p.Kind
	if kind == "" {
		kind = domain.CallKindVideo
	}
	if kind != domain.CallKindAudio && kind != domain.CallKindVideo {
		return fmt.Errorf("%w: unsupported call type %q", ErrInvalidInput, kind)
	}
	if len(p.Offer) == 0 {
		return fmt.Errorf("%w: call offer is required", ErrInvalidInput)
	}

	target, ok := room.MemberByName(strings.TrimSpace(p.TargetUserName))
	if !ok {
		return fmt.Errorf("%w: %s is not in the room", ErrTargetUnavailable, p.TargetUserName)
	}
	if target.ConnID == caller.ConnID {
		return fmt.Errorf("%w: cannot call yourself", ErrInvalidInput)
	}

	call := &domain.Call{
		CallerConn: caller.ConnID,
		CallerName: caller.Name,
		CalleeConn: target.ConnID,
		CalleeName: target.Name,
		Kind:       kind,
		Status:     domain.CallRinging,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.calls.Register(ctx, call); err != nil {
		switch {
		case errors.Is(err, repository.ErrCallerBusy):
			return fmt.Errorf("%w: you are already in a call", ErrInvalidInput)
		case errors.Is(err, repository.ErrCalleeBusy):
			return fmt.Errorf("%w: %s is busy in another call", ErrTargetUnavailable, target.Name)
		}
		return err
	}

	enqueueMember(s.log, target, domain.Event{
		Name: domain.EventIncomingCall,
		Data: incomingCallPayload{
			CallerSocketID: caller.ConnID,
			CallerName:     caller.Name,
			Offer:          p.Offer,
			Kind:           kind,
			ICEServers:     s.ice,
		},
	})
	enqueueMember(s.log, caller, domain.Event{
		Name: domain.EventICEServers,
		Data: iceServersPayload{ICEServers: s.ice},
	})
	s.members.BroadcastMemberList(ctx, room.Code)

	log.Info("call started",
		"caller", caller.Name,
		"callee", target.Name,
		"kind", kind,
	)
	return nil
}

// Answer relays the callee's SDP to the caller and flips the call to
// active. Answers without a matching call record are dropped.
func (s *CallService) Answer(ctx context.Context, connID string, answer json.RawMessage) {
	if len(answer) == 0 {
		return
	}
	call, err := s.calls.Get(ctx, connID)
	if err != nil {
		return
	}
	s.calls.SetActive(ctx, connID)

	counterpart, ok := call.Counterpart(connID)
	if !ok {
		return
	}
	s.relay(ctx, counterpart, domain.Event{
		Name: domain.EventWebRTCAnswer,
		Data: callSignalPayload{FromSocketID: connID, Answer: answer},
	})
}

// Candidate relays ICE candidates between the two sides of a call,
// any number of times, in either direction.
func (s *CallService) Candidate(ctx context.Context, connID string, candidate json.RawMessage) {
	if len(candidate) == 0 {
		return
	}
	call, err := s.calls.Get(ctx, connID)
	if err != nil {
		return
	}

	counterpart, ok := call.Counterpart(connID)
	if !ok {
		return
	}
	s.relay(ctx, counterpart, domain.Event{
		Name: domain.EventWebRTCICECandidate,
		Data: callSignalPayload{FromSocketID: connID, Candidate: candidate},
	})
}

// Reject ends a ringing call from the callee side. Stale rejects are
// a no-op.
func (s *CallService) Reject(ctx context.Context, connID string) {
	call, err := s.calls.Remove(ctx, connID)
	if err != nil {
		return
	}

	if counterpart, ok := call.Counterpart(connID); ok {
		s.relay(ctx, counterpart, domain.Event{
			Name: domain.EventCallRejected,
			Data: callEndedPayload{Reason: "rejected"},
		})
	}
	s.broadcastBoth(ctx, call)
	s.log.Info("call rejected", "caller", call.CallerName, "callee", call.CalleeName)
}

func (s *CallService) End(ctx context.Context, connID string) {
	s.finish(ctx, connID, "ended")
}

// Terminate tears down the connection's call during leave or
// disconnect unwinding.
func (s *CallService) Terminate(ctx context.Context, connID, reason string) {
	s.finish(ctx, connID, reason)
}

func (s *CallService) finish(ctx context.Context, connID, reason string) {
	call, err := s.calls.Remove(ctx, connID)
	if err != nil {
		return
	}

	if counterpart, ok := call.Counterpart(connID); ok {
		s.relay(ctx, counterpart, domain.Event{
			Name: domain.EventCallEnded,
			Data: callEndedPayload{Reason: reason},
		})
	}
	s.broadcastBoth(ctx, call)
	s.log.Info("call ended",
		"caller", call.CallerName,
		"callee", call.CalleeName,
		"reason", reason,
	)
}

func (s *CallService) relay(ctx context.Context, connID string, event domain.Event) {
	_, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	enqueueMember(s.log, member, event)
}

// broadcastBoth refreshes the member list of every room the two call
// sides still sit in.
func (s *CallService) broadcastBoth(ctx context.Context, call *domain.Call) {
	codes := make(map[string]struct{}, 2)
	for _, id := range []string{call.CallerConn, call.CalleeConn} {
		if pres, err := s.presence.Get(ctx, id); err == nil {
			codes[pres.RoomCode] = struct{}{}
		}
	}
	for code := range codes {
		s.members.BroadcastMemberList(ctx, code)
	}
}

type incomingCallPayload struct {
	CallerSocketID string             `json:"callerSocketId"`
	CallerName     string             `json:"callerName"`
	Offer          json.RawMessage    `json:"offer"`
	Kind           string             `json:"type"`
	ICEServers     []webrtc.ICEServer `json:"iceServers"`
}

type iceServersPayload struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type callSignalPayload struct {
	FromSocketID string          `json:"fromSocketId"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

type callEndedPayload struct {
	Reason string `json:"reason"`
}
