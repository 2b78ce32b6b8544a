package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
)

// ScreenShareService runs the owner-gated share workflow: request,
// owner decision, one active slot per room, TTL purge of requests
// nobody decided on.
type ScreenShareService struct {
	rooms    repository.RoomRepository
	presence repository.PresenceRepository
	members  MemberListBroadcaster
	cfg      config.SessionConfig
	log      *slog.Logger

	mu      sync.Mutex
	pending map[string]*domain.ScreenShareRequest
}

func NewScreenShareService(
	rooms repository.RoomRepository,
	presence repository.PresenceRepository,
	members MemberListBroadcaster,
	cfg config.SessionConfig,
	log *slog.Logger,
) *ScreenShareService {
	if log == nil {
		log = slog.Default()
	}
	return &ScreenShareService{
		rooms:    rooms,
		presence: presence,
		members:  members,
		cfg:      cfg,
		log:      log,
		pending:  make(map[string]*domain.ScreenShareRequest),
	}
}

// Request files a share ask with the room owner. The owner's own
// request is granted immediately. Without a resolvable owner the
// request vanishes silently.
func (s *ScreenShareService) Request(ctx context.Context, connID string) {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}

	owner, ok := room.Member(room.OwnerConn())
	if !ok {
		s.log.Debug("share request without resolvable owner",
			slog.String("room_code", room.Code),
			slog.String("user_name", member.Name),
		)
		return
	}
	if owner.ConnID == connID {
		s.install(ctx, room, member)
		return
	}

	req := &domain.ScreenShareRequest{
		ConnID:      connID,
		UserName:    member.Name,
		RoomCode:    room.Code,
		RequestedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.pending[connID] = req
	s.mu.Unlock()

	enqueueMember(s.log, owner, domain.Event{
		Name: domain.EventScreenShareRequest,
		Data: shareRequestPayload{RequesterSocketID: connID, RequesterName: member.Name},
	})
	s.log.Info("screen share requested", "room_code", room.Code, "user_name", member.Name)
}

// Approve consumes a pending request and installs the grant. Only the
// owner connection decides; stale or foreign ids are ignored.
func (s *ScreenShareService) Approve(ctx context.Context, connID, requesterConnID string) {
	room, _, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	if !room.IsOwnerConn(connID) {
		return
	}

	req := s.take(requesterConnID)
	if req == nil || req.RoomCode != room.Code {
		return
	}
	requester, ok := room.Member(requesterConnID)
	if !ok {
		return
	}
	s.install(ctx, room, requester)
}

// Reject consumes a pending request and tells only the requester.
func (s *ScreenShareService) Reject(ctx context.Context, connID, requesterConnID string) {
	room, _, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	if !room.IsOwnerConn(connID) {
		return
	}

	req := s.take(requesterConnID)
	if req == nil || req.RoomCode != room.Code {
		return
	}
	if requester, ok := room.Member(requesterConnID); ok {
		enqueueMember(s.log, requester, domain.Event{Name: domain.EventScreenShareRejected})
	}
	s.log.Info("screen share rejected", "room_code", room.Code, "user_name", req.UserName)
}

// Stop frees the share slot. Any member may stop the current share.
func (s *ScreenShareService) Stop(ctx context.Context, connID string) {
	room, _, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}

	prior, ok := room.ClearGrant()
	if !ok {
		return
	}
	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventScreenShareStopped,
		Data: shareStoppedPayload{UserName: prior.UserName, Reason: "stopped"},
	})
	s.members.BroadcastMemberList(ctx, room.Code)
	s.log.Info("screen share stopped", "room_code", room.Code, "user_name", prior.UserName)
}

// HandleDisconnect clears everything the connection held in the
// workflow: its pending request and, if it was sharing, the room
// slot.
func (s *ScreenShareService) HandleDisconnect(ctx context.Context, connID string) {
	s.mu.Lock()
	delete(s.pending, connID)
	s.mu.Unlock()

	room, _, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	prior, ok := room.ClearGrantFor(connID)
	if !ok {
		return
	}
	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventScreenShareStopped,
		Data: shareStoppedPayload{UserName: prior.UserName, Reason: "disconnect"},
	}, connID)
	s.members.BroadcastMemberList(ctx, room.Code)
}

// Run purges undecided share requests past their TTL. Blocks until
// ctx is done.
func (s *ScreenShareService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ShareSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

func (s *ScreenShareService) purgeExpired() {
	cutoff := time.Now().UTC().Add(-s.cfg.ShareRequestTTL)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, req := range s.pending {
		if req.RequestedAt.Before(cutoff) {
			delete(s.pending, id)
			s.log.Debug("expired share request purged",
				slog.String("room_code", req.RoomCode),
				slog.String("user_name", req.UserName),
			)
		}
	}
}

// install replaces the active slot holder. A previous holder is
// stopped first so the room only ever sees one share.
func (s *ScreenShareService) install(ctx context.Context, room *domain.Room, member *domain.Participant) {
	if prior, had := room.ClearGrant(); had && prior.ConnID != member.ConnID {
		broadcastRoom(s.log, room, domain.Event{
			Name: domain.EventScreenShareStopped,
			Data: shareStoppedPayload{UserName: prior.UserName, Reason: "replaced"},
		})
	}
	room.SetGrant(&domain.ScreenShareGrant{
		ConnID:    member.ConnID,
		UserName:  member.Name,
		StartedAt: time.Now().UTC(),
	})

	enqueueMember(s.log, member, domain.Event{Name: domain.EventScreenShareApproved})
	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventScreenShareStarted,
		Data: shareStartedPayload{SocketID: member.ConnID, UserName: member.Name},
	})
	s.members.BroadcastMemberList(ctx, room.Code)
	s.log.Info("screen share started", "room_code", room.Code, "user_name", member.Name)
}

func (s *ScreenShareService) take(connID string) *domain.ScreenShareRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	req := s.pending[connID]
	delete(s.pending, connID)
	return req
}

type shareRequestPayload struct {
	RequesterSocketID string `json:"requesterSocketId"`
	RequesterName     string `json:"requesterName"`
}

type shareStartedPayload struct {
	SocketID string `json:"socketId"`
	UserName string `json:"userName"`
}

type shareStoppedPayload struct {
	UserName string `json:"userName"`
	Reason   string `json:"reason"`
}
