package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
	"github.com/medetbek/kinotalk/lib/logger/sl"
	"golang.org/x/crypto/bcrypt"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

const (
	maxUserNameLength = 64
	maxRoomNameLength = 100
)

type RoomService struct {
	rooms    repository.RoomRepository
	presence repository.PresenceRepository
	calls    repository.CallRepository
	health   repository.HealthRepository
	cfg      config.SessionConfig
	log      *slog.Logger
}

func NewRoomService(
	rooms repository.RoomRepository,
	presence repository.PresenceRepository,
	calls repository.CallRepository,
	health repository.HealthRepository,
	cfg config.SessionConfig,
	log *slog.Logger,
) *RoomService {
	if log == nil {
		log = slog.Default()
	}
	return &RoomService{
		rooms:    rooms,
		presence: presence,
		calls:    calls,
		health:   health,
		cfg:      cfg,
		log:      log,
	}
}

func (s *RoomService) CreateRoom(ctx context.Context, p CreateRoomParams) (*domain.Room, *domain.Participant, error) {
	const op = "service.room.create"
	log := s.log.With(slog.String("op", op), slog.String("conn_id", p.ConnID))

	roomName := strings.TrimSpace(p.RoomName)
	userName := strings.TrimSpace(p.UserName)
	if err := validateRoomName(roomName); err != nil {
		return nil, nil, err
	}
	if err := validateUserName(userName); err != nil {
		return nil, nil, err
	}

	var secretHash []byte
	if p.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("failed to hash room password", sl.Err(err))
			return nil, nil, err
		}
		secretHash = hash
	}

	// Validation is done, the creator will land in the new room.
	// Leaving the old one any earlier would strand the caller on a
	// failed create.
	if p.Detach != nil {
		p.Detach()
	}

	for {
		room := domain.NewRoom(randRoomCode(), roomName, userName, secretHash)
		member := domain.NewParticipant(p.ConnID, userName, p.UserPhoto, p.Locale, true, p.Send)
		if err := room.AddMember(member); err != nil {
			return nil, nil, err
		}
		if err := s.rooms.Create(ctx, room); err != nil {
			if errors.Is(err, repository.ErrRoomCodeExists) {
				continue
			}
			return nil, nil, err
		}
		s.place(ctx, member, room.Code)

		log.Info("room created",
			"room_code", room.Code,
			"room_name", room.Name,
			"owner", userName,
		)
		return room, member, nil
	}
}

func (s *RoomService) JoinRoom(ctx context.Context, p JoinRoomParams) (*domain.Room, *domain.Participant, domain.RoomState, error) {
	const op = "service.room.join"
	log := s.log.With(
		slog.String("op", op),
		slog.String("room_code", p.RoomCode),
		slog.String("conn_id", p.ConnID),
	)

	userName := strings.TrimSpace(p.UserName)
	if err := validateUserName(userName); err != nil {
		return nil, nil, domain.RoomState{}, err
	}

	room, err := s.rooms.GetByCode(ctx, normalizeRoomCode(p.RoomCode))
	if err != nil {
		log.Info("join rejected", sl.Err(ErrRoomNotFound))
		return nil, nil, domain.RoomState{}, ErrRoomNotFound
	}
	if !room.Authorize(p.Password) {
		log.Info("join rejected", sl.Err(ErrUnauthorized))
		return nil, nil, domain.RoomState{}, fmt.Errorf("%w: wrong room password", ErrUnauthorized)
	}
	if m, ok := room.MemberByName(userName); ok && m.ConnID != p.ConnID {
		return nil, nil, domain.RoomState{}, fmt.Errorf("%w: name %q is already taken in this room", ErrInvalidInput, userName)
	}

	// The target room admits the caller, leaving the old room is safe
	// now. A rejected join above left the caller where they were.
	if p.Detach != nil {
		p.Detach()
	}

	member := domain.NewParticipant(p.ConnID, userName, p.UserPhoto, p.Locale, userName == room.OwnerName, p.Send)
	if err := room.AddMember(member); err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomClosed):
			// the reaper won the race, to the caller the room is gone
			log.Info("join rejected", sl.Err(ErrRoomNotFound))
			return nil, nil, domain.RoomState{}, ErrRoomNotFound
		case errors.Is(err, domain.ErrNameTaken):
			return nil, nil, domain.RoomState{}, fmt.Errorf("%w: name %q is already taken in this room", ErrInvalidInput, userName)
		default:
			return nil, nil, domain.RoomState{}, err
		}
	}
	s.place(ctx, member, room.Code)

	state := room.StateSnapshot(s.cfg.ResyncLimit)

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventUserJoined,
		Data: member.Info(),
	}, member.ConnID)
	s.broadcastMemberListExcept(ctx, room, member.ConnID)

	log.Info("participant joined",
		"user_name", member.Name,
		"is_owner", member.IsOwner,
		"members_count", room.MemberCount(),
	)
	return room, member, state, nil
}

// LeaveRoom detaches a connection from its room, notifies the rest
// and starts the empty-room grace timer when nobody is left. Unknown
// connections are a no-op.
func (s *RoomService) LeaveRoom(ctx context.Context, connID string) {
	pres, err := s.presence.Get(ctx, connID)
	if err != nil {
		return
	}
	s.presence.Delete(ctx, connID)
	s.health.SetRoom(ctx, connID, "")

	room, err := s.rooms.GetByCode(ctx, pres.RoomCode)
	if err != nil {
		return
	}

	member, remaining := room.RemoveMember(connID)
	if member == nil {
		return
	}

	s.log.Info("participant left",
		"room_code", room.Code,
		"user_name", member.Name,
		"members_count", remaining,
	)

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventUserLeft,
		Data: member.Info(),
	})
	s.broadcastMemberListExcept(ctx, room)

	if remaining == 0 {
		s.scheduleReap(room)
	}
}

func (s *RoomService) GetRoom(ctx context.Context, code string) (*domain.Room, error) {
	room, err := s.rooms.GetByCode(ctx, normalizeRoomCode(code))
	if err != nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Members renders the current list with call and screen share flags
// filled in.
func (s *RoomService) Members(ctx context.Context, code string) []domain.MemberInfo {
	room, err := s.rooms.GetByCode(ctx, normalizeRoomCode(code))
	if err != nil {
		return nil
	}
	return s.memberList(ctx, room)
}

func (s *RoomService) BroadcastMemberList(ctx context.Context, code string) {
	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return
	}
	s.broadcastMemberListExcept(ctx, room)
}

func (s *RoomService) SetVideo(ctx context.Context, connID, source, title string) error {
	room, member, err := s.resolve(ctx, connID)
	if err != nil {
		return err
	}
	if !room.IsOwnerConn(connID) {
		return fmt.Errorf("%w: only the room owner can share a video", ErrUnauthorized)
	}
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: video content is required", ErrInvalidInput)
	}

	video := &domain.VideoDescriptor{
		Kind:     domain.VideoKindUpload,
		Source:   source,
		Title:    title,
		SharedBy: member.Name,
		SharedAt: time.Now().UTC(),
	}
	playback := room.SetVideo(video)

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventVideoUploaded,
		Data: videoPayload{Video: video, Playback: playback},
	})
	s.log.Info("video shared", "room_code", room.Code, "kind", video.Kind, "title", title)
	return nil
}

func (s *RoomService) DeleteVideo(ctx context.Context, connID string) error {
	room, _, err := s.resolve(ctx, connID)
	if err != nil {
		return err
	}
	if !room.IsOwnerConn(connID) {
		return fmt.Errorf("%w: only the room owner can remove the video", ErrUnauthorized)
	}
	if !room.ClearVideo() {
		return nil
	}
	broadcastRoom(s.log, room, domain.Event{Name: domain.EventVideoDeleted})
	s.log.Info("video removed", "room_code", room.Code)
	return nil
}

func (s *RoomService) ShareYouTubeLink(ctx context.Context, connID, link, title string) error {
	room, member, err := s.resolve(ctx, connID)
	if err != nil {
		return err
	}

	videoID := parseYouTubeID(link)
	if videoID == "" {
		return fmt.Errorf("%w: unrecognized youtube link", ErrInvalidInput)
	}

	video := &domain.VideoDescriptor{
		Kind:     domain.VideoKindYouTube,
		Source:   strings.TrimSpace(link),
		VideoID:  videoID,
		Title:    title,
		SharedBy: member.Name,
		SharedAt: time.Now().UTC(),
	}
	playback := room.SetVideo(video)

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventYouTubeVideoShared,
		Data: videoPayload{Video: video, Playback: playback},
	})
	s.log.Info("youtube video shared", "room_code", room.Code, "video_id", videoID)
	return nil
}

// ApplyPlayback merges an owner control event into the authoritative
// playback state and fans the merged state out to the whole room,
// sender included.
func (s *RoomService) ApplyPlayback(ctx context.Context, connID string, patch domain.PlaybackPatch, eventName string) error {
	room, member, err := s.resolve(ctx, connID)
	if err != nil {
		return err
	}
	if !room.IsOwnerConn(connID) {
		return fmt.Errorf("%w: only the room owner can control playback", ErrUnauthorized)
	}
	if patch.Playing == nil && patch.CurrentTime == nil && patch.PlaybackRate == nil {
		return fmt.Errorf("%w: control event carries no fields", ErrInvalidInput)
	}

	state := room.MergePlayback(patch)
	broadcastRoom(s.log, room, domain.Event{
		Name: eventName,
		Data: playbackPayload{PlaybackState: state, By: member.Name},
	})
	return nil
}

// Run drives the backstop sweep that catches empty rooms whose grace
// timer was lost. Blocks until ctx is done.
func (s *RoomService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RoomSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepEmptyRooms(ctx)
		}
	}
}

func (s *RoomService) sweepEmptyRooms(ctx context.Context) {
	for _, room := range s.rooms.List(ctx) {
		if !room.CloseIfEmpty(s.cfg.EmptyRoomTTL) {
			continue
		}
		if err := s.rooms.Delete(ctx, room.Code); err == nil {
			s.log.Warn("stale empty room swept", "room_code", room.Code)
		}
	}
}

func (s *RoomService) scheduleReap(room *domain.Room) {
	room.MarkEmpty(time.Now().UTC())
	grace := s.cfg.RoomGracePeriod
	time.AfterFunc(grace, func() {
		s.reapIfEmpty(context.Background(), room.Code, grace)
	})
	s.log.Info("room empty, reap scheduled", "room_code", room.Code, "grace", grace.String())
}

// reapIfEmpty deletes the room unless someone came back since the
// empty marker was set. The room is closed before it leaves the
// registry, so a join racing the reaper either lands before the close
// and keeps the room, or is refused.
func (s *RoomService) reapIfEmpty(ctx context.Context, code string, minAge time.Duration) {
	room, err := s.rooms.GetByCode(ctx, code)
	if err != nil {
		return
	}
	if !room.CloseIfEmpty(minAge) {
		return
	}
	if err := s.rooms.Delete(ctx, code); err != nil {
		return
	}
	s.log.Info("empty room deleted", "room_code", code)
}

func (s *RoomService) resolve(ctx context.Context, connID string) (*domain.Room, *domain.Participant, error) {
	return lookupMember(ctx, s.presence, s.rooms, connID)
}

func (s *RoomService) place(ctx context.Context, member *domain.Participant, code string) {
	s.presence.Set(ctx, domain.Presence{
		ConnID:   member.ConnID,
		UserName: member.Name,
		RoomCode: code,
	})
	s.health.SetName(ctx, member.ConnID, member.Name)
	s.health.SetRoom(ctx, member.ConnID, code)
}

func (s *RoomService) broadcastMemberListExcept(ctx context.Context, room *domain.Room, exclude ...string) {
	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventUserListUpdate,
		Data: domain.MemberListPayload{Members: s.memberList(ctx, room)},
	}, exclude...)
}

func (s *RoomService) memberList(ctx context.Context, room *domain.Room) []domain.MemberInfo {
	members := room.MembersSnapshot()
	slices.SortFunc(members, func(a, b *domain.Participant) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})

	grant, hasGrant := room.Grant()
	out := make([]domain.MemberInfo, 0, len(members))
	for _, p := range members {
		info := p.Info()
		info.InCall = s.calls.InCall(ctx, p.ConnID)
		info.SharingScreen = hasGrant && grant.ConnID == p.ConnID
		out = append(out, info)
	}
	return out
}

type videoPayload struct {
	Video    *domain.VideoDescriptor `json:"video"`
	Playback domain.PlaybackState    `json:"playback"`
}

type playbackPayload struct {
	domain.PlaybackState
	By string `json:"by,omitempty"`
}

// lookupMember maps a connection onto its room and participant
// record. Connections outside any room resolve to ErrRoomNotFound.
func lookupMember(ctx context.Context, presence repository.PresenceRepository, rooms repository.RoomRepository, connID string) (*domain.Room, *domain.Participant, error) {
	pres, err := presence.Get(ctx, connID)
	if err != nil {
		return nil, nil, ErrRoomNotFound
	}
	room, err := rooms.GetByCode(ctx, pres.RoomCode)
	if err != nil {
		return nil, nil, ErrRoomNotFound
	}
	member, ok := room.Member(connID)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	return room, member, nil
}

// broadcastRoom fans an event out to the room, logging when slow
// consumers lost it.
func broadcastRoom(log *slog.Logger, room *domain.Room, event domain.Event, exclude ...string) {
	if dropped := room.Broadcast(event, exclude...); dropped > 0 {
		log.Debug("dropping broadcast event",
			slog.String("event", event.Name),
			slog.String("room_code", room.Code),
			slog.Int("dropped", dropped),
		)
	}
}

// enqueueMember sends a direct event to one participant, logging a
// full queue.
func enqueueMember(log *slog.Logger, member *domain.Participant, event domain.Event) {
	if !member.Enqueue(event) {
		log.Debug("dropping direct event",
			slog.String("event", event.Name),
			slog.String("conn_id", member.ConnID),
		)
	}
}

func normalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randRoomCode() string {
	b := make([]byte, roomCodeLength)
	for i := range b {
		b[i] = roomCodeAlphabet[rand.IntN(len(roomCodeAlphabet))]
	}
	return string(b)
}

var youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|embed/|shorts/)|youtu\.be/)([A-Za-z0-9_-]{11})`)
var youtubeBareID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// parseYouTubeID extracts the 11-char video id from the usual link
// shapes, or accepts a bare id.
func parseYouTubeID(link string) string {
	link = strings.TrimSpace(link)
	if m := youtubeIDPattern.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	if youtubeBareID.MatchString(link) {
		return link
	}
	return ""
}

func validateRoomName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: room name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxRoomNameLength {
		return fmt.Errorf("%w: room name is too long", ErrInvalidInput)
	}
	return nil
}

func validateUserName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: user name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(name) > maxUserNameLength {
		return fmt.Errorf("%w: user name is too long", ErrInvalidInput)
	}
	return nil
}
