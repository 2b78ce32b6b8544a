package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
)

// PlaylistService aggregates per-member music uploads and runs the
// mutual-consent wipe handshake.
type PlaylistService struct {
	rooms    repository.RoomRepository
	presence repository.PresenceRepository
	log      *slog.Logger
}

func NewPlaylistService(
	rooms repository.RoomRepository,
	presence repository.PresenceRepository,
	log *slog.Logger,
) *PlaylistService {
	if log == nil {
		log = slog.Default()
	}
	return &PlaylistService{
		rooms:    rooms,
		presence: presence,
		log:      log,
	}
}

func (s *PlaylistService) Upload(ctx context.Context, p UploadTrackParams) error {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, p.ConnID)
	if err != nil {
		return err
	}
	if strings.TrimSpace(p.Data) == "" {
		return fmt.Errorf("%w: music content is required", ErrInvalidInput)
	}

	room.AddTrack(domain.PlaylistEntry{
		Owner:      member.Name,
		Data:       p.Data,
		FileName:   p.FileName,
		FileSize:   p.FileSize,
		UploadedAt: time.Now().UTC(),
	})
	s.broadcastPlaylists(room)
	s.log.Info("track uploaded",
		"room_code", room.Code,
		"user_name", member.Name,
		"file_name", p.FileName,
	)
	return nil
}

// RequestDelete asks another member to wipe their list. The target is
// resolved by name within the sender's room.
func (s *PlaylistService) RequestDelete(ctx context.Context, connID, targetUserName string) error {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return err
	}

	target, ok := room.MemberByName(strings.TrimSpace(targetUserName))
	if !ok {
		return fmt.Errorf("%w: %s is not in the room", ErrTargetUnavailable, targetUserName)
	}
	enqueueMember(s.log, target, domain.Event{
		Name: domain.EventMusicDeleteRequest,
		Data: musicDeleteRequestPayload{RequesterName: member.Name},
	})
	return nil
}

// ConfirmDelete wipes the confirmer's own list and closes the loop
// with the original requester if they are still around.
func (s *PlaylistService) ConfirmDelete(ctx context.Context, connID, requesterName string) {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}

	room.ClearTracks(member.Name)
	s.broadcastPlaylists(room)

	if requester, ok := room.MemberByName(strings.TrimSpace(requesterName)); ok {
		enqueueMember(s.log, requester, domain.Event{
			Name: domain.EventMusicDeleted,
			Data: musicDeletedPayload{TargetUserName: member.Name},
		})
	}
	s.log.Info("playlist cleared", "room_code", room.Code, "user_name", member.Name)
}

func (s *PlaylistService) broadcastPlaylists(room *domain.Room) {
	playlists, progress := room.PlaylistSnapshot()
	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventPlaylistUpdated,
		Data: playlistPayload{Playlists: playlists, Progress: progress},
	})
}

type playlistPayload struct {
	Playlists map[string][]domain.PlaylistEntryView `json:"playlists"`
	Progress  int                                   `json:"progress"`
}

type musicDeleteRequestPayload struct {
	RequesterName string `json:"requesterName"`
}

type musicDeletedPayload struct {
	TargetUserName string `json:"targetUserName"`
}
