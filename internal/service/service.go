package service

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
)

type CreateRoomParams struct {
	ConnID    string
	RoomName  string
	UserName  string
	UserPhoto string
	Locale    string
	Password  string
	Send      func(domain.Event) bool
	// Detach leaves the connection's current room, if any. It runs
	// only after the new room is known to admit the caller, so a
	// failed create or join never ejects anyone.
	Detach func()
}

type JoinRoomParams struct {
	ConnID    string
	RoomCode  string
	UserName  string
	UserPhoto string
	Locale    string
	Password  string
	Send      func(domain.Event) bool
	Detach    func()
}

type PostMessageParams struct {
	Text     string
	Kind     string
	FileURL  string
	FileName string
	FileSize int64
}

type StartCallParams struct {
	ConnID         string
	TargetUserName string
	Kind           string
	Offer          json.RawMessage
}

type UploadTrackParams struct {
	ConnID   string
	Data     string
	FileName string
	FileSize int64
}

type RoomInteractor interface {
	CreateRoom(ctx context.Context, p CreateRoomParams) (*domain.Room, *domain.Participant, error)
	JoinRoom(ctx context.Context, p JoinRoomParams) (*domain.Room, *domain.Participant, domain.RoomState, error)
	LeaveRoom(ctx context.Context, connID string)
	GetRoom(ctx context.Context, code string) (*domain.Room, error)
	Members(ctx context.Context, code string) []domain.MemberInfo
	SetVideo(ctx context.Context, connID, source, title string) error
	DeleteVideo(ctx context.Context, connID string) error
	ShareYouTubeLink(ctx context.Context, connID, link, title string) error
	ApplyPlayback(ctx context.Context, connID string, patch domain.PlaybackPatch, eventName string) error
	BroadcastMemberList(ctx context.Context, code string)
	Run(ctx context.Context)
}

type ChatInteractor interface {
	Post(ctx context.Context, connID string, p PostMessageParams) error
	Edit(ctx context.Context, connID, messageID, text string) error
	Delete(ctx context.Context, connID, messageID string)
	React(ctx context.Context, connID, messageID, emoji string)
	MarkSeen(ctx context.Context, connID, messageID string)
}

type CallInteractor interface {
	Start(ctx context.Context, p StartCallParams) error
	Answer(ctx context.Context, connID string, answer json.RawMessage)
	Candidate(ctx context.Context, connID string, candidate json.RawMessage)
	Reject(ctx context.Context, connID string)
	End(ctx context.Context, connID string)
	Terminate(ctx context.Context, connID, reason string)
}

type ScreenShareInteractor interface {
	Request(ctx context.Context, connID string)
	Approve(ctx context.Context, connID, requesterConnID string)
	Reject(ctx context.Context, connID, requesterConnID string)
	Stop(ctx context.Context, connID string)
	HandleDisconnect(ctx context.Context, connID string)
	Run(ctx context.Context)
}

type PlaylistInteractor interface {
	Upload(ctx context.Context, p UploadTrackParams) error
	RequestDelete(ctx context.Context, connID, targetUserName string) error
	ConfirmDelete(ctx context.Context, connID, requesterName string)
}

type HealthInteractor interface {
	Track(ctx context.Context, connID string, enqueue func(domain.Event) bool, closeFn func())
	Ack(ctx context.Context, connID string)
	Untrack(ctx context.Context, connID string)
	Run(ctx context.Context)
	Stop()
}

// MemberListBroadcaster republishes a room's member list after a
// component changed the flags shown there.
type MemberListBroadcaster interface {
	BroadcastMemberList(ctx context.Context, code string)
}
