package http

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/service"
)

type roomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	RoomName string `json:"roomName"`
	JoinLink string `json:"joinLink"`
	SocketID string `json:"socketId"`
	UserName string `json:"userName"`
	Color    string `json:"color"`
}

type roomJoinedPayload struct {
	RoomCode string              `json:"roomCode"`
	RoomName string              `json:"roomName"`
	SocketID string              `json:"socketId"`
	UserName string              `json:"userName"`
	Color    string              `json:"color"`
	IsOwner  bool                `json:"isOwner"`
	Members  []domain.MemberInfo `json:"members"`
	domain.RoomState
}

func (c *SessionController) handleCreateRoom(ctx context.Context, client *wsClient, locale string, data json.RawMessage) {
	var req struct {
		RoomName  string `json:"roomName"`
		UserName  string `json:"userName"`
		UserPhoto string `json:"userPhoto"`
		Password  string `json:"password"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventCreateRoom)
		return
	}

	// creating a room while already in one implicitly leaves the old
	// one; the service detaches only once the create is going through,
	// so a rejected create leaves the current room untouched
	room, member, err := c.rooms.CreateRoom(ctx, service.CreateRoomParams{
		ConnID:    client.id,
		RoomName:  req.RoomName,
		UserName:  req.UserName,
		UserPhoto: req.UserPhoto,
		Locale:    locale,
		Password:  req.Password,
		Send:      client.enqueue,
		Detach:    func() { c.detach(ctx, client.id) },
	})
	if err != nil {
		c.fail(client, err)
		return
	}

	client.enqueue(domain.Event{
		Name: domain.EventRoomCreated,
		Data: roomCreatedPayload{
			RoomCode: room.Code,
			RoomName: room.Name,
			JoinLink: c.joinLink(room.Code),
			SocketID: member.ConnID,
			UserName: member.Name,
			Color:    member.Color,
		},
	})
}

func (c *SessionController) handleJoinRoom(ctx context.Context, client *wsClient, locale string, data json.RawMessage) {
	var req struct {
		RoomCode  string `json:"roomCode"`
		UserName  string `json:"userName"`
		UserPhoto string `json:"userPhoto"`
		Password  string `json:"password"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventJoinRoom)
		return
	}

	room, member, state, err := c.rooms.JoinRoom(ctx, service.JoinRoomParams{
		ConnID:    client.id,
		RoomCode:  req.RoomCode,
		UserName:  req.UserName,
		UserPhoto: req.UserPhoto,
		Locale:    locale,
		Password:  req.Password,
		Send:      client.enqueue,
		Detach:    func() { c.detach(ctx, client.id) },
	})
	if err != nil {
		c.fail(client, err)
		return
	}

	client.enqueue(domain.Event{
		Name: domain.EventRoomJoined,
		Data: roomJoinedPayload{
			RoomCode:  room.Code,
			RoomName:  room.Name,
			SocketID:  member.ConnID,
			UserName:  member.Name,
			Color:     member.Color,
			IsOwner:   member.IsOwner,
			Members:   c.rooms.Members(ctx, room.Code),
			RoomState: state,
		},
	})
}

func (c *SessionController) handleUploadVideo(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		VideoBase64 string `json:"videoBase64"`
		Title       string `json:"title"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventUploadVideo)
		return
	}
	if err := c.rooms.SetVideo(ctx, client.id, req.VideoBase64, req.Title); err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleDeleteVideo(ctx context.Context, client *wsClient) {
	if err := c.rooms.DeleteVideo(ctx, client.id); err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleShareYouTube(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		YouTubeURL string `json:"youtubeUrl"`
		Title      string `json:"title"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventShareYouTubeLink)
		return
	}
	if err := c.rooms.ShareYouTubeLink(ctx, client.id, req.YouTubeURL, req.Title); err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleVideoControl(ctx context.Context, client *wsClient, eventName string, data json.RawMessage) {
	var patch domain.PlaybackPatch
	if err := json.Unmarshal(data, &patch); err != nil {
		c.badPayload(client, eventName)
		return
	}
	if err := c.rooms.ApplyPlayback(ctx, client.id, patch, eventName); err != nil {
		c.fail(client, err)
	}
}
