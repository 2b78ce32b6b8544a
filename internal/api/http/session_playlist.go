package http

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/service"
)

func (c *SessionController) handleUploadMusic(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		MusicData string `json:"musicData"`
		FileName  string `json:"fileName"`
		FileSize  int64  `json:"fileSize"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventUploadPlaylistMusic)
		return
	}
	err := c.playlists.Upload(ctx, service.UploadTrackParams{
		ConnID:   client.id,
		Data:     req.MusicData,
		FileName: req.FileName,
		FileSize: req.FileSize,
	})
	if err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleRequestDeleteMusic(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		TargetUserName string `json:"targetUserName"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventRequestDeleteMusic)
		return
	}
	if err := c.playlists.RequestDelete(ctx, client.id, req.TargetUserName); err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleConfirmDeleteMusic(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		RequesterName string `json:"requesterName"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventConfirmDeleteMusic)
		return
	}
	c.playlists.ConfirmDelete(ctx, client.id, req.RequesterName)
}
