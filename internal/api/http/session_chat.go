package http

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/service"
)

func (c *SessionController) handleMessage(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		Text     string `json:"text"`
		Type     string `json:"type"`
		FileURL  string `json:"fileUrl"`
		FileName string `json:"fileName"`
		FileSize int64  `json:"fileSize"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventMessage)
		return
	}
	err := c.chat.Post(ctx, client.id, service.PostMessageParams{
		Text:     req.Text,
		Kind:     req.Type,
		FileURL:  req.FileURL,
		FileName: req.FileName,
		FileSize: req.FileSize,
	})
	if err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleEditMessage(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
		NewText   string `json:"newText"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventEditMessage)
		return
	}
	if err := c.chat.Edit(ctx, client.id, req.MessageID, req.NewText); err != nil {
		c.fail(client, err)
	}
}

func (c *SessionController) handleDeleteMessage(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventDeleteMessage)
		return
	}
	c.chat.Delete(ctx, client.id, req.MessageID)
}

func (c *SessionController) handleMessageReaction(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
		Reaction  string `json:"reaction"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventMessageReaction)
		return
	}
	c.chat.React(ctx, client.id, req.MessageID, req.Reaction)
}

func (c *SessionController) handleMessageSeen(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		MessageID string `json:"messageId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventMessageSeen)
		return
	}
	c.chat.MarkSeen(ctx, client.id, req.MessageID)
}
