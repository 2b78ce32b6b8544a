package http

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/service"
)

func (c *SessionController) handleStartCall(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		TargetUserName string          `json:"targetUserName"`
		Type           string          `json:"type"`
		Offer          json.RawMessage `json:"offer"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventStartCall)
		return
	}
	err := c.calls.Start(ctx, service.StartCallParams{
		ConnID:         client.id,
		TargetUserName: req.TargetUserName,
		Kind:           req.Type,
		Offer:          req.Offer,
	})
	if err != nil {
		c.failCall(client, err)
	}
}

func (c *SessionController) handleWebRTCAnswer(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		Answer json.RawMessage `json:"answer"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventWebRTCAnswer)
		return
	}
	c.calls.Answer(ctx, client.id, req.Answer)
}

func (c *SessionController) handleWebRTCCandidate(ctx context.Context, client *wsClient, data json.RawMessage) {
	var req struct {
		Candidate json.RawMessage `json:"candidate"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, domain.EventWebRTCICECandidate)
		return
	}
	c.calls.Candidate(ctx, client.id, req.Candidate)
}
