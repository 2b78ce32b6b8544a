package http

import (
	"context"
	"encoding/json"

	"github.com/medetbek/kinotalk/internal/domain"
)

func (c *SessionController) handleScreenDecision(ctx context.Context, client *wsClient, data json.RawMessage, approve bool) {
	event := domain.EventRejectScreenShare
	if approve {
		event = domain.EventApproveScreenShare
	}

	var req struct {
		RequesterSocketID string `json:"requesterSocketId"`
	}
	if err := json.Unmarshal(data, &req); err != nil {
		c.badPayload(client, event)
		return
	}

	if approve {
		c.screen.Approve(ctx, client.id, req.RequesterSocketID)
	} else {
		c.screen.Reject(ctx, client.id, req.RequesterSocketID)
	}
}
