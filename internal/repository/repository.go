package repository

import (
	"context"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByCode(ctx context.Context, code string) (*domain.Room, error)
	Delete(ctx context.Context, code string) error
	List(ctx context.Context) []*domain.Room
	Exists(ctx context.Context, code string) bool
}

// PresenceRepository mirrors connection id -> room placement for O(1)
// sender resolution on every inbound event.
type PresenceRepository interface {
	Set(ctx context.Context, p domain.Presence)
	Get(ctx context.Context, connID string) (domain.Presence, error)
	Delete(ctx context.Context, connID string)
}

// CallRepository indexes each call record under both of its
// connection ids. Registration fails while either side is busy and
// removal always drops both entries together.
type CallRepository interface {
	Register(ctx context.Context, call *domain.Call) error
	Get(ctx context.Context, connID string) (*domain.Call, error)
	SetActive(ctx context.Context, connID string) bool
	Remove(ctx context.Context, connID string) (*domain.Call, error)
	InCall(ctx context.Context, connID string) bool
}

// HealthRepository tracks liveness per websocket connection,
// including connections that never joined a room.
type HealthRepository interface {
	Put(ctx context.Context, rec *domain.ConnectionHealth)
	Touch(ctx context.Context, connID string, at time.Time) bool
	SetName(ctx context.Context, connID, name string)
	SetRoom(ctx context.Context, connID, code string)
	Delete(ctx context.Context, connID string)
	All(ctx context.Context) []domain.ConnectionHealth
	Stale(ctx context.Context, cutoff time.Time) []domain.ConnectionHealth
	Len(ctx context.Context) int
}
