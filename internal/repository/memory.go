package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
)

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomCodeExists   = errors.New("room code already exists")
	ErrPresenceNotFound = errors.New("connection not placed in a room")
	ErrCallNotFound     = errors.New("call not found")
	ErrCallerBusy       = errors.New("caller already in a call")
	ErrCalleeBusy       = errors.New("callee already in a call")
)

type InMemoryRoomRepository struct {
	mu    sync.RWMutex
	rooms map[string]*domain.Room
}

func NewInMemoryRoomRepository() *InMemoryRoomRepository {
	return &InMemoryRoomRepository{
		rooms: make(map[string]*domain.Room),
	}
}

func (r *InMemoryRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[room.Code]; ok {
		return ErrRoomCodeExists
	}

	r.rooms[room.Code] = room
	return nil
}

func (r *InMemoryRoomRepository) GetByCode(ctx context.Context, code string) (*domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return room, nil
}

func (r *InMemoryRoomRepository) Delete(ctx context.Context, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[code]; !ok {
		return ErrRoomNotFound
	}

	delete(r.rooms, code)
	return nil
}

func (r *InMemoryRoomRepository) List(ctx context.Context) []*domain.Room {
	if ctx.Err() != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		result = append(result, room)
	}
	return result
}

func (r *InMemoryRoomRepository) Exists(ctx context.Context, code string) bool {
	if ctx.Err() != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[code]
	return ok
}

type InMemoryPresenceRepository struct {
	mu    sync.RWMutex
	conns map[string]domain.Presence
}

func NewInMemoryPresenceRepository() *InMemoryPresenceRepository {
	return &InMemoryPresenceRepository{
		conns: make(map[string]domain.Presence),
	}
}

func (r *InMemoryPresenceRepository) Set(ctx context.Context, p domain.Presence) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[p.ConnID] = p
}

func (r *InMemoryPresenceRepository) Get(ctx context.Context, connID string) (domain.Presence, error) {
	if err := ctx.Err(); err != nil {
		return domain.Presence{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.conns[connID]
	if !ok {
		return domain.Presence{}, ErrPresenceNotFound
	}

	return p, nil
}

func (r *InMemoryPresenceRepository) Delete(ctx context.Context, connID string) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, connID)
}

type InMemoryCallRepository struct {
	mu    sync.RWMutex
	calls map[string]*domain.Call
}

func NewInMemoryCallRepository() *InMemoryCallRepository {
	return &InMemoryCallRepository{
		calls: make(map[string]*domain.Call),
	}
}

// Register stores the record under both connection ids, or neither.
func (r *InMemoryCallRepository) Register(ctx context.Context, call *domain.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.calls[call.CallerConn]; ok {
		return ErrCallerBusy
	}
	if _, ok := r.calls[call.CalleeConn]; ok {
		return ErrCalleeBusy
	}

	r.calls[call.CallerConn] = call
	r.calls[call.CalleeConn] = call
	return nil
}

func (r *InMemoryCallRepository) Get(ctx context.Context, connID string) (*domain.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	call, ok := r.calls[connID]
	if !ok {
		return nil, ErrCallNotFound
	}

	return call, nil
}

func (r *InMemoryCallRepository) SetActive(ctx context.Context, connID string) bool {
	if ctx.Err() != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[connID]
	if !ok {
		return false
	}

	call.Status = domain.CallActive
	return true
}

// Remove drops both entries of the call the connection is part of.
func (r *InMemoryCallRepository) Remove(ctx context.Context, connID string) (*domain.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	call, ok := r.calls[connID]
	if !ok {
		return nil, ErrCallNotFound
	}

	delete(r.calls, call.CallerConn)
	delete(r.calls, call.CalleeConn)
	return call, nil
}

func (r *InMemoryCallRepository) InCall(ctx context.Context, connID string) bool {
	if ctx.Err() != nil {
		return false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.calls[connID]
	return ok
}

type InMemoryHealthRepository struct {
	mu    sync.RWMutex
	conns map[string]*domain.ConnectionHealth
}

func NewInMemoryHealthRepository() *InMemoryHealthRepository {
	return &InMemoryHealthRepository{
		conns: make(map[string]*domain.ConnectionHealth),
	}
}

func (r *InMemoryHealthRepository) Put(ctx context.Context, rec *domain.ConnectionHealth) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[rec.ConnID] = rec
}

func (r *InMemoryHealthRepository) Touch(ctx context.Context, connID string, at time.Time) bool {
	if ctx.Err() != nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[connID]
	if !ok {
		return false
	}

	rec.LastBeat = at
	return true
}

func (r *InMemoryHealthRepository) SetName(ctx context.Context, connID, name string) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.conns[connID]; ok {
		rec.Name = name
	}
}

func (r *InMemoryHealthRepository) SetRoom(ctx context.Context, connID, code string) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.conns[connID]; ok {
		rec.RoomCode = code
	}
}

func (r *InMemoryHealthRepository) Delete(ctx context.Context, connID string) {
	if ctx.Err() != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.conns, connID)
}

// All returns copies so callers read a consistent record without
// holding the table lock.
func (r *InMemoryHealthRepository) All(ctx context.Context) []domain.ConnectionHealth {
	if ctx.Err() != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.ConnectionHealth, 0, len(r.conns))
	for _, rec := range r.conns {
		result = append(result, *rec)
	}
	return result
}

func (r *InMemoryHealthRepository) Stale(ctx context.Context, cutoff time.Time) []domain.ConnectionHealth {
	if ctx.Err() != nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.ConnectionHealth
	for _, rec := range r.conns {
		if rec.LastBeat.Before(cutoff) {
			result = append(result, *rec)
		}
	}
	return result
}

func (r *InMemoryHealthRepository) Len(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
