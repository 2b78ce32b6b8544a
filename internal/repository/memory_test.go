package repository

import (
	"context"
	"testing"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRoomRepository()
	room := domain.NewRoom("ABC123", "movie night", "alice", nil)

	require.NoError(t, repo.Create(ctx, room))
	require.ErrorIs(t, repo.Create(ctx, domain.NewRoom("ABC123", "other", "bob", nil)), ErrRoomCodeExists)

	got, err := repo.GetByCode(ctx, "ABC123")
	require.NoError(t, err)
	assert.Same(t, room, got)
	assert.True(t, repo.Exists(ctx, "ABC123"))
	assert.Len(t, repo.List(ctx), 1)

	require.NoError(t, repo.Delete(ctx, "ABC123"))
	require.ErrorIs(t, repo.Delete(ctx, "ABC123"), ErrRoomNotFound)
	_, err = repo.GetByCode(ctx, "ABC123")
	require.ErrorIs(t, err, ErrRoomNotFound)
	assert.False(t, repo.Exists(ctx, "ABC123"))
}

func TestRoomRepositoryHonorsContext(t *testing.T) {
	repo := NewInMemoryRoomRepository()
	require.NoError(t, repo.Create(context.Background(), domain.NewRoom("ABC123", "movie", "alice", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.GetByCode(ctx, "ABC123")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, repo.Create(ctx, domain.NewRoom("XYZ789", "other", "bob", nil)), context.Canceled)
	assert.False(t, repo.Exists(ctx, "XYZ789"))
}

func TestPresenceRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryPresenceRepository()

	_, err := repo.Get(ctx, "conn-1")
	require.ErrorIs(t, err, ErrPresenceNotFound)

	repo.Set(ctx, domain.Presence{ConnID: "conn-1", UserName: "alice", RoomCode: "ABC123"})
	p, err := repo.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", p.UserName)
	assert.Equal(t, "ABC123", p.RoomCode)

	// re-placing the same connection overwrites
	repo.Set(ctx, domain.Presence{ConnID: "conn-1", UserName: "alice", RoomCode: "XYZ789"})
	p, err = repo.Get(ctx, "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "XYZ789", p.RoomCode)

	repo.Delete(ctx, "conn-1")
	_, err = repo.Get(ctx, "conn-1")
	require.ErrorIs(t, err, ErrPresenceNotFound)
}

func TestCallRepositoryDoubleIndex(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryCallRepository()
	call := &domain.Call{
		CallerConn: "a", CallerName: "alice",
		CalleeConn: "b", CalleeName: "bob",
		Kind: domain.CallKindVideo, Status: domain.CallRinging,
	}
	require.NoError(t, repo.Register(ctx, call))

	fromCaller, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, call, fromCaller)
	fromCallee, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Same(t, call, fromCallee)

	assert.True(t, repo.InCall(ctx, "a"))
	assert.True(t, repo.InCall(ctx, "b"))
	assert.False(t, repo.InCall(ctx, "c"))

	require.ErrorIs(t, repo.Register(ctx, &domain.Call{CallerConn: "a", CalleeConn: "c"}), ErrCallerBusy)
	require.ErrorIs(t, repo.Register(ctx, &domain.Call{CallerConn: "c", CalleeConn: "b"}), ErrCalleeBusy)
	// the failed registrations left no entries behind
	assert.False(t, repo.InCall(ctx, "c"))

	assert.True(t, repo.SetActive(ctx, "b"))
	assert.Equal(t, domain.CallActive, call.Status)

	// removing via either side drops both entries
	removed, err := repo.Remove(ctx, "b")
	require.NoError(t, err)
	assert.Same(t, call, removed)
	assert.False(t, repo.InCall(ctx, "a"))
	assert.False(t, repo.InCall(ctx, "b"))

	_, err = repo.Remove(ctx, "a")
	require.ErrorIs(t, err, ErrCallNotFound)
	assert.False(t, repo.SetActive(ctx, "a"))
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, ErrCallNotFound)
}

func TestHealthRepositoryStaleSelection(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryHealthRepository()
	now := time.Now().UTC()

	repo.Put(ctx, &domain.ConnectionHealth{ConnID: "fresh", Name: domain.AnonymousName, LastBeat: now})
	repo.Put(ctx, &domain.ConnectionHealth{ConnID: "stale", Name: domain.AnonymousName, LastBeat: now.Add(-time.Minute)})
	assert.Equal(t, 2, repo.Len(ctx))

	stale := repo.Stale(ctx, now.Add(-30*time.Second))
	require.Len(t, stale, 1)
	assert.Equal(t, "stale", stale[0].ConnID)

	assert.True(t, repo.Touch(ctx, "stale", now))
	assert.Empty(t, repo.Stale(ctx, now.Add(-30*time.Second)))
	assert.False(t, repo.Touch(ctx, "ghost", now))

	repo.SetName(ctx, "fresh", "alice")
	repo.SetRoom(ctx, "fresh", "ABC123")
	var found bool
	for _, rec := range repo.All(ctx) {
		if rec.ConnID == "fresh" {
			found = true
			assert.Equal(t, "alice", rec.Name)
			assert.Equal(t, "ABC123", rec.RoomCode)
		}
	}
	assert.True(t, found)

	repo.Delete(ctx, "fresh")
	assert.Equal(t, 1, repo.Len(ctx))
}
