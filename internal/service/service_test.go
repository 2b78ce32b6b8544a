package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
	"github.com/stretchr/testify/require"
)

// sink collects the events delivered to one fake connection.
type sink struct {
	ch chan domain.Event
}

func newSink() *sink {
	return &sink{ch: make(chan domain.Event, 64)}
}

func (s *sink) send(event domain.Event) bool {
	select {
	case s.ch <- event:
		return true
	default:
		return false
	}
}

// nextNamed pops events until one carries the wanted name, failing
// the test if it never shows up.
func (s *sink) nextNamed(t *testing.T, name string) domain.Event {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-s.ch:
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %q never delivered", name)
		}
	}
}

func (s *sink) drain() {
	for {
		select {
		case <-s.ch:
		default:
			return
		}
	}
}

// names drains the queue and returns the event names seen, for
// asserting that nothing (or nothing unexpected) arrived.
func (s *sink) names() []string {
	var out []string
	for {
		select {
		case ev := <-s.ch:
			out = append(out, ev.Name)
		default:
			return out
		}
	}
}

func testSessionConfig() config.SessionConfig {
	return config.SessionConfig{
		HeartbeatInterval:   10 * time.Millisecond,
		HealthSweepInterval: 20 * time.Millisecond,
		HeartbeatTimeout:    40 * time.Millisecond,
		RoomGracePeriod:     30 * time.Millisecond,
		RoomSweepInterval:   time.Hour,
		EmptyRoomTTL:        time.Hour,
		ShareRequestTTL:     time.Minute,
		ShareSweepInterval:  time.Minute,
		HistoryLimit:        100,
		ResyncLimit:         50,
		EventsPerSecond:     25,
		EventBurst:          50,
		ProbeWorkers:        2,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture wires the whole service stack over fresh in-memory
// repositories.
type fixture struct {
	rooms    *repository.InMemoryRoomRepository
	presence *repository.InMemoryPresenceRepository
	calls    *repository.InMemoryCallRepository
	health   *repository.InMemoryHealthRepository

	roomSvc   *RoomService
	chatSvc   *ChatService
	callSvc   *CallService
	screenSvc *ScreenShareService
	playSvc   *PlaylistService
	healthSvc *HealthService

	cfg config.SessionConfig
}

func newFixture(t *testing.T) *fixture {
	return newFixtureCfg(t, testSessionConfig())
}

func newFixtureCfg(t *testing.T, cfg config.SessionConfig) *fixture {
	t.Helper()
	log := discardLogger()

	rooms := repository.NewInMemoryRoomRepository()
	presence := repository.NewInMemoryPresenceRepository()
	calls := repository.NewInMemoryCallRepository()
	health := repository.NewInMemoryHealthRepository()

	roomSvc := NewRoomService(rooms, presence, calls, health, cfg, log)
	f := &fixture{
		rooms:     rooms,
		presence:  presence,
		calls:     calls,
		health:    health,
		roomSvc:   roomSvc,
		chatSvc:   NewChatService(rooms, presence, cfg, log),
		callSvc:   NewCallService(calls, rooms, presence, roomSvc, []string{"stun:stun.example.org:3478"}, log),
		screenSvc: NewScreenShareService(rooms, presence, roomSvc, cfg, log),
		playSvc:   NewPlaylistService(rooms, presence, log),
		healthSvc: NewHealthService(health, cfg, log),
		cfg:       cfg,
	}
	t.Cleanup(f.healthSvc.Stop)
	return f
}

// createRoom makes a room with an owner connection and returns the
// room plus the owner's sink.
func (f *fixture) createRoom(t *testing.T, connID, userName string) (*domain.Room, *sink) {
	t.Helper()
	sk := newSink()
	room, _, err := f.roomSvc.CreateRoom(context.Background(), CreateRoomParams{
		ConnID:   connID,
		RoomName: "movie night",
		UserName: userName,
		Locale:   "en",
		Send:     sk.send,
	})
	require.NoError(t, err)
	return room, sk
}

func (f *fixture) join(t *testing.T, room *domain.Room, connID, userName string) *sink {
	t.Helper()
	sk := newSink()
	_, _, _, err := f.roomSvc.JoinRoom(context.Background(), JoinRoomParams{
		ConnID:   connID,
		RoomCode: room.Code,
		UserName: userName,
		Locale:   "en",
		Send:     sk.send,
	})
	require.NoError(t, err)
	return sk
}
