package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRoomAssignsCodeAndOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	room, owner, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "conn-1",
		RoomName: "movie night",
		UserName: "alice",
		Send:     newSink().send,
	})
	require.NoError(t, err)

	assert.Regexp(t, "^[A-Z0-9]{6}$", room.Code)
	assert.Equal(t, "movie night", room.Name)
	assert.Equal(t, "alice", room.OwnerName)
	assert.True(t, owner.IsOwner)
	assert.True(t, room.IsOwnerConn("conn-1"))
	assert.Equal(t, 1, room.MemberCount())
	assert.NotEmpty(t, owner.Color)

	got, err := f.roomSvc.GetRoom(ctx, room.Code)
	require.NoError(t, err)
	assert.Same(t, room, got)
}

func TestCreateRoomValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{ConnID: "c1", RoomName: "   ", UserName: "alice"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = f.roomSvc.CreateRoom(ctx, CreateRoomParams{ConnID: "c1", RoomName: "movie", UserName: ""})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, _, err = f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "c1",
		RoomName: strings.Repeat("x", maxRoomNameLength+1),
		UserName: "alice",
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestFailedCreateLeavesCurrentRoomAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roomA, _ := f.createRoom(t, "alice-conn", "alice")

	detached := false
	_, _, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "alice-conn",
		RoomName: "   ",
		UserName: "alice",
		Send:     newSink().send,
		Detach:   func() { detached = true },
	})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.False(t, detached)
	assert.Equal(t, 1, roomA.MemberCount())

	// a create that goes through leaves the old room first
	roomB, _, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "alice-conn",
		RoomName: "second",
		UserName: "alice",
		Send:     newSink().send,
		Detach: func() {
			detached = true
			f.roomSvc.LeaveRoom(ctx, "alice-conn")
		},
	})
	require.NoError(t, err)
	assert.True(t, detached)
	assert.Equal(t, 0, roomA.MemberCount())
	assert.Equal(t, 1, roomB.MemberCount())
}

func TestJoinRoomDeliversStateAndNotifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, ownerSink := f.createRoom(t, "owner-conn", "alice")

	require.NoError(t, f.chatSvc.Post(ctx, "owner-conn", PostMessageParams{Text: "hello"}))
	ownerSink.drain()

	joiner := newSink()
	got, member, state, err := f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID:   "bob-conn",
		RoomCode: "  " + strings.ToLower(room.Code) + " ",
		UserName: "bob",
		Send:     joiner.send,
	})
	require.NoError(t, err)
	assert.Same(t, room, got)
	assert.False(t, member.IsOwner)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, "hello", state.Messages[0].Text)
	assert.Nil(t, state.Video)
	assert.Nil(t, state.ScreenShare)

	ev := ownerSink.nextNamed(t, domain.EventUserJoined)
	info, ok := ev.Data.(domain.MemberInfo)
	require.True(t, ok)
	assert.Equal(t, "bob", info.UserName)
	ownerSink.nextNamed(t, domain.EventUserListUpdate)

	// the joiner already has everything in room-joined, no broadcasts
	assert.Empty(t, joiner.names())
}

func TestJoinRoomPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "owner-conn",
		RoomName: "private",
		UserName: "alice",
		Password: "s3cret",
		Send:     newSink().send,
	})
	require.NoError(t, err)
	assert.True(t, room.HasSecret())

	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "bob-conn", RoomCode: room.Code, UserName: "bob", Password: "wrong", Send: newSink().send,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "bob-conn", RoomCode: room.Code, UserName: "bob", Password: "s3cret", Send: newSink().send,
	})
	require.NoError(t, err)
}

func TestJoinRoomRejectsTakenName(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")

	_, _, _, err := f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "x-conn", RoomCode: room.Code, UserName: "alice", Send: newSink().send,
	})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestJoinRoomUnknownCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, _, _, err := f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "x-conn", RoomCode: "NOPE42", UserName: "bob", Send: newSink().send,
	})
	require.ErrorIs(t, err, ErrRoomNotFound)
}

func TestFailedJoinLeavesCurrentRoomAlone(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	roomA, _ := f.createRoom(t, "alice-conn", "alice")
	roomB, _, err := f.roomSvc.CreateRoom(ctx, CreateRoomParams{
		ConnID:   "bob-conn",
		RoomName: "private",
		UserName: "bob",
		Password: "s3cret",
		Send:     newSink().send,
	})
	require.NoError(t, err)

	detached := false
	detach := func() { detached = true }

	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "alice-conn", RoomCode: roomB.Code, UserName: "alice",
		Password: "wrong", Send: newSink().send, Detach: detach,
	})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "alice-conn", RoomCode: "NOPE42", UserName: "alice",
		Send: newSink().send, Detach: detach,
	})
	require.ErrorIs(t, err, ErrRoomNotFound)

	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "alice-conn", RoomCode: roomB.Code, UserName: "bob",
		Password: "s3cret", Send: newSink().send, Detach: detach,
	})
	require.ErrorIs(t, err, ErrInvalidInput)

	// none of the rejected joins touched alice's current room
	assert.False(t, detached)
	assert.Equal(t, 1, roomA.MemberCount())
	require.NoError(t, f.chatSvc.Post(ctx, "alice-conn", PostMessageParams{Text: "still here"}))

	// an admitted join leaves the old room before landing in the new one
	_, _, _, err = f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "alice-conn", RoomCode: roomB.Code, UserName: "alice",
		Password: "s3cret", Send: newSink().send,
		Detach: func() {
			detached = true
			f.roomSvc.LeaveRoom(ctx, "alice-conn")
		},
	})
	require.NoError(t, err)
	assert.True(t, detached)
	assert.Equal(t, 0, roomA.MemberCount())
	assert.Equal(t, 2, roomB.MemberCount())
}

func TestLeaveRoomNotifiesOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, ownerSink := f.createRoom(t, "owner-conn", "alice")
	f.join(t, room, "bob-conn", "bob")
	ownerSink.drain()

	f.roomSvc.LeaveRoom(ctx, "bob-conn")

	ev := ownerSink.nextNamed(t, domain.EventUserLeft)
	info := ev.Data.(domain.MemberInfo)
	assert.Equal(t, "bob", info.UserName)
	ownerSink.nextNamed(t, domain.EventUserListUpdate)
	assert.Equal(t, 1, room.MemberCount())

	// a second leave for the same connection is a no-op
	f.roomSvc.LeaveRoom(ctx, "bob-conn")
}

func TestOwnerRejoinReclaimsControl(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn-1", "alice")
	f.join(t, room, "bob-conn", "bob")

	f.roomSvc.LeaveRoom(ctx, "owner-conn-1")
	assert.False(t, room.IsOwnerConn("owner-conn-1"))
	assert.Empty(t, room.OwnerConn())

	// owner-gated operations stay locked while the owner is away
	err := f.roomSvc.SetVideo(ctx, "bob-conn", "data:video/mp4;base64,AAAA", "movie")
	require.ErrorIs(t, err, ErrUnauthorized)

	f.join(t, room, "owner-conn-2", "alice")
	assert.True(t, room.IsOwnerConn("owner-conn-2"))
	require.NoError(t, f.roomSvc.SetVideo(ctx, "owner-conn-2", "data:video/mp4;base64,AAAA", "movie"))
}

func TestEmptyRoomReapedAfterGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")

	f.roomSvc.LeaveRoom(ctx, "owner-conn")
	require.Eventually(t, func() bool {
		return !f.rooms.Exists(ctx, room.Code)
	}, time.Second, 5*time.Millisecond)
}

func TestRejoinWithinGraceKeepsRoom(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")

	f.roomSvc.LeaveRoom(ctx, "owner-conn")
	f.join(t, room, "bob-conn", "bob")

	time.Sleep(3 * f.cfg.RoomGracePeriod)
	assert.True(t, f.rooms.Exists(ctx, room.Code))
}

func TestReapSkipsRoomRejoinedAfterGrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")

	// emptiness is already past the grace age when a rejoin lands,
	// squeezing in just before the reaper fires
	room.RemoveMember("owner-conn")
	room.MarkEmpty(time.Now().UTC().Add(-2 * f.cfg.RoomGracePeriod))
	f.join(t, room, "bob-conn", "bob")

	f.roomSvc.reapIfEmpty(ctx, room.Code, f.cfg.RoomGracePeriod)

	assert.True(t, f.rooms.Exists(ctx, room.Code))
	// the rejoined member is still fully wired up
	require.NoError(t, f.chatSvc.Post(ctx, "bob-conn", PostMessageParams{Text: "made it"}))
}

func TestJoinClosedRoomRefusedBeforeDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")

	// the reaper has closed the room but not yet dropped it from the
	// registry
	room.RemoveMember("owner-conn")
	room.MarkEmpty(time.Now().UTC().Add(-time.Hour))
	require.True(t, room.CloseIfEmpty(0))

	_, _, _, err := f.roomSvc.JoinRoom(ctx, JoinRoomParams{
		ConnID: "bob-conn", RoomCode: room.Code, UserName: "bob", Send: newSink().send,
	})
	require.ErrorIs(t, err, ErrRoomNotFound)

	// the refused joiner holds no presence and resolves to no room
	_, err = f.presence.Get(ctx, "bob-conn")
	require.ErrorIs(t, err, repository.ErrPresenceNotFound)
	require.ErrorIs(t, f.chatSvc.Post(ctx, "bob-conn", PostMessageParams{Text: "hello"}), ErrRoomNotFound)
}

func TestBackstopSweepDeletesLongEmptyRooms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stale, _ := f.createRoom(t, "conn-1", "alice")
	fresh, _ := f.createRoom(t, "conn-2", "bob")

	// emptied without going through LeaveRoom, so no grace timer ran
	stale.RemoveMember("conn-1")
	stale.MarkEmpty(time.Now().UTC().Add(-2 * f.cfg.EmptyRoomTTL))
	fresh.RemoveMember("conn-2")
	fresh.MarkEmpty(time.Now().UTC())

	f.roomSvc.sweepEmptyRooms(ctx)

	assert.False(t, f.rooms.Exists(ctx, stale.Code))
	assert.True(t, f.rooms.Exists(ctx, fresh.Code))
}

func TestVideoOwnerGating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, ownerSink := f.createRoom(t, "owner-conn", "alice")
	bobSink := f.join(t, room, "bob-conn", "bob")
	ownerSink.drain()

	err := f.roomSvc.SetVideo(ctx, "bob-conn", "data:video/mp4;base64,AAAA", "movie")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.roomSvc.SetVideo(ctx, "owner-conn", "data:video/mp4;base64,AAAA", "movie"))
	ev := bobSink.nextNamed(t, domain.EventVideoUploaded)
	payload, ok := ev.Data.(videoPayload)
	require.True(t, ok)
	assert.Equal(t, domain.VideoKindUpload, payload.Video.Kind)
	assert.Equal(t, "alice", payload.Video.SharedBy)
	assert.False(t, payload.Playback.Playing)
	ownerSink.nextNamed(t, domain.EventVideoUploaded)

	err = f.roomSvc.DeleteVideo(ctx, "bob-conn")
	require.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, f.roomSvc.DeleteVideo(ctx, "owner-conn"))
	bobSink.nextNamed(t, domain.EventVideoDeleted)
	_, has := room.Video()
	assert.False(t, has)

	// deleting again is quietly idempotent
	require.NoError(t, f.roomSvc.DeleteVideo(ctx, "owner-conn"))
}

func TestShareYouTubeLinkOpenToAnyMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, ownerSink := f.createRoom(t, "owner-conn", "alice")
	bobSink := f.join(t, room, "bob-conn", "bob")
	ownerSink.drain()

	require.NoError(t, f.roomSvc.ShareYouTubeLink(ctx, "bob-conn", "https://youtu.be/dQw4w9WgXcQ", "clip"))

	ev := bobSink.nextNamed(t, domain.EventYouTubeVideoShared)
	payload := ev.Data.(videoPayload)
	assert.Equal(t, domain.VideoKindYouTube, payload.Video.Kind)
	assert.Equal(t, "dQw4w9WgXcQ", payload.Video.VideoID)
	assert.Equal(t, "bob", payload.Video.SharedBy)

	err := f.roomSvc.ShareYouTubeLink(ctx, "bob-conn", "https://example.com/watch?v=nope", "clip")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseYouTubeID(t *testing.T) {
	cases := []struct {
		link string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/video", ""},
		{"too short", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseYouTubeID(tc.link), tc.link)
	}
}

func TestApplyPlaybackMergesAndBroadcasts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, ownerSink := f.createRoom(t, "owner-conn", "alice")
	bobSink := f.join(t, room, "bob-conn", "bob")

	require.NoError(t, f.roomSvc.SetVideo(ctx, "owner-conn", "data:video/mp4;base64,AAAA", "movie"))
	ownerSink.drain()
	bobSink.drain()

	playing := true
	seek := 42.5
	require.NoError(t, f.roomSvc.ApplyPlayback(ctx, "owner-conn", domain.PlaybackPatch{
		Playing:     &playing,
		CurrentTime: &seek,
	}, domain.EventVideoControl))

	ev := bobSink.nextNamed(t, domain.EventVideoControl)
	payload := ev.Data.(playbackPayload)
	assert.True(t, payload.Playing)
	assert.Equal(t, 42.5, payload.CurrentTime)
	assert.Equal(t, float64(1), payload.PlaybackRate)
	assert.Equal(t, "alice", payload.By)

	// the controlling owner hears the echo too
	ownerSink.nextNamed(t, domain.EventVideoControl)

	err := f.roomSvc.ApplyPlayback(ctx, "bob-conn", domain.PlaybackPatch{Playing: &playing}, domain.EventVideoControl)
	require.ErrorIs(t, err, ErrUnauthorized)

	err = f.roomSvc.ApplyPlayback(ctx, "owner-conn", domain.PlaybackPatch{}, domain.EventVideoControl)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMembersCarriesCallAndShareFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	room, _ := f.createRoom(t, "owner-conn", "alice")
	f.join(t, room, "bob-conn", "bob")

	require.NoError(t, f.calls.Register(ctx, &domain.Call{
		CallerConn: "owner-conn", CallerName: "alice",
		CalleeConn: "bob-conn", CalleeName: "bob",
		Kind: domain.CallKindVideo, Status: domain.CallRinging,
	}))
	room.SetGrant(&domain.ScreenShareGrant{ConnID: "bob-conn", UserName: "bob", StartedAt: time.Now().UTC()})

	members := f.roomSvc.Members(ctx, room.Code)
	require.Len(t, members, 2)
	assert.Equal(t, "alice", members[0].UserName)
	assert.True(t, members[0].IsOwner)
	assert.True(t, members[0].InCall)
	assert.False(t, members[0].SharingScreen)
	assert.Equal(t, "bob", members[1].UserName)
	assert.True(t, members[1].InCall)
	assert.True(t, members[1].SharingScreen)
}
