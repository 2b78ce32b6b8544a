package domain

import (
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrRoomClosed rejects joins into a room the reaper already shut.
	ErrRoomClosed = errors.New("room is closed")
	// ErrNameTaken rejects a second connection under an active member's name.
	ErrNameTaken = errors.New("name is taken")
)

// Room is one watch session: members, chat log, shared video and the
// screen share slot. All mutable state is guarded by mu; methods take
// the lock so callers never touch it directly.
type Room struct {
	mu sync.RWMutex

	Code      string
	Name      string
	OwnerName string
	CreatedAt time.Time

	secretHash []byte
	ownerConn  string
	members    map[string]*Participant
	messages   []*Message
	video      *VideoDescriptor
	playback   PlaybackState
	grant      *ScreenShareGrant
	playlists  map[string][]PlaylistEntry
	emptySince time.Time
	closed     bool
}

func NewRoom(code, name, ownerName string, secretHash []byte) *Room {
	return &Room{
		Code:       code,
		Name:       name,
		OwnerName:  ownerName,
		CreatedAt:  time.Now().UTC(),
		secretHash: secretHash,
		members:    make(map[string]*Participant),
		playlists:  make(map[string][]PlaylistEntry),
		playback:   PlaybackState{PlaybackRate: 1},
	}
}

// HasSecret reports whether joining requires a password. The hash is
// set once at creation and never changes.
func (r *Room) HasSecret() bool {
	return len(r.secretHash) > 0
}

// Authorize checks a join password against the room secret. Rooms
// without a secret admit anyone.
func (r *Room) Authorize(password string) bool {
	if len(r.secretHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(r.secretHash, []byte(password)) == nil
}

// AddMember registers a participant and clears the empty marker. The
// original owner reclaims the owner connection when rejoining. The
// name collision check runs under the same lock as the insert, so two
// racing joins under one name cannot both commit. A second add from
// the connection already holding the name is a resync, not a clash.
func (r *Room) AddMember(p *Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}
	for _, m := range r.members {
		if m.Name == p.Name && m.ConnID != p.ConnID {
			return ErrNameTaken
		}
	}
	r.members[p.ConnID] = p
	r.emptySince = time.Time{}
	if p.IsOwner {
		r.ownerConn = p.ConnID
	}
	return nil
}

// RemoveMember drops a participant by connection id and reports the
// removed entry plus how many members remain.
func (r *Room) RemoveMember(connID string) (*Participant, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.members[connID]
	if !ok {
		return nil, len(r.members)
	}
	delete(r.members, connID)
	if r.ownerConn == connID {
		r.ownerConn = ""
	}
	return p, len(r.members)
}

func (r *Room) Member(connID string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.members[connID]
	return p, ok
}

func (r *Room) MemberByName(name string) (*Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.members {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// MembersSnapshot copies the member list so callers can iterate and
// enqueue without holding the room lock.
func (r *Room) MembersSnapshot() []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Participant, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, p)
	}
	return out
}

// OwnerConn is the connection id the owner joined under last, empty
// while the owner is away. Ownership itself never moves to another
// name.
func (r *Room) OwnerConn() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ownerConn
}

func (r *Room) IsOwnerConn(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return connID != "" && r.ownerConn == connID
}

// Broadcast enqueues an event to every member except the excluded
// connections. It returns how many members had a full queue.
func (r *Room) Broadcast(event Event, exclude ...string) int {
	dropped := 0
	for _, p := range r.MembersSnapshot() {
		if slices.Contains(exclude, p.ConnID) {
			continue
		}
		if !p.Enqueue(event) {
			dropped++
		}
	}
	return dropped
}

// AppendMessage adds to the chat log, evicts the oldest entries
// beyond limit and renders the stored entry for broadcast.
func (r *Room) AppendMessage(m *Message, limit int) MessageView {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	if limit > 0 && len(r.messages) > limit {
		r.messages = r.messages[len(r.messages)-limit:]
	}
	return m.View()
}

// EditMessage rewrites a log entry when id and author match.
func (r *Room) EditMessage(id, author, text string) (MessageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.findMessage(id)
	if !ok || !m.Edit(author, text) {
		return MessageView{}, false
	}
	return m.View(), true
}

// DeleteMessage soft-deletes a log entry when id and author match.
func (r *Room) DeleteMessage(id, author string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.findMessage(id)
	if !ok {
		return false
	}
	return m.MarkDeleted(author)
}

// ToggleReaction flips one user's reaction on a message and returns
// the updated view.
func (r *Room) ToggleReaction(id, user, emoji string) (MessageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.findMessage(id)
	if !ok {
		return MessageView{}, false
	}
	m.ToggleReaction(user, emoji)
	return m.View(), true
}

// MarkMessageSeen records a reader on a message and returns the
// updated view.
func (r *Room) MarkMessageSeen(id, user string) (MessageView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.findMessage(id)
	if !ok {
		return MessageView{}, false
	}
	m.MarkSeen(user)
	return m.View(), true
}

// findMessage scans the log. The log is capped, a linear walk is fine.
func (r *Room) findMessage(id string) (*Message, bool) {
	for _, m := range r.messages {
		if m.ID == id {
			return m, true
		}
	}
	return nil, false
}

// RecentMessages renders the newest n log entries in send order.
func (r *Room) RecentMessages(n int) []MessageView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	start := 0
	if n > 0 && len(r.messages) > n {
		start = len(r.messages) - n
	}
	out := make([]MessageView, 0, len(r.messages)-start)
	for _, m := range r.messages[start:] {
		out = append(out, m.View())
	}
	return out
}

// SetVideo installs a shared video and resets playback to a paused
// start position.
func (r *Room) SetVideo(v *VideoDescriptor) PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.video = v
	r.playback = PlaybackState{PlaybackRate: 1, UpdatedAt: time.Now().UTC()}
	return r.playback
}

// ClearVideo removes the shared video, reporting whether there was
// one.
func (r *Room) ClearVideo() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.video == nil {
		return false
	}
	r.video = nil
	r.playback = PlaybackState{PlaybackRate: 1}
	return true
}

func (r *Room) Video() (*VideoDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.video, r.video != nil
}

// MergePlayback applies the set fields of a control event onto the
// authoritative playback state and returns the merged result.
func (r *Room) MergePlayback(patch PlaybackPatch) PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if patch.Playing != nil {
		r.playback.Playing = *patch.Playing
	}
	if patch.CurrentTime != nil {
		r.playback.CurrentTime = *patch.CurrentTime
	}
	if patch.PlaybackRate != nil {
		r.playback.PlaybackRate = *patch.PlaybackRate
	}
	r.playback.UpdatedAt = time.Now().UTC()
	return r.playback
}

func (r *Room) Playback() PlaybackState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.playback
}

// SetGrant installs the screen share slot holder.
func (r *Room) SetGrant(g *ScreenShareGrant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant = g
}

func (r *Room) Grant() (ScreenShareGrant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.grant == nil {
		return ScreenShareGrant{}, false
	}
	return *r.grant, true
}

// ClearGrant frees the share slot and returns the previous holder.
func (r *Room) ClearGrant() (ScreenShareGrant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grant == nil {
		return ScreenShareGrant{}, false
	}
	prev := *r.grant
	r.grant = nil
	return prev, true
}

// ClearGrantFor frees the slot only when held by the given connection.
func (r *Room) ClearGrantFor(connID string) (ScreenShareGrant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.grant == nil || r.grant.ConnID != connID {
		return ScreenShareGrant{}, false
	}
	prev := *r.grant
	r.grant = nil
	return prev, true
}

// AddTrack appends a playlist entry under the uploader's name.
func (r *Room) AddTrack(e PlaylistEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists[e.Owner] = append(r.playlists[e.Owner], e)
}

// ClearTracks removes one participant's whole list, reporting whether
// anything was there.
func (r *Room) ClearTracks(owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.playlists[owner]) == 0 {
		return false
	}
	delete(r.playlists, owner)
	return true
}

// PlaylistSnapshot renders every per-member list plus the share of
// current members who brought at least one track, as a percentage.
func (r *Room) PlaylistSnapshot() (map[string][]PlaylistEntryView, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string][]PlaylistEntryView, len(r.playlists))
	for owner, list := range r.playlists {
		views := make([]PlaylistEntryView, 0, len(list))
		for _, e := range list {
			views = append(views, e.View())
		}
		out[owner] = views
	}
	progress := 0
	if len(r.members) > 0 {
		withTracks := 0
		for _, p := range r.members {
			if len(r.playlists[p.Name]) > 0 {
				withTracks++
			}
		}
		// rounded to the nearest integer
		progress = (withTracks*100 + len(r.members)/2) / len(r.members)
	}
	return out, progress
}

// MarkEmpty stamps the moment the last member left. A later join
// clears the stamp.
func (r *Room) MarkEmpty(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.members) == 0 {
		r.emptySince = at
	}
}

// EmptySince is zero while the room has members.
func (r *Room) EmptySince() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emptySince
}

// CloseIfEmpty shuts the room when it has sat empty for at least
// minAge, and reports whether it did. Closing and the emptiness check
// share one lock acquisition, so a join that lands first keeps the
// room open and a join that lands after sees ErrRoomClosed. The caller
// unregisters the room only after a true return.
func (r *Room) CloseIfEmpty(minAge time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return true
	}
	if len(r.members) > 0 || r.emptySince.IsZero() {
		return false
	}
	if time.Since(r.emptySince) < minAge {
		return false
	}
	r.closed = true
	return true
}

// RoomState is the snapshot a joining client needs to render the
// room: shared video, playback position, screen share and the chat
// tail.
type RoomState struct {
	Video       *VideoDescriptor  `json:"video,omitempty"`
	Playback    PlaybackState     `json:"playback"`
	ScreenShare *ScreenShareGrant `json:"screenShare,omitempty"`
	Messages    []MessageView     `json:"messages"`
}

// StateSnapshot captures the room under one lock so a join resync is
// internally consistent.
func (r *Room) StateSnapshot(messageLimit int) RoomState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := RoomState{
		Video:    r.video,
		Playback: r.playback,
	}
	if r.grant != nil {
		g := *r.grant
		st.ScreenShare = &g
	}
	start := 0
	if messageLimit > 0 && len(r.messages) > messageLimit {
		start = len(r.messages) - messageLimit
	}
	st.Messages = make([]MessageView, 0, len(r.messages)-start)
	for _, m := range r.messages[start:] {
		st.Messages = append(st.Messages, m.View())
	}
	return st
}
