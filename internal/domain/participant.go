package domain

import (
	"hash/fnv"
	"time"
)

// participantColors is the palette the web client renders for avatars
// and chat names.
var participantColors = []string{
	"#e53e3e", "#dd6b20", "#d69e2e", "#38a169", "#319795",
	"#3182ce", "#5a67d8", "#805ad5", "#d53f8c", "#718096",
}

// Participant is an active room member bound to a single websocket
// connection. The send hook enqueues on the connection's outbound
// queue and reports false when the queue is full or already closed.
type Participant struct {
	ConnID   string
	Name     string
	Photo    string
	Color    string
	Locale   string
	IsOwner  bool
	JoinedAt time.Time

	send func(Event) bool
}

func NewParticipant(connID, name, photo, locale string, isOwner bool, send func(Event) bool) *Participant {
	return &Participant{
		ConnID:   connID,
		Name:     name,
		Photo:    photo,
		Color:    ColorFor(name),
		Locale:   locale,
		IsOwner:  isOwner,
		JoinedAt: time.Now().UTC(),
		send:     send,
	}
}

// Enqueue offers an event to the participant's connection without
// blocking. A slow consumer loses events rather than stalling the room.
func (p *Participant) Enqueue(event Event) bool {
	if p.send == nil {
		return false
	}
	return p.send(event)
}

// Info renders the participant as a wire member entry. InCall and
// SharingScreen are owned by other components and left for the caller.
func (p *Participant) Info() MemberInfo {
	return MemberInfo{
		SocketID:  p.ConnID,
		UserName:  p.Name,
		UserPhoto: p.Photo,
		Color:     p.Color,
		Locale:    p.Locale,
		IsOwner:   p.IsOwner,
	}
}

// ColorFor maps a display name onto the client palette. The FNV hash
// keeps the color stable across rejoins under the same name.
func ColorFor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return participantColors[h.Sum32()%uint32(len(participantColors))]
}
