package domain

import "time"

// AnonymousName labels a connection that has not joined a room yet.
const AnonymousName = "Anonymous"

// ConnectionHealth tracks one websocket connection for the liveness
// monitor, independent of room membership. Enqueue and Close are
// installed by the gateway when the connection is accepted; both stay
// safe to call after the connection is gone.
type ConnectionHealth struct {
	ConnID      string
	Name        string
	RoomCode    string
	ConnectedAt time.Time
	LastBeat    time.Time
	Enqueue     func(Event) bool
	Close       func()
}
