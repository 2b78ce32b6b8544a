package domain

import "time"

// ScreenShareRequest is a pending ask awaiting the room owner's
// decision. Requests that are never decided are purged after a TTL.
type ScreenShareRequest struct {
	ConnID      string
	UserName    string
	RoomCode    string
	RequestedAt time.Time
}

// ScreenShareGrant marks the holder of a room's single share slot.
// A grant is immutable once installed.
type ScreenShareGrant struct {
	ConnID    string    `json:"socketId"`
	UserName  string    `json:"userName"`
	StartedAt time.Time `json:"startedAt"`
}
