package domain

// Presence mirrors which room a live connection currently sits in so
// every inbound event resolves its sender in one lookup instead of a
// scan over rooms.
type Presence struct {
	ConnID   string
	UserName string
	RoomCode string
}
