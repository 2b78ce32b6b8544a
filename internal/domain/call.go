package domain

import (
	"time"

	"github.com/pion/webrtc/v3"
)

type CallStatus string

const (
	CallRinging CallStatus = "ringing"
	CallActive  CallStatus = "active"
)

const (
	CallKindAudio = "audio"
	CallKindVideo = "video"
)

// Call is one pending or active one-to-one call. A record lives in
// the call index under both connection ids; Status changes under the
// index lock.
type Call struct {
	CallerConn string
	CallerName string
	CalleeConn string
	CalleeName string
	Kind       string
	Status     CallStatus
	StartedAt  time.Time
}

// Counterpart resolves the other side of the call for one of its two
// connections.
func (c *Call) Counterpart(connID string) (string, bool) {
	switch connID {
	case c.CallerConn:
		return c.CalleeConn, true
	case c.CalleeConn:
		return c.CallerConn, true
	}
	return "", false
}

// ICEServersFromURLs renders configured STUN/TURN URLs in the shape a
// browser RTCPeerConnection accepts.
func ICEServersFromURLs(urls []string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, raw := range urls {
		if raw == "" {
			continue
		}
		servers = append(servers, webrtc.ICEServer{URLs: []string{raw}})
	}
	return servers
}
