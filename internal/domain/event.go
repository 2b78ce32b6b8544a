package domain

// Event is one frame on the wire: a name plus a structured payload.
// The same envelope is used in both directions.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// Client -> server event names.
const (
	EventCreateRoom = "create-room"
	EventJoinRoom   = "join-room"
	EventLeaveRoom  = "leave-room"

	EventMessage         = "message"
	EventEditMessage     = "edit-message"
	EventDeleteMessage   = "delete-message"
	EventMessageReaction = "message-reaction"
	EventMessageSeen     = "message-seen"

	EventUploadVideo      = "upload-video"
	EventDeleteVideo      = "delete-video"
	EventVideoControl     = "video-control"
	EventShareYouTubeLink = "share-youtube-link"
	EventYouTubeControl   = "youtube-control"

	EventStartCall          = "start-call"
	EventWebRTCAnswer       = "webrtc-answer"
	EventWebRTCICECandidate = "webrtc-ice-candidate"
	EventRejectCall         = "reject-call"
	EventEndCall            = "end-call"

	EventRequestScreenShare = "request-screen-share"
	EventApproveScreenShare = "approve-screen-share"
	EventRejectScreenShare  = "reject-screen-share"
	EventStopScreenShare    = "stop-screen-share"

	EventUploadPlaylistMusic = "upload-playlist-music"
	EventRequestDeleteMusic  = "request-delete-music"
	EventConfirmDeleteMusic  = "confirm-delete-music"

	EventHeartbeatAck = "heartbeat-ack"
)

// Server -> client event names. Relay events (webrtc-answer,
// webrtc-ice-candidate, video-control, youtube-control, message)
// reuse the inbound name.
const (
	EventConnected = "connected"

	EventRoomCreated    = "room-created"
	EventRoomJoined     = "room-joined"
	EventUserJoined     = "user-joined"
	EventUserLeft       = "user-left"
	EventUserListUpdate = "user-list-update"

	EventMessageEdited          = "message-edited"
	EventMessageDeleted         = "message-deleted"
	EventMessageReactionUpdated = "message-reaction-updated"
	EventMessageSeenUpdated     = "message-seen-updated"

	EventVideoUploaded      = "video-uploaded"
	EventVideoDeleted       = "video-deleted"
	EventYouTubeVideoShared = "youtube-video-shared"

	EventIncomingCall = "incoming-call"
	EventICEServers   = "ice-servers"
	EventCallRejected = "call-rejected"
	EventCallEnded    = "call-ended"
	EventCallError    = "call-error"

	EventScreenShareRequest  = "screen-share-request"
	EventScreenShareApproved = "screen-share-approved"
	EventScreenShareRejected = "screen-share-rejected"
	EventScreenShareStarted  = "screen-share-started"
	EventScreenShareStopped  = "screen-share-stopped"

	EventPlaylistUpdated    = "playlist-updated"
	EventMusicDeleteRequest = "music-delete-request"
	EventMusicDeleted       = "music-deleted"

	EventHeartbeat = "heartbeat"
	EventError     = "error"
)

// MemberInfo is one row of a user-list-update. Call and screen share
// flags are computed at broadcast time.
type MemberInfo struct {
	SocketID      string `json:"socketId"`
	UserName      string `json:"userName"`
	UserPhoto     string `json:"userPhoto,omitempty"`
	Color         string `json:"color"`
	Locale        string `json:"locale,omitempty"`
	IsOwner       bool   `json:"isOwner"`
	InCall        bool   `json:"inCall"`
	SharingScreen bool   `json:"sharingScreen"`
}

type MemberListPayload struct {
	Members []MemberInfo `json:"members"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
