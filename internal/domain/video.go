package domain

import "time"

const (
	VideoKindUpload  = "upload"
	VideoKindYouTube = "youtube"
)

// VideoDescriptor names the media a room currently shares. Uploaded
// files travel inline as data URLs; YouTube entries carry the video id.
// A descriptor is immutable once installed, replacement swaps the
// whole value.
type VideoDescriptor struct {
	Kind     string    `json:"kind"`
	Source   string    `json:"source,omitempty"`
	VideoID  string    `json:"videoId,omitempty"`
	Title    string    `json:"title,omitempty"`
	SharedBy string    `json:"sharedBy"`
	SharedAt time.Time `json:"sharedAt"`
}

// PlaybackState is the authoritative transport position of the shared
// video, merged from owner control events.
type PlaybackState struct {
	Playing      bool      `json:"playing"`
	CurrentTime  float64   `json:"currentTime"`
	PlaybackRate float64   `json:"playbackRate"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PlaybackPatch carries only the fields a control event actually set.
// Nil fields leave the current value untouched.
type PlaybackPatch struct {
	Playing      *bool    `json:"playing"`
	CurrentTime  *float64 `json:"currentTime"`
	PlaybackRate *float64 `json:"playbackRate"`
}
