package domain

import "time"

// PlaylistEntry is one uploaded track. Entries accumulate per member
// name and are only removed list-at-a-time through the delete
// handshake.
type PlaylistEntry struct {
	Owner      string
	Data       string
	FileName   string
	FileSize   int64
	UploadedAt time.Time
}

type PlaylistEntryView struct {
	UserName  string `json:"userName"`
	MusicData string `json:"musicData"`
	FileName  string `json:"fileName"`
	FileSize  int64  `json:"fileSize,omitempty"`
	Time      string `json:"time"`
}

func (e PlaylistEntry) View() PlaylistEntryView {
	return PlaylistEntryView{
		UserName:  e.Owner,
		MusicData: e.Data,
		FileName:  e.FileName,
		FileSize:  e.FileSize,
		Time:      e.UploadedAt.Format("15:04"),
	}
}
