package domain

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const (
	MessageKindText = "text"
	MessageKindFile = "file"
)

// Message is one chat entry in a room log. Mutable fields are guarded
// by the owning room's lock; the struct itself carries no locking.
type Message struct {
	ID        string
	Author    string
	Text      string
	Kind      string
	FileURL   string
	FileName  string
	FileSize  int64
	SentAt    time.Time
	Clock     string
	Edited    bool
	EditedAt  time.Time
	Deleted   bool
	DeletedAt time.Time
	Reactions map[string][]string
	SeenBy    []string
}

// NewMessage builds a chat message with the composite id the client
// uses for addressing: unix millis plus a short random suffix.
func NewMessage(author, text, kind, fileURL, fileName string, fileSize int64) *Message {
	now := time.Now()
	return &Message{
		ID:        newMessageID(now),
		Author:    author,
		Text:      text,
		Kind:      kind,
		FileURL:   fileURL,
		FileName:  fileName,
		FileSize:  fileSize,
		SentAt:    now.UTC(),
		Clock:     now.Format("15:04"),
		Reactions: make(map[string][]string),
	}
}

func newMessageID(now time.Time) string {
	suffix := make([]byte, 3)
	_, _ = rand.Read(suffix)
	return fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(suffix))
}

// Edit replaces the text when the caller authored the message and it
// has not been deleted.
func (m *Message) Edit(author, text string) bool {
	if m.Author != author || m.Deleted {
		return false
	}
	m.Text = text
	m.Edited = true
	m.EditedAt = time.Now().UTC()
	return true
}

// MarkDeleted flags the entry. The content stays in the log and is
// blanked at render time, keeping the id addressable.
func (m *Message) MarkDeleted(author string) bool {
	if m.Author != author || m.Deleted {
		return false
	}
	m.Deleted = true
	m.DeletedAt = time.Now().UTC()
	return true
}

// ToggleReaction flips one user's reaction. Reapplying the same emoji
// removes it; a different emoji replaces the previous one, so each
// participant holds at most one reaction per message.
func (m *Message) ToggleReaction(user, emoji string) {
	if m.removeReaction(user, emoji) {
		return
	}
	for other := range m.Reactions {
		if m.removeReaction(user, other) {
			break
		}
	}
	m.Reactions[emoji] = append(m.Reactions[emoji], user)
}

func (m *Message) removeReaction(user, emoji string) bool {
	users := m.Reactions[emoji]
	for i, u := range users {
		if u != user {
			continue
		}
		users = append(users[:i], users[i+1:]...)
		if len(users) == 0 {
			delete(m.Reactions, emoji)
		} else {
			m.Reactions[emoji] = users
		}
		return true
	}
	return false
}

// MarkSeen records a reader at most once.
func (m *Message) MarkSeen(user string) {
	for _, u := range m.SeenBy {
		if u == user {
			return
		}
	}
	m.SeenBy = append(m.SeenBy, user)
}

// MessageView is the wire form of a message. Maps and slices are
// copied so a view stays stable after later mutations of the log.
type MessageView struct {
	ID        string              `json:"id"`
	UserName  string              `json:"userName"`
	Text      string              `json:"text"`
	Type      string              `json:"type"`
	FileURL   string              `json:"fileUrl,omitempty"`
	FileName  string              `json:"fileName,omitempty"`
	FileSize  int64               `json:"fileSize,omitempty"`
	Time      string              `json:"time"`
	SentAt    time.Time           `json:"sentAt"`
	Edited    bool                `json:"edited"`
	EditedAt  *time.Time          `json:"editedAt,omitempty"`
	Deleted   bool                `json:"deleted"`
	DeletedAt *time.Time          `json:"deletedAt,omitempty"`
	Reactions map[string][]string `json:"reactions"`
	SeenBy    []string            `json:"seenBy"`
}

func (m *Message) View() MessageView {
	v := MessageView{
		ID:        m.ID,
		UserName:  m.Author,
		Text:      m.Text,
		Type:      m.Kind,
		FileURL:   m.FileURL,
		FileName:  m.FileName,
		FileSize:  m.FileSize,
		Time:      m.Clock,
		SentAt:    m.SentAt,
		Edited:    m.Edited,
		Deleted:   m.Deleted,
		Reactions: make(map[string][]string, len(m.Reactions)),
		SeenBy:    make([]string, len(m.SeenBy)),
	}
	if m.Edited {
		at := m.EditedAt
		v.EditedAt = &at
	}
	if m.Deleted {
		at := m.DeletedAt
		v.DeletedAt = &at
		v.Text = ""
		v.FileURL = ""
		v.FileName = ""
		v.FileSize = 0
	}
	for emoji, users := range m.Reactions {
		v.Reactions[emoji] = append([]string(nil), users...)
	}
	copy(v.SeenBy, m.SeenBy)
	return v
}
