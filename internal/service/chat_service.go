package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/medetbek/kinotalk/internal/config"
	"github.com/medetbek/kinotalk/internal/domain"
	"github.com/medetbek/kinotalk/internal/repository"
)

const maxChatMessageLength = 4000

type ChatService struct {
	rooms    repository.RoomRepository
	presence repository.PresenceRepository
	cfg      config.SessionConfig
	log      *slog.Logger
}

func NewChatService(
	rooms repository.RoomRepository,
	presence repository.PresenceRepository,
	cfg config.SessionConfig,
	log *slog.Logger,
) *ChatService {
	if log == nil {
		log = slog.Default()
	}
	return &ChatService{
		rooms:    rooms,
		presence: presence,
		cfg:      cfg,
		log:      log,
	}
}

func (s *ChatService) Post(ctx context.Context, connID string, p PostMessageParams) error {
	const op = "service.chat.post"

	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return err
	}

	kind := p.Kind
	if kind == "" {
		kind = domain.MessageKindText
	}
	text := strings.TrimSpace(p.Text)

	switch kind {
	case domain.MessageKindText:
		if text == "" {
			return fmt.Errorf("%w: message text is required", ErrInvalidInput)
		}
		if utf8.RuneCountInString(text) > maxChatMessageLength {
			return fmt.Errorf("%w: message is too long", ErrInvalidInput)
		}
	case domain.MessageKindFile:
		if strings.TrimSpace(p.FileURL) == "" {
			return fmt.Errorf("%w: file url is required", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported message type %q", ErrInvalidInput, kind)
	}

	msg := domain.NewMessage(member.Name, text, kind, p.FileURL, p.FileName, p.FileSize)
	view := room.AppendMessage(msg, s.cfg.HistoryLimit)

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventMessage,
		Data: view,
	})
	s.log.Debug("message posted",
		slog.String("op", op),
		slog.String("room_code", room.Code),
		slog.String("message_id", msg.ID),
		slog.String("type", kind),
	)
	return nil
}

func (s *ChatService) Edit(ctx context.Context, connID, messageID, text string) error {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: message text is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return fmt.Errorf("%w: message is too long", ErrInvalidInput)
	}

	view, ok := room.EditMessage(messageID, member.Name, text)
	if !ok {
		// stale id or someone else's message, nothing to announce
		return nil
	}

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventMessageEdited,
		Data: messageEditedPayload{
			MessageID: view.ID,
			NewText:   view.Text,
			Edited:    true,
			EditedAt:  view.EditedAt,
		},
	})
	return nil
}

func (s *ChatService) Delete(ctx context.Context, connID, messageID string) {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	if !room.DeleteMessage(messageID, member.Name) {
		return
	}

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventMessageDeleted,
		Data: messageDeletedPayload{MessageID: messageID, Deleted: true},
	})
}

func (s *ChatService) React(ctx context.Context, connID, messageID, emoji string) {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}
	if strings.TrimSpace(emoji) == "" {
		return
	}

	view, ok := room.ToggleReaction(messageID, member.Name, emoji)
	if !ok {
		return
	}

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventMessageReactionUpdated,
		Data: messageReactionPayload{MessageID: view.ID, Reactions: view.Reactions},
	})
}

func (s *ChatService) MarkSeen(ctx context.Context, connID, messageID string) {
	room, member, err := lookupMember(ctx, s.presence, s.rooms, connID)
	if err != nil {
		return
	}

	view, ok := room.MarkMessageSeen(messageID, member.Name)
	if !ok {
		return
	}

	broadcastRoom(s.log, room, domain.Event{
		Name: domain.EventMessageSeenUpdated,
		Data: messageSeenPayload{MessageID: view.ID, SeenBy: view.SeenBy},
	})
}

type messageEditedPayload struct {
	MessageID string     `json:"messageId"`
	NewText   string     `json:"newText"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

type messageDeletedPayload struct {
	MessageID string `json:"messageId"`
	Deleted   bool   `json:"deleted"`
}

type messageReactionPayload struct {
	MessageID string              `json:"messageId"`
	Reactions map[string][]string `json:"reactions"`
}

type messageSeenPayload struct {
	MessageID string   `json:"messageId"`
	SeenBy    []string `json:"seenBy"`
}
