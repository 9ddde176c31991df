// Package chat serves the conversation side of a match: room list, history
// and plain message append. Real-time delivery is not handled here.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/repository"
)

const (
	historyLimit   = 200
	maxMessageSize = 2000
)

type Rooms interface {
	GetRoom(ctx context.Context, roomID uint64) (*db.ChatRoom, error)
	ListRoomsForUser(ctx context.Context, userID uint64) ([]repository.RoomSummary, error)
}

type Messages interface {
	ListMessages(ctx context.Context, roomID uint64, limit int) ([]db.ChatMessage, error)
	CreateMessage(ctx context.Context, roomID, senderID uint64, body string) (*db.ChatMessage, error)
	MarkRead(ctx context.Context, roomID, reader uint64, at time.Time) (int64, error)
}

type Service struct {
	rooms    Rooms
	messages Messages
	log      *slog.Logger
	now      func() time.Time
}

func NewChatService(appCtx *app.AppContext) *Service {
	return New(
		repository.NewChatRoomRepository(appCtx.DB),
		repository.NewMessageRepository(appCtx.DB),
		appCtx.Logger.With("component", "chat"),
	)
}

func New(rooms Rooms, messages Messages, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{rooms: rooms, messages: messages, log: log, now: time.Now}
}

// Message is the wire form of a chat message.
type Message struct {
	ID        string     `json:"id"`
	RoomID    uint64     `json:"roomId"`
	SenderID  uint64     `json:"senderId"`
	Text      string     `json:"text"`
	Timestamp time.Time  `json:"timestamp"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

func toMessage(m db.ChatMessage) Message {
	return Message{ID: m.ID, RoomID: m.RoomID, SenderID: m.SenderID, Text: m.Body, Timestamp: m.CreatedAt, ReadAt: m.ReadAt}
}

// ListRooms returns the user's rooms, most recently active first.
func (s *Service) ListRooms(ctx context.Context, userID uint64) ([]repository.RoomSummary, error) {
	if userID == 0 {
		return nil, svcErr.Validation("userId is required")
	}
	return s.rooms.ListRoomsForUser(ctx, userID)
}

// member loads the room and checks that userID belongs to it. Non-members
// get NotFound so room ids cannot be probed.
func (s *Service) member(ctx context.Context, roomID, userID uint64) (*db.ChatRoom, error) {
	if roomID == 0 || userID == 0 {
		return nil, svcErr.Validation("roomId and userId are required")
	}
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Partner(userID) == 0 {
		s.log.WarnContext(ctx, "chat access by non-member", "room_id", roomID, "user_id", userID)
		return nil, svcErr.NotFound("room")
	}
	return room, nil
}

// History returns the room's messages oldest first and marks the partner's
// messages as read by userID.
func (s *Service) History(ctx context.Context, roomID, userID uint64) ([]Message, error) {
	if _, err := s.member(ctx, roomID, userID); err != nil {
		return nil, err
	}

	n, err := s.messages.MarkRead(ctx, roomID, userID, s.now())
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, roomID, historyLimit)
	if err != nil {
		return nil, err
	}
	s.log.DebugContext(ctx, "chat history", "room_id", roomID, "count", len(msgs), "marked_read", n)

	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// Send appends text from senderID to the room.
func (s *Service) Send(ctx context.Context, roomID, senderID uint64, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, svcErr.Validation("text is required")
	}
	if len(text) > maxMessageSize {
		return Message{}, svcErr.Validationf("text exceeds %d bytes", maxMessageSize)
	}
	if _, err := s.member(ctx, roomID, senderID); err != nil {
		return Message{}, err
	}

	m, err := s.messages.CreateMessage(ctx, roomID, senderID, text)
	if err != nil {
		s.log.ErrorContext(ctx, "message insert failed", "room_id", roomID, "err", err)
		return Message{}, err
	}
	return toMessage(*m), nil
}
