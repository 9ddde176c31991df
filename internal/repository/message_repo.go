package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// MessageRepository stores chat messages.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// ListMessages returns the room's messages oldest first, at most limit rows.
func (r *MessageRepository) ListMessages(ctx context.Context, roomID uint64, limit int) ([]db.ChatMessage, error) {
	var msgs []db.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, message_id ASC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, svcErr.Storage("list messages", err)
	}
	return msgs, nil
}

// CreateMessage appends a message to the room. The id is a random UUID.
func (r *MessageRepository) CreateMessage(ctx context.Context, roomID, senderID uint64, body string) (*db.ChatMessage, error) {
	msg := db.ChatMessage{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		SenderID: senderID,
		Body:     body,
	}
	if err := r.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, svcErr.Storage("insert message", err)
	}
	return &msg, nil
}

// MarkRead marks every unread message in the room not sent by reader as read.
func (r *MessageRepository) MarkRead(ctx context.Context, roomID, reader uint64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Where("room_id = ? AND sender_id <> ? AND read_at IS NULL", roomID, reader).
		Update("read_at", at.UTC())
	if res.Error != nil {
		return 0, svcErr.Storage("mark read", res.Error)
	}
	return res.RowsAffected, nil
}
