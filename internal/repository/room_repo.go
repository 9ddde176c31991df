package repository

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// ChatRoomRepository resolves the single chat room of an unordered user pair.
type ChatRoomRepository struct {
	db *gorm.DB
}

func NewChatRoomRepository(database *gorm.DB) *ChatRoomRepository {
	return &ChatRoomRepository{db: database}
}

// FindRoom looks the pair up in both stored orders. Rooms written by older
// clients are not guaranteed to be canonical.
func (r *ChatRoomRepository) FindRoom(ctx context.Context, a, b uint64) (*db.ChatRoom, error) {
	var room db.ChatRoom
	err := r.db.WithContext(ctx).
		Where("(user_id_1 = ? AND user_id_2 = ?) OR (user_id_1 = ? AND user_id_2 = ?)", a, b, b, a).
		Order("room_id").
		Take(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, svcErr.Storage("find room", err)
	}
	return &room, nil
}

// GetRoom returns the room by id.
func (r *ChatRoomRepository) GetRoom(ctx context.Context, roomID uint64) (*db.ChatRoom, error) {
	var room db.ChatRoom
	if err := r.db.WithContext(ctx).Take(&room, "room_id = ?", roomID).Error; err != nil {
		return nil, svcErr.Storage("get room", err)
	}
	return &room, nil
}

// CreateRoom inserts the room for the canonical pair, or returns the one that
// already exists (created=false). Concurrent callers converge on one row.
func (r *ChatRoomRepository) CreateRoom(ctx context.Context, a, b uint64) (*db.ChatRoom, bool, error) {
	lo, hi := db.CanonicalPair(a, b)
	room := db.ChatRoom{UserID1: lo, UserID2: hi}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&room)
	if res.Error != nil && !svcErr.IsDuplicate(res.Error) {
		return nil, false, svcErr.Storage("insert room", res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return &room, true, nil
	}

	winner, err := r.FindRoom(ctx, lo, hi)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		return nil, false, svcErr.Storage("insert room", svcErr.ErrConflictRace)
	}
	return winner, false, nil
}

// RoomSummary is one entry of a user's chat list.
type RoomSummary struct {
	RoomID        uint64     `json:"roomId"`
	PartnerID     uint64     `json:"partnerId"`
	PartnerName   string     `json:"partnerName"`
	PartnerImage  string     `json:"partnerImage"`
	LastMessage   string     `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	UnreadCount   int64      `json:"unreadCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// ListRoomsForUser returns the user's rooms with partner, last message and
// unread count, most recently active first.
func (r *ChatRoomRepository) ListRoomsForUser(ctx context.Context, userID uint64) ([]RoomSummary, error) {
	var rows []RoomSummary
	err := r.db.WithContext(ctx).
		Table("chat_rooms r").
		Select(`
			r.room_id, r.created_at,
			u.user_id AS partner_id, u.name AS partner_name,
			COALESCE(i.image_url, '') AS partner_image`).
		Joins("JOIN users u ON u.user_id = CASE WHEN r.user_id_1 = ? THEN r.user_id_2 ELSE r.user_id_1 END", userID).
		Joins("LEFT JOIN user_images i ON i.user_id = u.user_id AND i.is_primary = ?", true).
		Where("r.user_id_1 = ? OR r.user_id_2 = ?", userID, userID).
		Scan(&rows).Error
	if err != nil {
		return nil, svcErr.Storage("list rooms", err)
	}
	if len(rows) == 0 {
		return rows, nil
	}

	ids := make([]uint64, len(rows))
	for i, row := range rows {
		ids[i] = row.RoomID
	}

	// latest message per room
	var last []db.ChatMessage
	err = r.db.WithContext(ctx).
		Table("chat_messages m").
		Where("m.room_id IN ?", ids).
		Where(`NOT EXISTS (
			SELECT 1 FROM chat_messages n
			WHERE n.room_id = m.room_id
			  AND (n.created_at > m.created_at OR (n.created_at = m.created_at AND n.message_id > m.message_id))
		)`).
		Find(&last).Error
	if err != nil {
		return nil, svcErr.Storage("list last messages", err)
	}

	var unread []struct {
		RoomID uint64
		N      int64
	}
	err = r.db.WithContext(ctx).
		Model(&db.ChatMessage{}).
		Select("room_id, COUNT(*) AS n").
		Where("room_id IN ? AND sender_id <> ? AND read_at IS NULL", ids, userID).
		Group("room_id").
		Scan(&unread).Error
	if err != nil {
		return nil, svcErr.Storage("count unread", err)
	}

	lastByRoom := make(map[uint64]db.ChatMessage, len(last))
	for _, m := range last {
		lastByRoom[m.RoomID] = m
	}
	unreadByRoom := make(map[uint64]int64, len(unread))
	for _, u := range unread {
		unreadByRoom[u.RoomID] = u.N
	}

	for i := range rows {
		if m, ok := lastByRoom[rows[i].RoomID]; ok {
			at := m.CreatedAt
			rows[i].LastMessage = m.Body
			rows[i].LastMessageAt = &at
		}
		rows[i].UnreadCount = unreadByRoom[rows[i].RoomID]
	}

	slices.SortFunc(rows, func(a, b RoomSummary) int {
		if c := b.activeAt().Compare(a.activeAt()); c != 0 {
			return c
		}
		return cmp.Compare(b.RoomID, a.RoomID)
	})
	return rows, nil
}

func (s RoomSummary) activeAt() time.Time {
	if s.LastMessageAt != nil {
		return *s.LastMessageAt
	}
	return s.CreatedAt
}
