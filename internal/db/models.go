package db

import (
	"time"
)

// User table. Profiles are created by the verification flow or the seeder;
// the match core only reads them.
type User struct {
	ID               uint64    `gorm:"column:user_id;primaryKey;autoIncrement"`
	PhoneNumber      *string   `gorm:"column:phone_number;uniqueIndex;size:32"`
	PasswordHash     string    `gorm:"column:password_hash;size:255;not null"`
	Name             string    `gorm:"column:name;size:64;not null"`
	Age              int       `gorm:"column:age;not null;default:0"`
	Gender           string    `gorm:"column:gender;size:16;not null"`
	Job              string    `gorm:"column:job;size:64"`
	IsActive         bool      `gorm:"column:is_active;default:true"`
	ProfileCompleted bool      `gorm:"column:profile_completed;default:false"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

type UserImage struct {
	ID        uint64 `gorm:"column:image_id;primaryKey;autoIncrement"`
	UserID    uint64 `gorm:"column:user_id;not null;index:idx_user_images_user_primary,priority:1"`
	ImageURL  string `gorm:"column:image_url;size:512;not null"`
	IsPrimary bool   `gorm:"column:is_primary;not null;default:false;index:idx_user_images_user_primary,priority:2"`
}

func (UserImage) TableName() string { return "user_images" }

// StyleAnalysis is the AI style profile of a user (optional).
type StyleAnalysis struct {
	UserID       uint64 `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	PrimaryStyle string `gorm:"column:primary_style;size:64"`
	StyleScore   *int   `gorm:"column:style_score"`
}

func (StyleAnalysis) TableName() string { return "ai_style_analysis" }

type UserLocation struct {
	UserID       uint64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Latitude     float64 `gorm:"column:latitude;not null;index:idx_user_locations_lat_lon,priority:1"`
	Longitude    float64 `gorm:"column:longitude;not null;index:idx_user_locations_lat_lon,priority:2"`
	LocationName string  `gorm:"column:location_name;size:128"`
}

func (UserLocation) TableName() string { return "user_locations" }

// Like is a directed "from liked to" edge.
//
// Composite PK (from_user_id, to_user_id) keeps one edge per ordered pair.
// idx_likes_to_from serves the reverse lookups ("who liked me").
type Like struct {
	FromUserID uint64    `gorm:"column:from_user_id;primaryKey;autoIncrement:false"`
	ToUserID   uint64    `gorm:"column:to_user_id;primaryKey;autoIncrement:false;index:idx_likes_to_from,priority:1"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Like) TableName() string { return "likes" }

type MatchStatus string

const MatchAccepted MatchStatus = "accepted"

// Match is an unordered pair stored canonically (user_id_1 < user_id_2).
// The unique index on the pair is what keeps concurrent confirmations to one row.
type Match struct {
	ID        uint64      `gorm:"column:match_id;primaryKey;autoIncrement"`
	UserID1   uint64      `gorm:"column:user_id_1;not null;uniqueIndex:idx_matches_pair,priority:1"`
	UserID2   uint64      `gorm:"column:user_id_2;not null;uniqueIndex:idx_matches_pair,priority:2;index:idx_matches_user2"`
	Status    MatchStatus `gorm:"column:match_status;size:16;not null;default:accepted"`
	MatchedAt time.Time   `gorm:"column:matched_at;not null"`
}

func (Match) TableName() string { return "matches" }

// ChatRoom is unlocked by a match; one per unordered pair of users.
type ChatRoom struct {
	ID        uint64    `gorm:"column:room_id;primaryKey;autoIncrement"`
	UserID1   uint64    `gorm:"column:user_id_1;not null;uniqueIndex:idx_chat_rooms_pair,priority:1"`
	UserID2   uint64    `gorm:"column:user_id_2;not null;uniqueIndex:idx_chat_rooms_pair,priority:2;index:idx_chat_rooms_user2"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (ChatRoom) TableName() string { return "chat_rooms" }

// Partner returns the other member of the room, or 0 if userID is not a member.
func (r ChatRoom) Partner(userID uint64) uint64 {
	switch userID {
	case r.UserID1:
		return r.UserID2
	case r.UserID2:
		return r.UserID1
	}
	return 0
}

type ChatMessage struct {
	ID        string     `gorm:"column:message_id;primaryKey;size:36"`
	RoomID    uint64     `gorm:"column:room_id;not null;index:idx_chat_messages_room_created,priority:1"`
	SenderID  uint64     `gorm:"column:sender_id;not null"`
	Body      string     `gorm:"column:body;type:text;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime;index:idx_chat_messages_room_created,priority:2"`
	ReadAt    *time.Time `gorm:"column:read_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// Models lists every table for AutoMigrate.
func Models() []any {
	return []any{
		&User{},
		&UserImage{},
		&StyleAnalysis{},
		&UserLocation{},
		&Like{},
		&Match{},
		&ChatRoom{},
		&ChatMessage{},
	}
}

// CanonicalPair orders two user ids ascending so an unordered pair has one key.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}
