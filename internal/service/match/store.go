package match

import (
	"context"
	"time"

	"github.com/oggyb/fashionjiok/internal/db"
	"github.com/oggyb/fashionjiok/internal/repository"
)

// The interfaces below are the whole store contract of the matching core.
// The gorm repositories satisfy them; tests substitute mocks.

type LikeStore interface {
	HasLiked(ctx context.Context, from, to uint64) (bool, error)
	// InsertLike reports inserted=false when the edge already existed.
	InsertLike(ctx context.Context, from, to uint64) (bool, error)
	CountPendingLikers(ctx context.Context, to uint64) (int64, error)
	ListPendingLikers(ctx context.Context, to uint64, token *string, limit int) ([]db.Like, *string, error)
}

type MatchStore interface {
	FindMatch(ctx context.Context, a, b uint64) (*db.Match, error)
	// CreateMatch is insert-or-get on the canonical pair.
	CreateMatch(ctx context.Context, a, b uint64, at time.Time) (*db.Match, bool, error)
	ListMatches(ctx context.Context, userID uint64, token *string, limit int) ([]repository.MatchSummary, *string, error)
}

type RoomStore interface {
	FindRoom(ctx context.Context, a, b uint64) (*db.ChatRoom, error)
	// CreateRoom is insert-or-get on the unordered pair.
	CreateRoom(ctx context.Context, a, b uint64) (*db.ChatRoom, bool, error)
}

type CandidateStore interface {
	// CandidatePool orders ids from pivot (0..1 of the id range) with wrap-around.
	CandidatePool(ctx context.Context, requester uint64, pivot float64, limit int) ([]repository.PoolEntry, error)
	Profiles(ctx context.Context, ids []uint64) (map[uint64]repository.Profile, error)
}

// Counter caches the liked-you count. Failures are never fatal to the caller.
type Counter interface {
	GetLikeCount(ctx context.Context, userID uint64) (int64, bool, error)
	SetLikeCount(ctx context.Context, userID uint64, count int64) error
	InvalidateLikeCount(ctx context.Context, userID uint64) error
}
