package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/utils/pagination"
)

// MatchRepository stores confirmed matches keyed by their canonical pair.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// FindMatch returns the match between a and b in either order, or nil.
func (r *MatchRepository) FindMatch(ctx context.Context, a, b uint64) (*db.Match, error) {
	lo, hi := db.CanonicalPair(a, b)

	var m db.Match
	err := r.db.WithContext(ctx).
		Where("user_id_1 = ? AND user_id_2 = ?", lo, hi).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, svcErr.Storage("find match", err)
	}
	return &m, nil
}

// CreateMatch inserts the accepted match for (a, b) or returns the existing one.
//
// Behavior:
//   - The pair is canonicalized (smaller id first).
//   - The unique index on the pair decides concurrent inserts; the loser reads
//     and returns the winner's row with created=false.
func (r *MatchRepository) CreateMatch(ctx context.Context, a, b uint64, at time.Time) (*db.Match, bool, error) {
	lo, hi := db.CanonicalPair(a, b)
	m := db.Match{UserID1: lo, UserID2: hi, Status: db.MatchAccepted, MatchedAt: at.UTC()}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil && !svcErr.IsDuplicate(res.Error) {
		return nil, false, svcErr.Storage("insert match", res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return &m, true, nil
	}

	winner, err := r.FindMatch(ctx, lo, hi)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		return nil, false, svcErr.Storage("insert match", svcErr.ErrConflictRace)
	}
	return winner, false, nil
}

// MatchedIDs returns the partners of all accepted matches of the user.
func (r *MatchRepository) MatchedIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Match{}).
		Select("CASE WHEN user_id_1 = ? THEN user_id_2 ELSE user_id_1 END", userID).
		Where("(user_id_1 = ? OR user_id_2 = ?) AND match_status = ?", userID, userID, db.MatchAccepted).
		Scan(&ids).Error
	if err != nil {
		return nil, svcErr.Storage("list matched ids", err)
	}
	return ids, nil
}

// MatchSummary is one row of a user's match list, seen from that user.
type MatchSummary struct {
	MatchID       uint64         `json:"matchId"`
	Status        db.MatchStatus `json:"matchStatus"`
	MatchedAt     time.Time      `json:"matchedAt"`
	MatchedUserID uint64         `json:"matchedUserId"`
	Name          string         `json:"name"`
	Age           int            `json:"age"`
	Gender        string         `json:"gender"`
	Image         string         `json:"image"`
	RoomID        *uint64        `json:"roomId"`
}

// ListMatches returns the accepted matches of the user with partner attributes.
//
// Behavior:
//   - Ordered by matched_at DESC, match_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListMatches(ctx, 42, nil, 20)
func (r *MatchRepository) ListMatches(
	ctx context.Context,
	userID uint64,
	paginationToken *string,
	limit int,
) ([]MatchSummary, *string, error) {
	cursor, err := pagination.Parse(paginationToken)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).
		Table("matches m").
		Select(`
			m.match_id, m.match_status AS status, m.matched_at,
			u.user_id AS matched_user_id, u.name, u.age, u.gender,
			COALESCE(i.image_url, '') AS image,
			r.room_id`).
		Joins("JOIN users u ON u.user_id = CASE WHEN m.user_id_1 = ? THEN m.user_id_2 ELSE m.user_id_1 END", userID).
		Joins("LEFT JOIN user_images i ON i.user_id = u.user_id AND i.is_primary = ?", true).
		Joins(`LEFT JOIN chat_rooms r ON
			(r.user_id_1 = m.user_id_1 AND r.user_id_2 = m.user_id_2) OR
			(r.user_id_1 = m.user_id_2 AND r.user_id_2 = m.user_id_1)`).
		Where("(m.user_id_1 = ? OR m.user_id_2 = ?) AND m.match_status = ?", userID, userID, db.MatchAccepted).
		Order("m.matched_at DESC, m.match_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := cursor.At()
		query = query.Where(
			"(m.matched_at < ? OR (m.matched_at = ? AND m.match_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var rows []MatchSummary
	if err := query.Scan(&rows).Error; err != nil {
		return nil, nil, svcErr.Storage("list matches", err)
	}

	rows, next := pagination.Trim(rows, limit, func(m MatchSummary) pagination.Cursor {
		return pagination.After(m.MatchID, m.MatchedAt)
	})
	return rows, next, nil
}
