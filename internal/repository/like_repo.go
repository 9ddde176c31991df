package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/utils/pagination"
)

// LikeRepository provides data access methods for the Like model.
// It encapsulates all queries on the directed like edges between users.
type LikeRepository struct {
	db *gorm.DB
}

// NewLikeRepository creates a new repository bound to the given DB connection.
func NewLikeRepository(database *gorm.DB) *LikeRepository {
	return &LikeRepository{db: database}
}

// HasLiked checks whether the edge from -> to exists.
//
// Example:
//
//	repo.HasLiked(ctx, 1, 2) // -> true if user 1 liked user 2
func (r *LikeRepository) HasLiked(ctx context.Context, from, to uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Like{}).
		Where("from_user_id = ? AND to_user_id = ?", from, to).
		Count(&count).Error
	if err != nil {
		return false, svcErr.Storage("check like", err)
	}
	return count > 0, nil
}

// InsertLike records the edge from -> to.
//
// Behavior:
//   - The composite PK (from_user_id, to_user_id) guards against duplicates.
//   - Returns inserted=false when the edge already existed (a concurrent request
//     may have written it between the caller's existence check and this insert).
func (r *LikeRepository) InsertLike(ctx context.Context, from, to uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.Like{FromUserID: from, ToUserID: to})
	if res.Error != nil {
		if svcErr.IsDuplicate(res.Error) {
			return false, nil
		}
		return false, svcErr.Storage("insert like", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// notMatched excludes likers already in a match with the liked user.
const notMatched = `
	NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE (m.user_id_1 = l.from_user_id AND m.user_id_2 = l.to_user_id)
		   OR (m.user_id_1 = l.to_user_id AND m.user_id_2 = l.from_user_id)
	)`

// ListPendingLikers returns likes received by the user from people not matched with them yet.
//
// Behavior:
//   - Ordered by created_at DESC, from_user_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListPendingLikers(ctx, 42, nil, 20) // first 20 one-way likes for user 42
func (r *LikeRepository) ListPendingLikers(
	ctx context.Context,
	to uint64,
	paginationToken *string,
	limit int,
) ([]db.Like, *string, error) {
	cursor, err := pagination.Parse(paginationToken)
	if err != nil {
		return nil, nil, svcErr.Validation(err.Error())
	}

	query := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.to_user_id = ?", to).
		Where(notMatched).
		Order("l.created_at DESC, l.from_user_id DESC").
		Limit(limit + 1)

	if !cursor.IsZero() {
		ts := cursor.At()
		query = query.Where(
			"(l.created_at < ? OR (l.created_at = ? AND l.from_user_id < ?))",
			ts, ts, cursor.ID,
		)
	}

	var likes []db.Like
	if err := query.Find(&likes).Error; err != nil {
		return nil, nil, svcErr.Storage("list likers", err)
	}

	likes, next := pagination.Trim(likes, limit, func(l db.Like) pagination.Cursor {
		return pagination.After(l.FromUserID, l.CreatedAt)
	})
	return likes, next, nil
}

// CountPendingLikers counts users who liked the user and are not matched with them yet.
//
// Used behind the Redis counter cache; the DB is the fallback.
//
// Example:
//
//	repo.CountPendingLikers(ctx, 42) // -> 3
func (r *LikeRepository) CountPendingLikers(ctx context.Context, to uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("likes l").
		Where("l.to_user_id = ?", to).
		Where(notMatched).
		Count(&count).Error
	if err != nil {
		return 0, svcErr.Storage("count likers", err)
	}
	return count, nil
}
