package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/fashionjiok/internal/db"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// phoneLoginHash marks accounts that sign in by phone code only; it never
// matches a bcrypt comparison.
const phoneLoginHash = "!phone-login"

// UserRepository reads profiles for the selectors and manages phone-identified accounts.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// PoolEntry is a candidate id with its "has liked the requester" flag.
type PoolEntry struct {
	ID      uint64 `gorm:"column:id"`
	LikedMe bool   `gorm:"column:liked_me"`
}

// CandidatePool returns active users eligible for the requester's deck.
//
// Behavior:
//   - Excludes the requester, users the requester already liked and users in
//     an accepted match with the requester.
//   - liked_me users come first. Inside each group ids run upward from the
//     pivot point and wrap around (see rotatedIDs); the caller shuffles.
//   - At most limit rows (limit <= 0 means unbounded).
func (r *UserRepository) CandidatePool(ctx context.Context, requester uint64, pivot float64, limit int) ([]PoolEntry, error) {
	query := r.db.WithContext(ctx).
		Table("users u").
		Select(`u.user_id AS id,
			CASE WHEN EXISTS (
				SELECT 1 FROM likes lm WHERE lm.from_user_id = u.user_id AND lm.to_user_id = ?
			) THEN 1 ELSE 0 END AS liked_me`, requester).
		Where("u.user_id <> ? AND u.is_active = ?", requester, true).
		Where(`NOT EXISTS (
			SELECT 1 FROM likes l WHERE l.from_user_id = ? AND l.to_user_id = u.user_id
		)`, requester).
		Where(`NOT EXISTS (
			SELECT 1 FROM matches m
			WHERE m.match_status = ?
			  AND ((m.user_id_1 = ? AND m.user_id_2 = u.user_id) OR (m.user_id_1 = u.user_id AND m.user_id_2 = ?))
		)`, db.MatchAccepted, requester, requester).
		Order(rotatedIDs("liked_me DESC, ", "u.user_id", pivot))
	if limit > 0 {
		query = query.Limit(limit)
	}

	var pool []PoolEntry
	if err := query.Scan(&pool).Error; err != nil {
		return nil, svcErr.Storage("select candidates", err)
	}
	return pool, nil
}

// rotatedIDs orders by id starting at the point pivot of the way between the
// lowest and the highest user id, wrapping past the end. Pivot 0 is plain id
// order; a random pivot keeps a capped pool from always favouring low ids.
// lead is prepended verbatim; an OrderBy expression replaces any other Order.
func rotatedIDs(lead, column string, pivot float64) clause.OrderBy {
	if pivot < 0 || pivot >= 1 {
		pivot = 0
	}
	return clause.OrderBy{Expression: clause.Expr{
		SQL: lead + "CASE WHEN " + column + " >= (SELECT MIN(p.user_id) + ? * (MAX(p.user_id) - MIN(p.user_id)) FROM users p)" +
			" THEN 0 ELSE 1 END, " + column + " ASC",
		Vars:               []any{pivot},
		WithoutParentheses: true,
	}}
}

// ActiveIDs returns the ids of active users other than exclude, at most limit
// (limit <= 0 means unbounded), in rotatedIDs order.
func (r *UserRepository) ActiveIDs(ctx context.Context, exclude uint64, pivot float64, limit int) ([]uint64, error) {
	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("user_id <> ? AND is_active = ?", exclude, true).
		Order(rotatedIDs("", "user_id", pivot))
	if limit > 0 {
		query = query.Limit(limit)
	}
	var ids []uint64
	if err := query.Pluck("user_id", &ids).Error; err != nil {
		return nil, svcErr.Storage("list users", err)
	}
	return ids, nil
}

// Profile is a user joined with primary image, style and location attributes.
type Profile struct {
	ID           uint64   `gorm:"column:user_id"`
	Name         string   `gorm:"column:name"`
	Age          int      `gorm:"column:age"`
	Gender       string   `gorm:"column:gender"`
	Job          string   `gorm:"column:job"`
	Image        string   `gorm:"column:image"`
	Style        string   `gorm:"column:style"`
	StyleScore   *int     `gorm:"column:style_score"`
	LocationName string   `gorm:"column:location_name"`
	Latitude     *float64 `gorm:"column:latitude"`
	Longitude    *float64 `gorm:"column:longitude"`
}

func (r *UserRepository) profiles() *gorm.DB {
	return r.db.
		Table("users u").
		Select(`u.user_id, u.name, u.age, u.gender, COALESCE(u.job, '') AS job,
			COALESCE(i.image_url, '') AS image,
			COALESCE(s.primary_style, '') AS style, s.style_score,
			COALESCE(l.location_name, '') AS location_name, l.latitude, l.longitude`).
		Joins("LEFT JOIN user_images i ON i.user_id = u.user_id AND i.is_primary = ?", true).
		Joins("LEFT JOIN ai_style_analysis s ON s.user_id = u.user_id").
		Joins("LEFT JOIN user_locations l ON l.user_id = u.user_id")
}

// Profiles hydrates the given ids. The result is keyed by id; missing ids are absent.
func (r *UserRepository) Profiles(ctx context.Context, ids []uint64) (map[uint64]Profile, error) {
	out := make(map[uint64]Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []Profile
	if err := r.profiles().WithContext(ctx).Where("u.user_id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, svcErr.Storage("load profiles", err)
	}
	for _, p := range rows {
		// several primary images would fan out the join; first one wins
		if _, ok := out[p.ID]; !ok {
			out[p.ID] = p
		}
	}
	return out, nil
}

// WithinBox returns profiles (excluding exclude) whose stored location lies in
// the latitude/longitude box. Exact distance filtering is up to the caller.
func (r *UserRepository) WithinBox(ctx context.Context, exclude uint64, minLat, maxLat, minLon, maxLon float64) ([]Profile, error) {
	var rows []Profile
	err := r.profiles().WithContext(ctx).
		Where("u.user_id <> ? AND u.is_active = ?", exclude, true).
		Where("l.latitude BETWEEN ? AND ? AND l.longitude BETWEEN ? AND ?", minLat, maxLat, minLon, maxLon).
		Scan(&rows).Error
	if err != nil {
		return nil, svcErr.Storage("nearby users", err)
	}
	return rows, nil
}

// Exists reports whether a user with the id exists.
func (r *UserRepository) Exists(ctx context.Context, id uint64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&db.User{}).Where("user_id = ?", id).Count(&count).Error; err != nil {
		return false, svcErr.Storage("check user", err)
	}
	return count > 0, nil
}

// FindByPhone returns the user owning the phone number, or nil.
func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).Where("phone_number = ?", phone).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, svcErr.Storage("find user by phone", err)
	}
	return &u, nil
}

// FindOrCreateByPhone returns the user for phone, creating an empty profile
// when none exists. created reports whether this call inserted the row.
func (r *UserRepository) FindOrCreateByPhone(ctx context.Context, phone string) (*db.User, bool, error) {
	u := db.User{
		PhoneNumber:  &phone,
		PasswordHash: phoneLoginHash,
		Name:         "New User",
		Gender:       "M",
		IsActive:     true,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&u)
	if res.Error != nil && !svcErr.IsDuplicate(res.Error) {
		return nil, false, svcErr.Storage("create user", res.Error)
	}
	if res.Error == nil && res.RowsAffected > 0 {
		return &u, true, nil
	}

	existing, err := r.FindByPhone(ctx, phone)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, svcErr.Storage("create user", svcErr.ErrConflictRace)
	}
	return existing, false, nil
}
