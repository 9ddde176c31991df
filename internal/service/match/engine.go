package match

import (
	"context"
	"log/slog"
	"time"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// LikeResult is the outcome of SendLike.
type LikeResult struct {
	AlreadyLiked bool    `json:"alreadyLiked,omitempty"`
	IsMatch      bool    `json:"isMatch"`
	MatchedUser  *uint64 `json:"matchedUser,omitempty"`
	RoomID       *uint64 `json:"roomId,omitempty"`
}

// Engine records likes and turns reciprocal likes into a match plus a chat room.
// It holds no state between calls; uniqueness is enforced by the store.
type Engine struct {
	likes    LikeStore
	matches  MatchStore
	resolver *Resolver
	counter  Counter
	log      *slog.Logger
	now      func() time.Time
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithCounter invalidates the liked-you counter cache on new likes.
func WithCounter(c Counter) EngineOption {
	return func(e *Engine) { e.counter = c }
}

// WithClock overrides the time source used for matched_at.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(likes LikeStore, matches MatchStore, resolver *Resolver, log *slog.Logger, opts ...EngineOption) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{
		likes:    likes,
		matches:  matches,
		resolver: resolver,
		log:      log,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SendLike records from -> to and confirms a match when to already liked from.
//
// Behavior:
//   - A repeat like returns AlreadyLiked. If both edges exist but an earlier
//     confirmation failed part way, the missing match or room is created
//     first; the result still reports AlreadyLiked only.
//   - A one-sided like returns IsMatch=false.
//   - On a reciprocal like the match and room are created or reused; the
//     result carries the other party (to) and the room id.
//
// Example:
//
//	engine.SendLike(ctx, 1, 2) // -> {IsMatch: true, MatchedUser: 2, RoomID: 7} if 2 liked 1 before
func (e *Engine) SendLike(ctx context.Context, from, to uint64) (LikeResult, error) {
	if from == 0 || to == 0 {
		return LikeResult{}, svcErr.Validation("fromUser and toUser are required")
	}
	if from == to {
		return LikeResult{}, svcErr.Validation("cannot like yourself")
	}

	liked, err := e.likes.HasLiked(ctx, from, to)
	if err != nil {
		e.log.ErrorContext(ctx, "like lookup failed", "from", from, "to", to, "err", err)
		return LikeResult{}, err
	}
	if liked {
		LikesTotal.WithLabelValues("repeat").Inc()
		if err := e.completeMatch(ctx, from, to); err != nil {
			return LikeResult{}, err
		}
		return LikeResult{AlreadyLiked: true}, nil
	}

	inserted, err := e.likes.InsertLike(ctx, from, to)
	if err != nil {
		e.log.ErrorContext(ctx, "like insert failed", "from", from, "to", to, "err", err)
		return LikeResult{}, err
	}
	if !inserted {
		// a concurrent duplicate of this very request won
		LikesTotal.WithLabelValues("repeat").Inc()
		return LikeResult{AlreadyLiked: true}, nil
	}
	LikesTotal.WithLabelValues("new").Inc()
	e.invalidate(ctx, to)

	reciprocal, err := e.likes.HasLiked(ctx, to, from)
	if err != nil {
		e.log.ErrorContext(ctx, "reciprocal lookup failed", "from", from, "to", to, "err", err)
		return LikeResult{}, err
	}
	if !reciprocal {
		e.log.DebugContext(ctx, "like recorded", "from", from, "to", to)
		return LikeResult{}, nil
	}

	roomID, err := e.ConfirmMatch(ctx, from, to)
	if err != nil {
		return LikeResult{}, err
	}
	// neither like counts as pending any more; `to` may have cached a count
	// between the insert above and the match row
	e.invalidate(ctx, from)
	e.invalidate(ctx, to)

	matched := to
	return LikeResult{IsMatch: true, MatchedUser: &matched, RoomID: &roomID}, nil
}

// ConfirmMatch makes sure the accepted match and the chat room of (a, b)
// exist and returns the room id. Safe to call repeatedly and concurrently.
func (e *Engine) ConfirmMatch(ctx context.Context, a, b uint64) (uint64, error) {
	existing, err := e.matches.FindMatch(ctx, a, b)
	if err != nil {
		e.log.ErrorContext(ctx, "match lookup failed", "user_a", a, "user_b", b, "err", err)
		return 0, err
	}

	if existing != nil {
		MatchesTotal.WithLabelValues("existing").Inc()
	} else {
		m, created, err := e.matches.CreateMatch(ctx, a, b, e.now())
		if err != nil {
			e.log.ErrorContext(ctx, "match insert failed", "user_a", a, "user_b", b, "err", err)
			return 0, err
		}
		if created {
			MatchesTotal.WithLabelValues("created").Inc()
			e.log.InfoContext(ctx, "match created", "match_id", m.ID, "user_a", m.UserID1, "user_b", m.UserID2)
		} else {
			MatchesTotal.WithLabelValues("existing").Inc()
			e.log.DebugContext(ctx, "match race lost, reusing winner", "match_id", m.ID)
		}
	}

	roomID, err := e.resolver.ResolveRoom(ctx, a, b)
	if err != nil {
		e.log.ErrorContext(ctx, "room resolve failed", "user_a", a, "user_b", b, "err", err)
		return 0, err
	}
	return roomID, nil
}

// completeMatch repairs a mutual like whose confirmation was interrupted by a
// storage failure: both edges exist but the match or the room does not.
// A healthy pair costs three reads and no writes.
func (e *Engine) completeMatch(ctx context.Context, from, to uint64) error {
	reciprocal, err := e.likes.HasLiked(ctx, to, from)
	if err != nil {
		e.log.ErrorContext(ctx, "reciprocal lookup failed", "from", from, "to", to, "err", err)
		return err
	}
	if !reciprocal {
		return nil
	}

	existing, err := e.matches.FindMatch(ctx, from, to)
	if err != nil {
		e.log.ErrorContext(ctx, "match lookup failed", "user_a", from, "user_b", to, "err", err)
		return err
	}
	if existing != nil {
		hasRoom, err := e.resolver.HasRoom(ctx, from, to)
		if err != nil || hasRoom {
			return err
		}
	}

	e.log.WarnContext(ctx, "completing interrupted match", "user_a", from, "user_b", to, "match_exists", existing != nil)
	if _, err := e.ConfirmMatch(ctx, from, to); err != nil {
		return err
	}
	e.invalidate(ctx, from)
	e.invalidate(ctx, to)
	return nil
}

func (e *Engine) invalidate(ctx context.Context, userID uint64) {
	if e.counter == nil {
		return
	}
	if err := e.counter.InvalidateLikeCount(ctx, userID); err != nil {
		e.log.WarnContext(ctx, "like counter invalidation failed", "user_id", userID, "err", err)
	}
}
