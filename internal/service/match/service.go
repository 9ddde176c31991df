package match

import (
	"context"
	"log/slog"

	"github.com/oggyb/fashionjiok/internal/app"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/repository"
)

const defaultPageSize = 50

// Service bundles the matching core with the read models around it
// (match list, liked-you counter and list). Both the HTTP and the gRPC
// surfaces call into it.
type Service struct {
	Engine   *Engine
	Selector *Selector
	Resolver *Resolver

	likes    LikeStore
	matches  MatchStore
	counter  Counter
	log      *slog.Logger
	pageSize int
}

// NewService wires the gorm repositories and the Redis counter from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	log := appCtx.Logger.With("component", "match")

	likes := repository.NewLikeRepository(appCtx.DB)
	matches := repository.NewMatchRepository(appCtx.DB)
	rooms := repository.NewChatRoomRepository(appCtx.DB)
	users := repository.NewUserRepository(appCtx.DB)

	var counter Counter
	if appCtx.RedisCache != nil {
		counter = appCtx.RedisCache
	}

	deckSize, pageSize := DefaultDeckSize, defaultPageSize
	if cfg := appCtx.Config; cfg != nil {
		deckSize = cfg.Match.DeckSize
		pageSize = cfg.Match.ListPageSize
	}

	return New(likes, matches, rooms, users, counter, log, deckSize, pageSize)
}

// New assembles a Service from explicit stores. counter may be nil.
func New(
	likes LikeStore,
	matches MatchStore,
	rooms RoomStore,
	users CandidateStore,
	counter Counter,
	log *slog.Logger,
	deckSize, pageSize int,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	resolver := NewResolver(rooms, log)
	var engineOpts []EngineOption
	if counter != nil {
		engineOpts = append(engineOpts, WithCounter(counter))
	}
	return &Service{
		Engine:   NewEngine(likes, matches, resolver, log, engineOpts...),
		Selector: NewSelector(users, deckSize),
		Resolver: resolver,
		likes:    likes,
		matches:  matches,
		counter:  counter,
		log:      log,
		pageSize: pageSize,
	}
}

// MatchRoom returns the chat room of a confirmed match between a and b.
// Pairs without a match get NotFound; rooms are only ever opened by a match.
func (s *Service) MatchRoom(ctx context.Context, a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, svcErr.Validation("both user ids are required")
	}
	if a == b {
		return 0, svcErr.Validation("a room needs two different users")
	}
	m, err := s.matches.FindMatch(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if m == nil {
		return 0, svcErr.NotFound("match")
	}
	return s.Resolver.ResolveRoom(ctx, a, b)
}

// ListMatches returns one page of the user's confirmed matches, newest first.
func (s *Service) ListMatches(ctx context.Context, userID uint64, pageToken *string) ([]repository.MatchSummary, *string, error) {
	if userID == 0 {
		return nil, nil, svcErr.Validation("userId is required")
	}
	rows, next, err := s.matches.ListMatches(ctx, userID, pageToken, s.pageSize)
	if err != nil {
		s.log.ErrorContext(ctx, "list matches failed", "user_id", userID, "err", err)
		return nil, nil, err
	}
	s.log.DebugContext(ctx, "list matches", "user_id", userID, "count", len(rows), "has_next", next != nil)
	return rows, next, nil
}

// Liker is one entry of the liked-you list.
type Liker struct {
	UserID        uint64 `json:"userId"`
	UnixTimestamp int64  `json:"unixTimestamp"`
}

// ListLikedYou returns who liked the user and is not matched with them yet.
func (s *Service) ListLikedYou(ctx context.Context, userID uint64, pageToken *string) ([]Liker, *string, error) {
	if userID == 0 {
		return nil, nil, svcErr.Validation("userId is required")
	}
	likes, next, err := s.likes.ListPendingLikers(ctx, userID, pageToken, s.pageSize)
	if err != nil {
		return nil, nil, err
	}
	out := make([]Liker, 0, len(likes))
	for _, l := range likes {
		out = append(out, Liker{UserID: l.FromUserID, UnixTimestamp: l.CreatedAt.UnixMilli()})
	}
	return out, next, nil
}

// LikedYouCount returns how many users liked the user and are not matched with them yet.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID).
//  2. On a miss or Redis failure, falls back to the DB.
//  3. On DB fetch, stores the value in Redis with a 1h TTL.
func (s *Service) LikedYouCount(ctx context.Context, userID uint64) (int64, error) {
	if userID == 0 {
		return 0, svcErr.Validation("userId is required")
	}

	if s.counter != nil {
		n, ok, err := s.counter.GetLikeCount(ctx, userID)
		if err != nil {
			s.log.WarnContext(ctx, "like counter read failed", "user_id", userID, "err", err)
		} else if ok {
			return n, nil
		}
	}

	// fallback: DB
	n, err := s.likes.CountPendingLikers(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.counter != nil {
		if err := s.counter.SetLikeCount(ctx, userID, n); err != nil {
			s.log.WarnContext(ctx, "like counter write failed", "user_id", userID, "err", err)
		}
	}
	return n, nil
}
