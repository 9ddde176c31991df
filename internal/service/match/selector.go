package match

import (
	"context"
	"math/rand/v2"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

const (
	RelationshipLikedMe = "liked_me"
	RelationshipNormal  = "normal"

	// DefaultDeckSize caps a deck when no size is configured.
	DefaultDeckSize = 20

	// the SQL pool is this many decks deep so the shuffle has room to vary
	poolFactor = 5
)

// Candidate is one card of a user's deck.
type Candidate struct {
	ID           uint64 `json:"id"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	Job          string `json:"job,omitempty"`
	Style        string `json:"style"`
	Image        string `json:"image"`
	Location     string `json:"location"`
	Relationship string `json:"relationship"`
}

// Selector builds candidate decks.
type Selector struct {
	users    CandidateStore
	deckSize int
	shuffle  func(n int, swap func(i, j int))
	pivot    func() float64
}

// SelectorOption customizes a Selector.
type SelectorOption func(*Selector)

// WithShuffle replaces the random tie-break (tests pin it).
func WithShuffle(shuffle func(n int, swap func(i, j int))) SelectorOption {
	return func(s *Selector) { s.shuffle = shuffle }
}

// WithPivot replaces the random start of the pool's id order (tests pin it).
func WithPivot(pivot func() float64) SelectorOption {
	return func(s *Selector) { s.pivot = pivot }
}

func NewSelector(users CandidateStore, deckSize int, opts ...SelectorOption) *Selector {
	if deckSize <= 0 {
		deckSize = DefaultDeckSize
	}
	s := &Selector{users: users, deckSize: deckSize, shuffle: rand.Shuffle, pivot: rand.Float64}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectCandidates returns the requester's deck: everyone except the requester,
// users they already liked and users they are matched with. Users who liked
// the requester come first; each group is shuffled. At most the deck size.
// An empty deck is not an error.
func (s *Selector) SelectCandidates(ctx context.Context, requester uint64) ([]Candidate, error) {
	if requester == 0 {
		return nil, svcErr.Validation("userId is required")
	}

	pool, err := s.users.CandidatePool(ctx, requester, s.pivot(), s.deckSize*poolFactor)
	if err != nil {
		return nil, err
	}

	// pool arrives liked_me first; shuffle each group in place
	split := 0
	for split < len(pool) && pool[split].LikedMe {
		split++
	}
	likedMe, rest := pool[:split], pool[split:]
	s.shuffle(len(likedMe), func(i, j int) { likedMe[i], likedMe[j] = likedMe[j], likedMe[i] })
	s.shuffle(len(rest), func(i, j int) { rest[i], rest[j] = rest[j], rest[i] })

	if len(pool) > s.deckSize {
		pool = pool[:s.deckSize]
	}

	ids := make([]uint64, len(pool))
	for i, p := range pool {
		ids[i] = p.ID
	}
	profiles, err := s.users.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	deck := make([]Candidate, 0, len(pool))
	for _, p := range pool {
		prof, ok := profiles[p.ID]
		if !ok {
			// deleted between the two reads
			continue
		}
		rel := RelationshipNormal
		if p.LikedMe {
			rel = RelationshipLikedMe
		}
		deck = append(deck, Candidate{
			ID:           prof.ID,
			Name:         prof.Name,
			Age:          prof.Age,
			Gender:       prof.Gender,
			Job:          prof.Job,
			Style:        prof.Style,
			Image:        prof.Image,
			Location:     prof.LocationName,
			Relationship: rel,
		})
	}
	DeckSize.Observe(float64(len(deck)))
	return deck, nil
}
