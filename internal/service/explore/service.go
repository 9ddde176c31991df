package explore

import (
	"cmp"
	"context"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/config"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/repository"
)

const (
	earthRadiusKM = 6371.0
	kmPerDegree   = 111.32

	// explore shuffles at most this many ids per request
	explorePool = 500

	defaultLocation = "Seoul"
	defaultTag      = "fashion"
)

// Profiles is the read side the explore screens need.
type Profiles interface {
	ActiveIDs(ctx context.Context, exclude uint64, pivot float64, limit int) ([]uint64, error)
	Profiles(ctx context.Context, ids []uint64) (map[uint64]repository.Profile, error)
	WithinBox(ctx context.Context, exclude uint64, minLat, maxLat, minLon, maxLon float64) ([]repository.Profile, error)
}

// Service implements the discovery screens: random explore and nearby users.
// Unlike the match deck it applies no like/match exclusion.
type Service struct {
	appCtx *app.AppContext
	users  Profiles
	cfg    config.Config

	shuffle func(n int, swap func(i, j int))
	intN    func(n int) int
	pivot   func() float64
}

// NewExploreService creates a new Explore service with dependencies from AppContext.
func NewExploreService(appCtx *app.AppContext) *Service {
	return New(appCtx, repository.NewUserRepository(appCtx.DB))
}

// New builds the service over an explicit profile store.
func New(appCtx *app.AppContext, users Profiles) *Service {
	var cfg config.Config
	if appCtx.Config != nil {
		cfg = *appCtx.Config
	}
	if cfg.Match.ExploreSize <= 0 {
		cfg.Match.ExploreSize = 20
	}
	if cfg.Geo.RadiusKM <= 0 {
		cfg.Geo.RadiusKM = 5
	}
	if cfg.Geo.ResultLimit <= 0 {
		cfg.Geo.ResultLimit = 20
	}
	return &Service{
		appCtx:  appCtx,
		users:   users,
		cfg:     cfg,
		shuffle: rand.Shuffle,
		intN:    rand.IntN,
		pivot:   rand.Float64,
	}
}

// Item is one explore card.
type Item struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Age        int      `json:"age"`
	Gender     string   `json:"gender"`
	Image      string   `json:"image"`
	Style      string   `json:"style"`
	StyleScore int      `json:"styleScore"`
	Tags       []string `json:"tags"`
	Location   string   `json:"location"`
}

// Explore returns a random list of other users.
//
// Behavior:
//   - Excludes only the requester.
//   - Missing style score is filled with a random 50..99.
//   - Tags are [style] or ["fashion"]; location defaults to Seoul.
//
// Example:
//
//	svc.Explore(ctx, 42) // -> up to EXPLORE_SIZE random users
func (s *Service) Explore(ctx context.Context, userID uint64) ([]Item, error) {
	log := s.appCtx.Logger
	log.DebugContext(ctx, "Explore called", "user_id", userID)

	if userID == 0 {
		return nil, svcErr.Validation("userId is required")
	}

	ids, err := s.users.ActiveIDs(ctx, userID, s.pivot(), explorePool)
	if err != nil {
		log.ErrorContext(ctx, "ActiveIDs failed", "err", err)
		return nil, err
	}
	s.shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > s.cfg.Match.ExploreSize {
		ids = ids[:s.cfg.Match.ExploreSize]
	}

	profiles, err := s.users.Profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(ids))
	for _, id := range ids {
		p, ok := profiles[id]
		if !ok {
			continue
		}
		score := 50 + s.intN(50)
		if p.StyleScore != nil {
			score = *p.StyleScore
		}
		tags := []string{defaultTag}
		if p.Style != "" {
			tags = []string{p.Style}
		}
		loc := p.LocationName
		if loc == "" {
			loc = defaultLocation
		}
		items = append(items, Item{
			ID:         p.ID,
			Name:       p.Name,
			Age:        p.Age,
			Gender:     p.Gender,
			Image:      p.Image,
			Style:      p.Style,
			StyleScore: score,
			Tags:       tags,
			Location:   loc,
		})
	}

	log.DebugContext(ctx, "Explore result", "count", len(items))
	return items, nil
}

// NearbyUser is a user with their distance from the query point.
type NearbyUser struct {
	ID         uint64  `json:"id"`
	Name       string  `json:"name"`
	Age        int     `json:"age"`
	Gender     string  `json:"gender"`
	Image      string  `json:"image"`
	Style      string  `json:"style"`
	Location   string  `json:"location"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	DistanceKM float64 `json:"distanceKm"`
}

// Point is a query location; nil fields fall back to the configured default.
type Point struct {
	Lat, Lon *float64
}

// Nearby returns users within the configured radius of p, closest first.
//
// Behavior:
//   - The store narrows rows with a lat/lon bounding box.
//   - Exact great-circle distance filters and orders the rest.
//   - At most GEO_RESULT_LIMIT users.
func (s *Service) Nearby(ctx context.Context, userID uint64, p Point) ([]NearbyUser, error) {
	if userID == 0 {
		return nil, svcErr.Validation("userId is required")
	}

	lat, lon := s.cfg.Geo.DefaultLat, s.cfg.Geo.DefaultLon
	if p.Lat != nil && p.Lon != nil && validCoord(*p.Lat, *p.Lon) {
		lat, lon = *p.Lat, *p.Lon
	}
	radius := s.cfg.Geo.RadiusKM

	dLat := radius / kmPerDegree
	dLon := radius / (kmPerDegree * math.Max(math.Cos(lat*math.Pi/180), 1e-6))

	rows, err := s.users.WithinBox(ctx, userID, lat-dLat, lat+dLat, lon-dLon, lon+dLon)
	if err != nil {
		s.appCtx.Logger.ErrorContext(ctx, "WithinBox failed", "err", err)
		return nil, err
	}

	out := make([]NearbyUser, 0, len(rows))
	for _, r := range rows {
		if r.Latitude == nil || r.Longitude == nil {
			continue
		}
		d := Haversine(lat, lon, *r.Latitude, *r.Longitude)
		if d > radius {
			continue
		}
		out = append(out, NearbyUser{
			ID:         r.ID,
			Name:       r.Name,
			Age:        r.Age,
			Gender:     r.Gender,
			Image:      r.Image,
			Style:      r.Style,
			Location:   r.LocationName,
			Latitude:   *r.Latitude,
			Longitude:  *r.Longitude,
			DistanceKM: math.Round(d*100) / 100,
		})
	}

	slices.SortStableFunc(out, func(a, b NearbyUser) int {
		return cmp.Compare(a.DistanceKM, b.DistanceKM)
	})
	if len(out) > s.cfg.Geo.ResultLimit {
		out = out[:s.cfg.Geo.ResultLimit]
	}
	return out, nil
}

// Haversine returns the great-circle distance in km between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func validCoord(lat, lon float64) bool {
	return !math.IsNaN(lat) && !math.IsNaN(lon) && lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
