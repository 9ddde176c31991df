package match

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LikesTotal counts like requests by result: new, repeat.
	LikesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fashionjiok_likes_total",
		Help: "Like requests by result",
	}, []string{"result"})

	// MatchesTotal counts match confirmations by outcome: created, existing.
	MatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fashionjiok_matches_total",
		Help: "Match confirmations by outcome",
	}, []string{"outcome"})

	// RoomsTotal counts room resolutions by outcome: created, existing.
	RoomsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fashionjiok_rooms_total",
		Help: "Chat room resolutions by outcome",
	}, []string{"outcome"})

	// DeckSize records how many candidates each deck request returned.
	DeckSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fashionjiok_deck_size",
		Help:    "Candidates returned per deck request",
		Buckets: []float64{0, 1, 5, 10, 20, 50},
	})
)
