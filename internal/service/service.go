// Package service holds the location lookup and rating ingestion use cases.
package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
)

// Geocoder resolves an address to candidate coordinates, best match first.
type Geocoder interface {
	Resolve(ctx context.Context, address string) ([]domain.Coordinate, error)
}

// Directory finds sites near a coordinate, nearest first.
type Directory interface {
	Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.Site, error)
}

// RatingReader reads a site's ratings.
type RatingReader interface {
	ListBySite(ctx context.Context, siteID int64) ([]domain.Rating, error)
}

// RatingStore reads and appends ratings.
type RatingStore interface {
	RatingReader
	Insert(ctx context.Context, rating domain.Rating) error
}

// Limiter gates rating submissions per client key.
type Limiter interface {
	Check(ctx context.Context, key string) (ratelimit.Decision, error)
}

var (
	enrichmentFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "site_enrichment_failures_total",
		Help: "Sites returned without a rating aggregate because the lookup failed.",
	})

	locateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "locate_requests_total",
		Help: "Location lookups by outcome.",
	}, []string{"outcome"})

	ratingsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratings_submitted_total",
		Help: "Ratings stored, by submission channel.",
	}, []string{"channel"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rating_submissions_rate_limited_total",
		Help: "Rating submissions rejected by the rate limiter.",
	})
)

// channelLabel keeps the metrics label set bounded.
func channelLabel(c domain.Channel) string {
	switch {
	case c == "":
		return "none"
	case c.Known():
		return string(c)
	default:
		return "other"
	}
}
