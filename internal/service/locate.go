package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/portion-finder/internal/apperr"
	"github.com/Clark-Hu/portion-finder/internal/directory"
	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/geocode"
	"github.com/Clark-Hu/portion-finder/internal/rating"
	"github.com/Clark-Hu/portion-finder/internal/upstream"
)

const (
	providerGeocoder  = "geocoder"
	providerDirectory = "directory"
)

// LocationOptions tune the lookup.
type LocationOptions struct {
	RadiusMeters int
	// Concurrency bounds parallel rating lookups per request.
	Concurrency int
	// SiteTimeout bounds each site's rating lookup.
	SiteTimeout time.Duration
}

// LocationService turns an address or coordinate into nearby rated sites.
type LocationService struct {
	geocoder  Geocoder
	directory Directory
	ratings   RatingReader
	opts      LocationOptions
	logger    *slog.Logger
}

// NewLocationService wires the lookup collaborators.
func NewLocationService(g Geocoder, d Directory, ratings RatingReader, opts LocationOptions, logger *slog.Logger) *LocationService {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = 100000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationService{
		geocoder:  g,
		directory: d,
		ratings:   ratings,
		opts:      opts,
		logger:    logger,
	}
}

// LocateInput is either an address or a coordinate pair. A non-blank
// address wins when both are present.
type LocateInput struct {
	Address string
	Lat     *float64
	Lng     *float64
}

// LocateResult is the enriched site list and the coordinate it was searched around.
type LocateResult struct {
	Coordinate domain.Coordinate
	Sites      []domain.EnrichedSite
}

// Locate resolves the input, searches the directory and attaches rating
// aggregates. Sites keep directory order.
func (s *LocationService) Locate(ctx context.Context, in LocateInput) (*LocateResult, error) {
	center, err := s.resolve(ctx, in)
	if err != nil {
		locateTotal.WithLabelValues(outcome(err)).Inc()
		return nil, err
	}

	sites, err := s.directory.Search(ctx, center, s.opts.RadiusMeters)
	if err != nil {
		appErr := upstreamError(providerDirectory, err)
		s.logger.WarnContext(ctx, "directory search failed",
			slog.Float64("lat", center.Lat),
			slog.Float64("lng", center.Lng),
			slog.String("error", err.Error()),
		)
		locateTotal.WithLabelValues(outcome(appErr)).Inc()
		return nil, appErr
	}

	enriched := s.enrich(ctx, sites)
	locateTotal.WithLabelValues("ok").Inc()
	return &LocateResult{Coordinate: center, Sites: enriched}, nil
}

func (s *LocationService) resolve(ctx context.Context, in LocateInput) (domain.Coordinate, error) {
	if address := strings.TrimSpace(in.Address); address != "" {
		candidates, err := s.geocoder.Resolve(ctx, address)
		if err != nil {
			s.logger.WarnContext(ctx, "geocode failed", slog.String("error", err.Error()))
			return domain.Coordinate{}, upstreamError(providerGeocoder, err)
		}
		if len(candidates) == 0 {
			return domain.Coordinate{}, apperr.NotFound("Address not found")
		}
		return candidates[0], nil
	}

	if in.Lat == nil || in.Lng == nil {
		return domain.Coordinate{}, apperr.InvalidInput("Address or coordinates must be provided")
	}
	center := domain.Coordinate{Lat: *in.Lat, Lng: *in.Lng}
	if err := center.Validate(); err != nil {
		return domain.Coordinate{}, apperr.InvalidInput(err.Error())
	}
	return center, nil
}

// enrich looks up every site's ratings in parallel. A failed lookup marks
// that site RatingUnavailable and never fails the batch.
func (s *LocationService) enrich(ctx context.Context, sites []domain.Site) []domain.EnrichedSite {
	out := make([]domain.EnrichedSite, len(sites))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, site := range sites {
		g.Go(func() error {
			out[i] = s.enrichOne(ctx, site)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *LocationService) enrichOne(ctx context.Context, site domain.Site) domain.EnrichedSite {
	if s.opts.SiteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.SiteTimeout)
		defer cancel()
	}

	ratings, err := s.ratings.ListBySite(ctx, site.ID)
	if err != nil {
		enrichmentFailures.Inc()
		s.logger.WarnContext(ctx, "rating lookup failed",
			slog.Int64("site_id", site.ID),
			slog.String("error", err.Error()),
		)
		return domain.EnrichedSite{Site: site, RatingUnavailable: true}
	}
	return domain.EnrichedSite{Site: site, Rating: rating.Aggregate(site.ID, ratings)}
}

// upstreamError maps an adapter failure to a client-facing error, passing the
// provider's status and message through when it supplied them. A provider 404
// becomes 502 so it cannot be read as "address not found".
func upstreamError(provider string, err error) *apperr.AppError {
	var (
		gerr *geocode.Error
		derr *directory.Error
	)
	switch {
	case errors.As(err, &gerr) && gerr.StatusCode != 0:
		return apperr.Upstream(provider, providerStatus(gerr.StatusCode), gerr.Message, err)
	case errors.As(err, &derr) && derr.StatusCode != 0:
		return apperr.Upstream(provider, providerStatus(derr.StatusCode), derr.Message, err)
	default:
		return apperr.Upstream(provider, upstream.StatusFor(err), "", err)
	}
}

func providerStatus(status int) int {
	if status == http.StatusNotFound {
		return http.StatusBadGateway
	}
	return status
}

func outcome(err error) string {
	var appErr *apperr.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
