package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/Clark-Hu/portion-finder/internal/apperr"
	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/rating"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
)

// SubmitInput is a rating submission. ClientKey identifies the caller for
// rate limiting only and is never stored.
type SubmitInput struct {
	SiteID    int64  `validate:"gt=0"`
	Value     int    `validate:"min=1,max=10"`
	Channel   string `validate:"max=64"`
	ClientKey string
}

// SubmitResult is the stored rating plus the limiter decision that admitted it.
type SubmitResult struct {
	Rating    domain.Rating
	RateLimit ratelimit.Decision
}

// RatingList is the read view of a site's ratings.
type RatingList struct {
	SiteID    int64
	Ratings   []domain.Rating
	Aggregate domain.RatingAggregate
}

// RatingService appends ratings behind the rate limiter.
type RatingService struct {
	store    RatingStore
	limiter  Limiter
	validate *validator.Validate
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// NewRatingService wires the ingestion collaborators.
func NewRatingService(store RatingStore, limiter Limiter, logger *slog.Logger) *RatingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RatingService{
		store:    store,
		limiter:  limiter,
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

// Submit checks the limiter, validates and appends a rating. Rejected and
// invalid submissions write nothing; every call consumes a limiter slot.
func (s *RatingService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	decision, err := s.limiter.Check(ctx, in.ClientKey)
	if err != nil {
		s.logger.ErrorContext(ctx, "rate limiter unavailable", slog.String("error", err.Error()))
		return nil, apperr.Internal(fmt.Errorf("rate limit check: %w", err))
	}
	if !decision.Allowed {
		rateLimited.Inc()
		s.logger.InfoContext(ctx, "rating submission rate limited",
			slog.String("client", in.ClientKey),
			slog.Int("count", decision.Count),
		)
		return nil, apperr.RateLimited(decision.Limit, decision.ResetAt, decision.RetryAfter(s.now()))
	}

	in.Channel = strings.TrimSpace(in.Channel)
	if err := s.validate.Struct(in); err != nil {
		return nil, apperr.InvalidInput(validationMessage(err))
	}

	r := domain.Rating{
		ID:        s.newID(),
		SiteID:    in.SiteID,
		Value:     in.Value,
		Channel:   domain.Channel(in.Channel),
		CreatedAt: s.now().UTC(),
	}
	if err := s.store.Insert(ctx, r); err != nil {
		s.logger.ErrorContext(ctx, "insert rating failed",
			slog.Int64("site_id", r.SiteID),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Store(err)
	}

	ratingsSubmitted.WithLabelValues(channelLabel(r.Channel)).Inc()
	s.logger.InfoContext(ctx, "rating stored",
		slog.String("rating_id", r.ID),
		slog.Int64("site_id", r.SiteID),
		slog.Int("value", r.Value),
	)
	return &SubmitResult{Rating: r, RateLimit: decision}, nil
}

// List returns a site's ratings and their aggregate.
func (s *RatingService) List(ctx context.Context, siteID int64) (*RatingList, error) {
	if siteID <= 0 {
		return nil, apperr.InvalidInput("siteId must be a positive integer")
	}
	ratings, err := s.store.ListBySite(ctx, siteID)
	if err != nil {
		s.logger.ErrorContext(ctx, "list ratings failed",
			slog.Int64("site_id", siteID),
			slog.String("error", err.Error()),
		)
		return nil, apperr.Store(err)
	}
	return &RatingList{
		SiteID:    siteID,
		Ratings:   ratings,
		Aggregate: rating.Aggregate(siteID, ratings),
	}, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid rating"
	}
	switch fe := verrs[0]; fe.Field() {
	case "Value":
		return fmt.Sprintf("value must be an integer between %d and %d", domain.MinRatingValue, domain.MaxRatingValue)
	case "SiteID":
		return "siteId must be a positive integer"
	case "Channel":
		return "channel must be at most 64 characters"
	default:
		return fe.Error()
	}
}
