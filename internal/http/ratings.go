package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
	"github.com/Clark-Hu/portion-finder/internal/rating"
	"github.com/Clark-Hu/portion-finder/internal/service"
)

type ratingRequest struct {
	Value   int    `json:"value"`
	Channel string `json:"channel"`
}

type ratingResponse struct {
	ID        string    `json:"id"`
	SiteID    int64     `json:"siteId"`
	Value     int       `json:"value"`
	Channel   string    `json:"channel,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type ratingListResponse struct {
	Ratings       []ratingResponse `json:"ratings"`
	AverageRating float64          `json:"averageRating"`
	TotalRatings  int64            `json:"totalRatings"`
	RatingTier    rating.Tier      `json:"ratingTier"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.siteIDParam(w, r)
	if !ok {
		return
	}

	var req ratingRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	result, err := s.ratings.Submit(r.Context(), service.SubmitInput{
		SiteID:    siteID,
		Value:     req.Value,
		Channel:   req.Channel,
		ClientKey: clientKey(r),
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	setRateLimitHeaders(w, result.RateLimit)
	s.respondJSON(w, r, http.StatusCreated, toRatingResponse(result.Rating))
}

func (s *Server) handleListRatings(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.siteIDParam(w, r)
	if !ok {
		return
	}

	list, err := s.ratings.List(r.Context(), siteID)
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	items := make([]ratingResponse, 0, len(list.Ratings))
	for _, rt := range list.Ratings {
		items = append(items, toRatingResponse(rt))
	}
	s.respondJSON(w, r, http.StatusOK, ratingListResponse{
		Ratings:       items,
		AverageRating: rating.RoundToOneDecimal(list.Aggregate.Average),
		TotalRatings:  list.Aggregate.Count,
		RatingTier:    rating.TierFor(list.Aggregate),
	})
}

func (s *Server) siteIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "siteId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, r, http.StatusBadRequest, "INVALID_INPUT", "siteId must be a positive integer")
		return 0, false
	}
	return id, true
}

func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining()))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
}

func toRatingResponse(rt domain.Rating) ratingResponse {
	return ratingResponse{
		ID:        rt.ID,
		SiteID:    rt.SiteID,
		Value:     rt.Value,
		Channel:   string(rt.Channel),
		CreatedAt: rt.CreatedAt,
	}
}
