package httpserver

import (
	"net/http"

	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/rating"
	"github.com/Clark-Hu/portion-finder/internal/service"
)

type locateRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

type locateResponse struct {
	Sites      []siteResponse    `json:"sites"`
	Coordinate domain.Coordinate `json:"coordinate"`
}

type siteResponse struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Address           string            `json:"address"`
	Coordinate        domain.Coordinate `json:"coordinate"`
	AverageRating     float64           `json:"averageRating"`
	TotalRatings      int64             `json:"totalRatings"`
	RatingTier        rating.Tier       `json:"ratingTier"`
	RatingUnavailable bool              `json:"ratingUnavailable,omitempty"`
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, r, err)
		return
	}

	result, err := s.locator.Locate(r.Context(), service.LocateInput{
		Address: req.Address,
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		s.respondAppError(w, r, err)
		return
	}

	sites := make([]siteResponse, 0, len(result.Sites))
	for _, site := range result.Sites {
		sites = append(sites, toSiteResponse(site))
	}
	s.respondJSON(w, r, http.StatusOK, locateResponse{
		Sites:      sites,
		Coordinate: result.Coordinate,
	})
}

func toSiteResponse(site domain.EnrichedSite) siteResponse {
	resp := siteResponse{
		ID:            site.ID,
		Name:          site.Name,
		Address:       site.Address,
		Coordinate:    site.Coordinate,
		AverageRating: rating.RoundToOneDecimal(site.Rating.Average),
		TotalRatings:  site.Rating.Count,
		RatingTier:    rating.TierFor(site.Rating),
	}
	if site.RatingUnavailable {
		resp.RatingUnavailable = true
		resp.RatingTier = rating.TierUnavailable
	}
	return resp
}
