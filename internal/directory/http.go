package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

const subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// Doer sends an HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPDirectory queries the restaurant directory REST API.
type HTTPDirectory struct {
	endpoint string
	apiKey   string
	opts     SearchOptions
	http     Doer
	logger   *slog.Logger
}

// NewHTTPDirectory constructs an HTTP-backed directory.
func NewHTTPDirectory(endpoint, apiKey string, opts SearchOptions, doer Doer, logger *slog.Logger) *HTTPDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPDirectory{
		endpoint: endpoint,
		apiKey:   apiKey,
		opts:     opts,
		http:     doer,
		logger:   logger,
	}
}

// Search posts a nearby query and maps the response into sites.
func (d *HTTPDirectory) Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.Site, error) {
	body, err := json.Marshal(newSearchRequest(center, radiusMeters, d.opts))
	if err != nil {
		return nil, &Error{Message: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(subscriptionKeyHeader, d.apiKey)

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, &Error{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := providerMessage(resp.Body)
		d.logger.WarnContext(ctx, "directory: unexpected status",
			slog.Int("status", resp.StatusCode),
			slog.String("message", msg),
		)
		if msg == "" {
			msg = fmt.Sprintf("provider returned %d", resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, Message: msg}
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "decode response", Err: err}
	}

	sites, skipped := convertRestaurants(payload.Data)
	if skipped > 0 {
		d.logger.WarnContext(ctx, "directory: skipped restaurants without address", slog.Int("count", skipped))
	}
	return sites, nil
}

type searchRequest struct {
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Radius             int      `json:"radius"`
	RestaurantStatuses []string `json:"restaurantStatuses"`
	ConceptIDs         []string `json:"conceptIds"`
	OrderBy            string   `json:"orderBy"`
	OrderByDescending  bool     `json:"orderByDescending"`
	PageSize           int      `json:"pageSize"`
	PageIndex          int      `json:"pageIndex"`
	Embeds             struct {
		AddressTypes []string `json:"addressTypes"`
	} `json:"embeds"`
}

func newSearchRequest(center domain.Coordinate, radiusMeters int, opts SearchOptions) searchRequest {
	req := searchRequest{
		Latitude:           center.Lat,
		Longitude:          center.Lng,
		Radius:             radiusMeters,
		RestaurantStatuses: opts.Statuses,
		ConceptIDs:         opts.ConceptIDs,
		OrderBy:            "distance",
		OrderByDescending:  false,
		PageSize:           opts.PageSize,
		PageIndex:          0,
	}
	req.Embeds.AddressTypes = opts.AddressTypes
	return req
}

type searchResponse struct {
	Data []restaurant `json:"data"`
}

type restaurant struct {
	RestaurantNumber int64     `json:"restaurantNumber"`
	RestaurantName   string    `json:"restaurantName"`
	Addresses        []address `json:"addresses"`
}

type address struct {
	AddressLine1       string  `json:"addressLine1"`
	Locality           string  `json:"locality"`
	AdministrativeArea string  `json:"administrativeArea"`
	PostalCode         string  `json:"postalCode"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
}

// convertRestaurants maps directory entries to sites in response order using
// the primary (first) address. Entries without any address are skipped.
func convertRestaurants(data []restaurant) ([]domain.Site, int) {
	sites := make([]domain.Site, 0, len(data))
	skipped := 0
	for _, r := range data {
		if len(r.Addresses) == 0 {
			skipped++
			continue
		}
		a := r.Addresses[0]
		sites = append(sites, domain.Site{
			ID:         r.RestaurantNumber,
			Name:       r.RestaurantName,
			Address:    FormatAddress(a.AddressLine1, a.Locality, a.AdministrativeArea, a.PostalCode),
			Coordinate: domain.Coordinate{Lat: a.Latitude, Lng: a.Longitude},
		})
	}
	return sites, skipped
}

// providerMessage extracts {"error": "..."} or {"message": "..."} from an error body.
func providerMessage(body io.Reader) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Error != "" {
		return payload.Error
	}
	return payload.Message
}
