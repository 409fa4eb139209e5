// Package geocode resolves free-form addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

const (
	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

// Geocoder resolves an address to candidate coordinates, best match first.
// An empty result with a nil error means the address matched nothing.
type Geocoder interface {
	Resolve(ctx context.Context, address string) ([]domain.Coordinate, error)
}

// Error describes a failed geocoding call. StatusCode is the provider's HTTP
// status when one was received, otherwise zero.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode: %s: %v", e.Message, e.Err)
	}
	return "geocode: " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Doer sends an HTTP request.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls a Google Geocoding compatible JSON API.
type Client struct {
	endpoint string
	apiKey   string
	http     Doer
	logger   *slog.Logger
}

// NewClient constructs a geocoding client.
func NewClient(endpoint, apiKey string, doer Doer, logger *slog.Logger) (*Client, error) {
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("parse geocode url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{endpoint: endpoint, apiKey: apiKey, http: doer, logger: logger}, nil
}

// Resolve looks up address.
func (c *Client) Resolve(ctx context.Context, address string) ([]domain.Coordinate, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &Error{Message: "invalid endpoint", Err: err}
	}
	q := u.Query()
	q.Set("address", address)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "geocode: unexpected status", slog.Int("status", resp.StatusCode))
		return nil, &Error{StatusCode: resp.StatusCode, Message: fmt.Sprintf("provider returned %d", resp.StatusCode)}
	}

	var payload apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: "decode response", Err: err}
	}
	return convertResults(payload)
}

type apiResponse struct {
	Status       string      `json:"status"`
	ErrorMessage string      `json:"error_message"`
	Results      []apiResult `json:"results"`
}

type apiResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

func convertResults(payload apiResponse) ([]domain.Coordinate, error) {
	switch payload.Status {
	case statusOK:
		out := make([]domain.Coordinate, 0, len(payload.Results))
		for _, r := range payload.Results {
			out = append(out, domain.Coordinate{
				Lat: r.Geometry.Location.Lat,
				Lng: r.Geometry.Location.Lng,
			})
		}
		return out, nil
	case statusZeroResults:
		return []domain.Coordinate{}, nil
	default:
		msg := payload.Status
		if payload.ErrorMessage != "" {
			msg = payload.Status + ": " + payload.ErrorMessage
		}
		if msg == "" {
			msg = "missing status"
		}
		return nil, &Error{StatusCode: http.StatusBadGateway, Message: msg}
	}
}
