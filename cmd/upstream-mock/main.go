package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Clark-Hu/portion-finder/internal/logger"
)

type location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type siteEntry struct {
	RestaurantNumber int64  `json:"restaurantNumber"`
	RestaurantName   string `json:"restaurantName"`
	Addresses        []struct {
		AddressLine1       string  `json:"addressLine1"`
		Locality           string  `json:"locality"`
		AdministrativeArea string  `json:"administrativeArea"`
		PostalCode         string  `json:"postalCode"`
		Latitude           float64 `json:"latitude"`
		Longitude          float64 `json:"longitude"`
	} `json:"addresses"`
}

// fixture maps lower-cased addresses to coordinates and lists the sites the
// directory returns for every query.
type fixture struct {
	Addresses map[string]location `json:"addresses"`
	Sites     []siteEntry         `json:"sites"`
}

const builtinFixture = `{
  "addresses": {"new york, ny": {"lat": 40.7128, "lng": -74.006}},
  "sites": [
    {"restaurantNumber": 101, "restaurantName": "Broadway", "addresses": [{"addressLine1": "200 Broadway", "locality": "New York", "administrativeArea": "NY", "postalCode": "10038", "latitude": 40.7101, "longitude": -74.0087}]},
    {"restaurantNumber": 202, "restaurantName": "Park Row", "addresses": [{"addressLine1": "1 Park Row", "locality": "New York", "administrativeArea": "NY", "postalCode": "10038", "latitude": 40.7115, "longitude": -74.0059}]},
    {"restaurantNumber": 303, "restaurantName": "Fulton Street", "addresses": [{"addressLine1": "150 Fulton St", "locality": "New York", "administrativeArea": "NY", "postalCode": "10038", "latitude": 40.7103, "longitude": -74.0094}]}
  ]
}`

func main() {
	var (
		port     = flag.String("port", "9099", "port to listen on")
		data     = flag.String("data", "", "path to fixture file; empty uses the built-in New York fixture")
		apiKey   = flag.String("key", "", "required api key; empty accepts any")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logger.New("upstream-mock", *logLevel)

	fx, err := loadFixture(*data)
	if err != nil {
		log.Error("load fixture", slog.String("error", err.Error()))
		os.Exit(1)
	}

	addr := ":" + *port
	log.Info("mock upstream listening",
		slog.String("addr", addr),
		slog.Int("addresses", len(fx.Addresses)),
		slog.Int("sites", len(fx.Sites)),
	)
	if err := http.ListenAndServe(addr, newRouter(fx, *apiKey, log)); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func loadFixture(path string) (fixture, error) {
	raw := []byte(builtinFixture)
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return fixture{}, fmt.Errorf("read fixture: %w", err)
		}
		raw = b
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return fixture{}, fmt.Errorf("parse fixture: %w", err)
	}
	normalized := make(map[string]location, len(fx.Addresses))
	for k, v := range fx.Addresses {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	fx.Addresses = normalized
	return fx, nil
}

func newRouter(fx fixture, apiKey string, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/geocode/json", func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" && r.URL.Query().Get("key") != apiKey {
			writeJSON(w, http.StatusOK, map[string]string{"status": "REQUEST_DENIED", "error_message": "The provided API key is invalid."})
			return
		}
		address := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("address")))
		loc, ok := fx.Addresses[address]
		log.Debug("geocode", slog.String("address", address), slog.Bool("hit", ok))
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ZERO_RESULTS", "results": []any{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "OK",
			"results": []any{map[string]any{"geometry": map[string]any{"location": loc}}},
		})
	})

	r.Post("/restaurant", func(w http.ResponseWriter, r *http.Request) {
		if apiKey != "" && r.Header.Get("Ocp-Apim-Subscription-Key") != apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Access denied due to invalid subscription key."})
			return
		}
		var body struct {
			PageSize int `json:"pageSize"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		sites := fx.Sites
		if body.PageSize > 0 && len(sites) > body.PageSize {
			sites = sites[:body.PageSize]
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": sites})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
