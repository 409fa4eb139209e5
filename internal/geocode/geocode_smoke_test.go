package geocode

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Clark-Hu/portion-finder/internal/logger"
)

// TestClientSmoke checks a live (or mock) geocoding endpoint when one is configured.
func TestClientSmoke(t *testing.T) {
	endpoint := os.Getenv("GEOCODE_URL")
	if endpoint == "" {
		t.Skip("GEOCODE_URL not provided")
	}
	c, err := NewClient(endpoint, os.Getenv("GEOCODE_API_KEY"), &http.Client{Timeout: 3 * time.Second}, logger.Discard())
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coords, err := c.Resolve(ctx, "New York, NY")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(coords) == 0 {
		t.Fatalf("expected at least one candidate")
	}
}
