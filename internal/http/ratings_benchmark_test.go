package httpserver

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/portion-finder/internal/config"
	"github.com/Clark-Hu/portion-finder/internal/logger"
	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
	"github.com/Clark-Hu/portion-finder/internal/repository"
	"github.com/Clark-Hu/portion-finder/internal/service"
	"github.com/Clark-Hu/portion-finder/internal/store/storetest"
)

func attachSiteParam(r *http.Request, siteID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("siteId", siteID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func BenchmarkHandleSubmitRating(b *testing.B) {
	st := storetest.New(b)
	repo := repository.New(st)
	log := logger.Discard()
	ratings := service.NewRatingService(repo.Ratings, ratelimit.NewMemory(15*time.Minute, 5), log)
	srv := New(config.Config{Port: "0"}, st, &fakeLocator{}, ratings, log)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/sites/101/ratings", bytes.NewReader([]byte(`{"value":8}`)))
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.1.%d.%d", i/256%256, i%256))
		req = attachSiteParam(req, "101")
		rec := httptest.NewRecorder()

		srv.handleSubmitRating(rec, req)
		if rec.Code != http.StatusCreated && rec.Code != http.StatusTooManyRequests {
			b.Fatalf("unexpected status %d", rec.Code)
		}
	}
}

func TestHandleSubmitRating_DirectWithRouteParam(t *testing.T) {
	ratings := &fakeRatings{submitErr: fmt.Errorf("boom")}
	srv := newHandlerServer(&fakeLocator{}, ratings, fakeHealth{})

	req := httptest.NewRequest(http.MethodPost, "/sites/42/ratings", bytes.NewReader([]byte(`{"value":3}`)))
	req = attachSiteParam(req, "42")
	rec := httptest.NewRecorder()
	srv.handleSubmitRating(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if ratings.submitted.SiteID != 42 {
		t.Fatalf("site = %d, want 42", ratings.submitted.SiteID)
	}
}
