package httpserver

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Clark-Hu/portion-finder/internal/ratelimit"
)

func TestClientKey(t *testing.T) {
	huge := strings.Repeat("a", 512<<10)
	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{name: "first forwarded entry", xff: "203.0.113.9, 10.0.0.1", realIP: "198.51.100.2", remoteAddr: "10.0.0.1:5555", want: "203.0.113.9"},
		{name: "forwarded entry trimmed", xff: "  203.0.113.9  ", want: "203.0.113.9"},
		{name: "ipv6 canonicalised", xff: "2001:DB8:0:0:0:0:0:1", want: "2001:db8::1"},
		{name: "empty forwarded entry falls through", xff: " , 10.0.0.1", realIP: "198.51.100.2", want: "198.51.100.2"},
		{name: "garbage forwarded entry falls through", xff: "not-an-ip", realIP: "198.51.100.2", want: "198.51.100.2"},
		{name: "oversized forwarded entry falls through", xff: huge, remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "garbage real ip falls through", realIP: huge, remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "real ip", realIP: "198.51.100.2", remoteAddr: "10.0.0.1:5555", want: "198.51.100.2"},
		{name: "remote host", remoteAddr: "10.0.0.1:5555", want: "10.0.0.1"},
		{name: "remote ipv6 host", remoteAddr: "[::1]:5555", want: "::1"},
		{name: "remote without port", remoteAddr: "10.0.0.1", want: "10.0.0.1"},
		{name: "remote garbage", remoteAddr: "pipe", want: "unknown"},
		{name: "nothing", want: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/sites/1/ratings", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := clientKey(req); got != tt.want {
				t.Fatalf("clientKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientKey_ForgedHeadersShareConnectionBucket(t *testing.T) {
	limiter := ratelimit.NewMemory(15*time.Minute, 5)

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/sites/1/ratings", nil)
		req.RemoteAddr = "192.0.2.50:4000"
		req.Header.Set("X-Forwarded-For", strings.Repeat(string(rune('a'+i)), 512<<10))
		if _, err := limiter.Check(context.Background(), clientKey(req)); err != nil {
			t.Fatalf("Check: %v", err)
		}
	}

	if got := limiter.Len(); got != 1 {
		t.Fatalf("tracked keys = %d, want 1", got)
	}
	d, err := limiter.Check(context.Background(), "192.0.2.50")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if d.Count != 4 {
		t.Fatalf("count = %d, want 4", d.Count)
	}
}
