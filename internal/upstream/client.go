// Package upstream provides the outbound HTTP client shared by the provider
// adapters: bounded timeouts, an optional request throttle and a circuit breaker.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// maxErrorBody caps how much of a 5xx body is kept for the caller.
const maxErrorBody = 64 << 10

// ErrCircuitOpen is returned while the breaker rejects calls to a provider.
var ErrCircuitOpen = errors.New("upstream: circuit open")

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "upstream_requests_total",
		Help: "Outbound provider requests by provider and status code.",
	}, []string{"provider", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "upstream_request_duration_seconds",
		Help:    "Outbound provider request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_circuit_breaker_state",
		Help: "Circuit breaker state per provider (0=closed, 1=half-open, 2=open).",
	}, []string{"provider"})
)

// Options configures a Client.
type Options struct {
	// Name identifies the provider in logs and metrics.
	Name    string
	Timeout time.Duration
	// MaxQPS throttles outbound calls; zero disables throttling.
	MaxQPS float64

	BreakerFailureRatio float64
	BreakerMinRequests  uint32
	BreakerOpenTimeout  time.Duration

	Logger *slog.Logger
}

// Client sends requests to one provider.
type Client struct {
	name    string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Client from opts.
func New(opts Options) *Client {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if opts.BreakerFailureRatio <= 0 {
		opts.BreakerFailureRatio = 0.5
	}
	if opts.BreakerMinRequests == 0 {
		opts.BreakerMinRequests = 5
	}

	c := &Client{
		name: opts.Name,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
				MaxIdleConnsPerHost:   16,
			},
		},
		logger: logger.With(slog.String("provider", opts.Name)),
	}
	if opts.MaxQPS > 0 {
		burst := int(opts.MaxQPS)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.MaxQPS), burst)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.BreakerMinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.BreakerFailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state change",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			breakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})
	breakerState.WithLabelValues(opts.Name).Set(0)

	return c
}

// serverError carries a 5xx response through the breaker so it counts as a
// failure while the caller still sees the provider's status.
type serverError struct {
	resp *http.Response
}

func (e *serverError) Error() string {
	return fmt.Sprintf("provider returned %d", e.resp.StatusCode)
}

// Do sends req. Any HTTP response, including 4xx and 5xx, is returned with a
// nil error; errors are transport failures, throttle cancellation or
// ErrCircuitOpen.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s throttle: %w", c.name, err)
		}
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			if readErr != nil {
				c.logger.WarnContext(ctx, "read provider error body", slog.String("error", readErr.Error()))
			}
			_ = resp.Body.Close()
			resp.Body = io.NopCloser(bytes.NewReader(body))
			return nil, &serverError{resp: resp}
		}
		return resp, nil
	})
	requestDuration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())

	var srvErr *serverError
	switch {
	case err == nil:
		requestsTotal.WithLabelValues(c.name, strconv.Itoa(resp.StatusCode)).Inc()
		return resp, nil
	case errors.As(err, &srvErr):
		requestsTotal.WithLabelValues(c.name, strconv.Itoa(srvErr.resp.StatusCode)).Inc()
		c.logger.WarnContext(ctx, "provider server error", slog.Int("status", srvErr.resp.StatusCode))
		return srvErr.resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		requestsTotal.WithLabelValues(c.name, "circuit_open").Inc()
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	default:
		requestsTotal.WithLabelValues(c.name, "error").Inc()
		if ctx.Err() == nil {
			c.logger.WarnContext(ctx, "provider request failed", slog.String("error", err.Error()))
		}
		return nil, err
	}
}

// State reports the breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// StatusFor maps a client error to the HTTP status reported to callers:
// 503 while the breaker is open, 504 on deadline, 502 otherwise.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
