package ratelimit

import (
	"context"
	"sync"
	"time"
)

const defaultSweepInterval = time.Minute

type window struct {
	start time.Time
	count int
}

// Memory is a process-local fixed-window limiter. State is lost on restart
// and is not shared between replicas; use Redis for that.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window

	window  time.Duration
	limit   int
	maxKeys int
	now     Clock
}

// MemoryOption customises a Memory limiter.
type MemoryOption func(*Memory)

// WithClock overrides the time source.
func WithClock(c Clock) MemoryOption {
	return func(m *Memory) {
		m.now = c
	}
}

// WithMaxKeys bounds the number of tracked keys. Zero or negative disables the bound.
func WithMaxKeys(n int) MemoryOption {
	return func(m *Memory) {
		m.maxKeys = n
	}
}

// NewMemory builds a limiter admitting limit calls per key per window.
func NewMemory(size time.Duration, limit int, opts ...MemoryOption) *Memory {
	m := &Memory{
		windows: make(map[string]*window),
		window:  size,
		limit:   limit,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Check increments the counter for key and reports whether the call is admitted.
func (m *Memory) Check(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.window {
		if !ok {
			m.makeRoomLocked(now)
			w = &window{}
			m.windows[key] = w
		}
		w.start = now
		w.count = 0
	}
	w.count++

	return Decision{
		Allowed: w.count <= m.limit,
		Count:   w.count,
		Limit:   m.limit,
		ResetAt: w.start.Add(m.window),
	}, nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

// Sweep drops every record whose window has elapsed and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(now)
}

// Run sweeps expired records every interval until ctx is done.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Memory) sweepLocked(now time.Time) int {
	removed := 0
	for key, w := range m.windows {
		if now.Sub(w.start) >= m.window {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

// makeRoomLocked keeps the map under maxKeys before a new key is added.
func (m *Memory) makeRoomLocked(now time.Time) {
	if m.maxKeys <= 0 || len(m.windows) < m.maxKeys {
		return
	}
	if m.sweepLocked(now) > 0 {
		return
	}

	var (
		oldestKey   string
		oldestStart time.Time
		found       bool
	)
	for key, w := range m.windows {
		if !found || w.start.Before(oldestStart) {
			oldestKey, oldestStart, found = key, w.start, true
		}
	}
	if found {
		delete(m.windows, oldestKey)
	}
}
