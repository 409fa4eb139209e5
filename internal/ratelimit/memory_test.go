package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemory_AdmitsUpToLimit(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(15*time.Minute, 5, WithClock(clock.Now))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d, err := lim.Check(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "call %d should be allowed", i)
		assert.Equal(t, i, d.Count)
		assert.Equal(t, 5-i, d.Remaining())
	}

	d, err := lim.Check(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining())
	assert.Equal(t, clock.Now().Add(15*time.Minute), d.ResetAt)
	assert.Equal(t, 15*time.Minute, d.RetryAfter(clock.Now()))
}

func TestNewMemory_UsesConfiguredWindow(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(90*time.Second, 1, WithClock(clock.Now))

	d, err := lim.Check(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(90*time.Second), d.ResetAt)
	assert.Equal(t, 1, lim.Len())
}

func TestMemory_RejectedCallsStillCount(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(time.Minute, 2, WithClock(clock.Now))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := lim.Check(ctx, "k")
		require.NoError(t, err)
	}
	d, err := lim.Check(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 5, d.Count)
	assert.False(t, d.Allowed)
}

func TestMemory_WindowBoundaryResets(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(time.Minute, 1, WithClock(clock.Now))
	ctx := context.Background()

	d, _ := lim.Check(ctx, "k")
	require.True(t, d.Allowed)

	clock.Advance(time.Minute - time.Millisecond)
	d, _ = lim.Check(ctx, "k")
	assert.False(t, d.Allowed, "still inside the window")

	clock.Advance(time.Millisecond)
	d, _ = lim.Check(ctx, "k")
	assert.True(t, d.Allowed, "window elapsed exactly")
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, clock.Now().Add(time.Minute), d.ResetAt)
}

func TestMemory_KeysAreIndependent(t *testing.T) {
	lim := NewMemory(time.Minute, 1, WithClock(newFakeClock().Now))
	ctx := context.Background()

	d, _ := lim.Check(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = lim.Check(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = lim.Check(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestMemory_SweepRemovesElapsedWindows(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(time.Minute, 5, WithClock(clock.Now))
	ctx := context.Background()

	_, _ = lim.Check(ctx, "old")
	clock.Advance(30 * time.Second)
	_, _ = lim.Check(ctx, "fresh")
	clock.Advance(30 * time.Second)

	assert.Equal(t, 1, lim.Sweep())
	assert.Equal(t, 1, lim.Len())
}

func TestMemory_MaxKeysEvictsOldest(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(time.Hour, 1, WithClock(clock.Now), WithMaxKeys(2))
	ctx := context.Background()

	_, _ = lim.Check(ctx, "first")
	clock.Advance(time.Second)
	_, _ = lim.Check(ctx, "second")
	clock.Advance(time.Second)
	_, _ = lim.Check(ctx, "third")

	assert.Equal(t, 2, lim.Len())

	// "first" was evicted, so it starts a fresh window.
	d, _ := lim.Check(ctx, "first")
	assert.True(t, d.Allowed)
	// "third" is still tracked.
	d, _ = lim.Check(ctx, "third")
	assert.False(t, d.Allowed)
}

func TestMemory_RunStopsOnCancel(t *testing.T) {
	clock := newFakeClock()
	lim := NewMemory(time.Millisecond, 1, WithClock(clock.Now))
	_, _ = lim.Check(context.Background(), "k")
	clock.Advance(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		lim.Run(ctx, time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return lim.Len() == 0 }, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMemory_ConcurrentChecksAdmitExactlyLimit(t *testing.T) {
	lim := NewMemory(time.Hour, 5)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		allowed atomic.Int64
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := lim.Check(ctx, "shared")
			if err == nil && d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 5, allowed.Load())
}

func BenchmarkMemoryCheck(b *testing.B) {
	lim := NewMemory(time.Minute, 1<<30, WithMaxKeys(10000))
	ctx := context.Background()
	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("10.0.%d.%d", i/256, i%256)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_, _ = lim.Check(ctx, keys[i%len(keys)])
			i++
		}
	})
}
