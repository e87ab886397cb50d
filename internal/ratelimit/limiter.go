// Package ratelimit provides the fixed-window limiter that guards outbound API calls.
//
// The limiter blocks instead of rejecting. Once a window's budget is spent the next
// caller sleeps a full window duration, whatever time is left in the current one,
// and then opens a fresh window counting itself as its first call.
package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxPerWindow is the number of calls admitted per window.
	DefaultMaxPerWindow = 10

	// DefaultWindow is the window length.
	DefaultWindow = time.Second
)

// Limiter is a fixed-window limiter. It is safe for concurrent use; a single
// mutex covers the whole of Acquire, including the overflow sleep.
type Limiter struct {
	mu          sync.Mutex
	max         int
	window      time.Duration
	windowStart time.Time
	count       int

	admitted  atomic.Int64
	throttled atomic.Int64
	warn      rate.Sometimes

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)
}

// Stats is a snapshot of limiter activity.
type Stats struct {
	MaxPerWindow int           `json:"max_per_window"`
	Window       time.Duration `json:"window"`
	Admitted     int64         `json:"admitted"`
	Throttled    int64         `json:"throttled"`
}

// New creates a limiter admitting maxPerWindow calls per window.
// Non-positive arguments fall back to the defaults.
func New(maxPerWindow int, window time.Duration) *Limiter {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		max:    maxPerWindow,
		window: window,
		warn:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Acquire blocks until the caller may proceed. It never fails: if ctx is
// cancelled while waiting the wait ends early and Acquire still returns, leaving
// the cancellation for the caller's next blocking operation to observe.
func (l *Limiter) Acquire(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.windowStart) > l.window {
		l.windowStart = now
		l.count = 0
	}

	l.count++
	if l.count <= l.max {
		l.admitted.Add(1)
		return
	}

	l.throttled.Add(1)
	l.warn.Do(func() {
		log.Warn().
			Int("max_per_window", l.max).
			Dur("window", l.window).
			Msg("Rate limit reached, delaying outbound call")
	})

	l.sleep(ctx, l.window)

	l.windowStart = l.now()
	l.count = 1
	l.admitted.Add(1)
}

// Stats returns a snapshot of the limiter counters. It does not wait for a
// sleeping Acquire.
func (l *Limiter) Stats() Stats {
	return Stats{
		MaxPerWindow: l.max,
		Window:       l.window,
		Admitted:     l.admitted.Load(),
		Throttled:    l.throttled.Load(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
