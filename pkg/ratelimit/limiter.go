package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter paces outgoing requests. It never retries anything; it only
// delays the next call.
type Limiter interface {
	// Allow reports whether a request may proceed now and records it if so
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset clears the limiter state
	Reset()
}

// New returns a limiter allowing requestsPerMinute calls per minute, or an
// unlimited one when requestsPerMinute is zero or less.
func New(requestsPerMinute int) Limiter {
	if requestsPerMinute <= 0 {
		return Unlimited{}
	}
	return NewSlidingWindow(requestsPerMinute, time.Minute)
}

// SlidingWindow implements a sliding window rate limiter. Pixabay counts
// requests over a rolling 60 second window, which this mirrors.
type SlidingWindow struct {
	windowSize  time.Duration
	maxRequests int
	requests    []time.Time
	now         func() time.Time
	mu          sync.Mutex
}

// NewSlidingWindow creates a new sliding window rate limiter
func NewSlidingWindow(maxRequests int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		requests:    make([]time.Time, 0, maxRequests),
		now:         time.Now,
	}
}

// Allow checks if a request can proceed
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := sw.now()
	sw.cleanOldRequests(now)

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, now)
		return true
	}

	return false
}

// Wait blocks until a request is allowed
func (sw *SlidingWindow) Wait(ctx context.Context) error {
	for !sw.Allow() {
		wait := sw.untilNextSlot()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ctx.Err()
}

// untilNextSlot returns how long until the oldest request leaves the window
func (sw *SlidingWindow) untilNextSlot() time.Duration {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if len(sw.requests) == 0 {
		return 10 * time.Millisecond
	}
	wait := sw.windowSize - sw.now().Sub(sw.requests[0])
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return wait
}

// Reset clears all recorded requests
func (sw *SlidingWindow) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.requests = sw.requests[:0]
}

// cleanOldRequests removes requests outside the sliding window
func (sw *SlidingWindow) cleanOldRequests(now time.Time) {
	cutoff := now.Add(-sw.windowSize)

	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}

	if i > 0 {
		copy(sw.requests, sw.requests[i:])
		sw.requests = sw.requests[:len(sw.requests)-i]
	}
}

// Unlimited is a Limiter that never delays
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}
