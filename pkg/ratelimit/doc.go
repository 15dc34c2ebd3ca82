// Package ratelimit paces outgoing API requests.
//
// Pixabay allows 100 requests per rolling 60 seconds. New(100) returns a
// SlidingWindow that admits at most that many calls in any one-minute
// window; New(0) returns Unlimited.
//
//	limiter := ratelimit.New(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//		return err // ctx canceled
//	}
//
// Limiters only delay the next request. Nothing here retries a failed one.
package ratelimit
