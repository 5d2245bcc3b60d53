// Package common holds small helpers shared across services.
package common

import "golang.org/x/time/rate"

// RateLimiter is a token bucket guarding request admission.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter creates a RateLimiter allowing rps events per second with
// bursts of up to burst events. A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Allow reports whether an event may happen now, consuming a token if so.
func (rl *RateLimiter) Allow() bool { return rl.limiter.Allow() }
