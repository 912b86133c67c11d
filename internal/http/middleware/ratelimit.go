// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements an in-memory, per-key token-bucket rate limiter with
// opportunistic cleanup of idle buckets.
//
// Features:
//   - Per-key buckets using golang.org/x/time/rate
//   - Pluggable key function (client IP by default)
//   - Only state-changing methods are charged; page views and the CSV
//     export are free
//   - Replays recognised by SubmitGuard bypass the limiter
//
// The limiter is process-local, matching the single-process in-memory store.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// KeyFunc selects the bucket a request is charged to.
type KeyFunc func(*gin.Context) string

// KeyByClientIP charges requests to the client address.
func KeyByClientIP() KeyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token bucket limiter. Buckets idle
// for longer than the TTL are swept every sweepEvery lookups. Safe for
// concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn KeyFunc
	now   func() time.Time

	mu         sync.Mutex
	visitors   map[string]*visitor
	ttl        time.Duration
	lookups    uint64
	sweepEvery uint64
}

// NewRateLimiter builds a limiter granting rps tokens per second with the
// given burst (coerced to at least 1). Only unsafe methods are charged.
func NewRateLimiter(rps float64, burst int, keyFn KeyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	if keyFn == nil {
		keyFn = KeyByClientIP()
	}
	return &RateLimiter{
		rps:        rate.Limit(rps),
		burst:      burst,
		keyFn:      keyFn,
		now:        time.Now,
		visitors:   make(map[string]*visitor),
		ttl:        10 * time.Minute,
		sweepEvery: 5000,
	}
}

// limiterFor returns the bucket for key. The sweep runs before the lookup so
// a stale bucket is replaced rather than refreshed.
func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.sweepEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler enforces the limit on POST, PUT, PATCH and DELETE. Page views and
// replays flagged by SubmitGuard pass through free. Rejections answer 429
// with Retry-After: 1.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		if IsRateBypass(c) || rl.limiterFor(rl.keyFn(c)).Allow() {
			c.Next()
			return
		}

		c.Header("Retry-After", "1")
		abortError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
	}
}

// IsRateBypass reports whether SubmitGuard exempted this request.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}
