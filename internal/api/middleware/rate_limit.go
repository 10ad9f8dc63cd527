package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	apiContext "storehub/internal/api/context"
	"storehub/internal/pkg/errors"
)

// RateLimiter hands out one token bucket per key. Idle buckets are dropped
// by Sweep.
type RateLimiter struct {
	store *sync.Map // map[string]*bucket
	limit rate.Limit
	burst int
	idle  time.Duration
}

type bucket struct {
	limiter *rate.Limiter
	mu      sync.Mutex
	// used by Sweep
	lastAccess time.Time
}

// NewRateLimiter allows perMinute requests per key with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 600
	}
	if burst <= 0 {
		burst = perMinute / 10
		if burst < 1 {
			burst = 1
		}
	}
	return &RateLimiter{
		store: &sync.Map{},
		limit: rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
		idle:  10 * time.Minute,
	}
}

func (rl *RateLimiter) Allow(key string) bool {
	now := time.Now()
	val, _ := rl.store.LoadOrStore(key, &bucket{
		limiter:    rate.NewLimiter(rl.limit, rl.burst),
		lastAccess: now,
	})

	b := val.(*bucket)
	b.mu.Lock()
	b.lastAccess = now
	b.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// Sweep drops buckets not used within the idle window.
func (rl *RateLimiter) Sweep() {
	now := time.Now()
	rl.store.Range(func(key, value interface{}) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if now.Sub(b.lastAccess) > rl.idle {
			rl.store.Delete(key)
		}
		b.mu.Unlock()
		return true
	})
}

// Limit keys requests by the named path parameter when keyParam is set,
// falling back to the client IP.
func (rl *RateLimiter) Limit(keyParam string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if keyParam != "" {
				key = apiContext.Param(r.Context(), keyParam)
			}
			if key == "" {
				key = clientIP(r)
			}

			if !rl.Allow(key) {
				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter()))
				errors.WriteError(w, http.StatusTooManyRequests, errors.ErrCodeRateLimitExceeded, "Rate limit exceeded", nil)
				return
			}

			next(w, r)
		}
	}
}

// retryAfter is the whole number of seconds until one token refills.
func (rl *RateLimiter) retryAfter() int {
	secs := int(math.Ceil(1 / float64(rl.limit)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
