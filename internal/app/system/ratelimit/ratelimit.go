// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per key (user id, client IP, ...).
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	every   rate.Limit
	burst   int
	idle    time.Duration // buckets unused this long are dropped
	sweepAt time.Time
	now     func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// PerMinute returns a limiter that allows n requests per minute per key,
// with bursts up to n.
func PerMinute(n int) *Limiter {
	if n <= 0 {
		n = 1
	}
	return New(rate.Every(time.Minute/time.Duration(n)), n)
}

// New creates a limiter refilling at r tokens per second with the given burst.
func New(r rate.Limit, burst int) *Limiter {
	idle := 10 * time.Minute
	if r > 0 && burst > 0 {
		// a bucket idle for longer than a full refill is indistinguishable
		// from a fresh one
		if full := time.Duration(float64(burst) / float64(r) * float64(time.Second)); full > idle {
			idle = full
		}
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		every:   r,
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Allow reports whether a request for key may proceed now. When it may not,
// retryAfter is how long until a token is available.
func (l *Limiter) Allow(key string) (ok bool, retryAfter time.Duration) {
	now := l.now()
	lim := l.get(key, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.sweepAt) {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > l.idle {
				delete(l.buckets, k)
			}
		}
		l.sweepAt = now.Add(l.idle)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. key selects the bucket; an empty key falls back to ClientIP.
func (l *Limiter) Middleware(key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := ""
			if key != nil {
				k = key(r)
			}
			if k == "" {
				k = "ip:" + ClientIP(r)
			}
			if ok, wait := l.Allow(k); !ok {
				w.Header().Set("Retry-After", RetryAfterSeconds(wait))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RetryAfterSeconds formats d as a Retry-After value (whole seconds, at least 1).
func RetryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip, _, _ := strings.Cut(xff, ","); strings.TrimSpace(ip) != "" {
			return strings.TrimSpace(ip)
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
