package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-IP counter held in process memory.
// It is best-effort throttling only: each instance keeps its own counters,
// so it is NOT a cross-instance guarantee and never a correctness mechanism.
// Entitlement enforcement happens in the ledger, not here.
type RateLimiter struct {
	mu     sync.Mutex
	window time.Duration
	max    int
	seen   map[string]*ipWindow
}

type ipWindow struct {
	count       int
	windowStart time.Time
}

func NewRateLimiter(window time.Duration, max int) *RateLimiter {
	return &RateLimiter{
		window: window,
		max:    max,
		seen:   make(map[string]*ipWindow),
	}
}

// Allow reports whether the client may proceed, counting this call.
func (l *RateLimiter) Allow(ip string) bool {
	if l.max <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.seen[ip]
	if !ok || now.Sub(w.windowStart) >= l.window {
		// Piggyback pruning of expired windows on window rollover.
		if len(l.seen) > 1024 {
			for k, v := range l.seen {
				if now.Sub(v.windowStart) >= l.window {
					delete(l.seen, k)
				}
			}
		}
		l.seen[ip] = &ipWindow{count: 1, windowStart: now}
		return true
	}
	if w.count >= l.max {
		return false
	}
	w.count++
	return true
}

// RateLimitMiddleware rejects clients over the per-IP budget with 429.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(ClientIP(r)) {
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP resolves the caller's address, preferring X-Forwarded-For since
// the service runs behind a proxy in production.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
