package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// maxTrackedClients bounds limiter memory. The least recently seen client
// is evicted first, which at worst grants it a fresh window.
const maxTrackedClients = 10000

// RateLimiter allows limit hits per client in a sliding window.
// A client idle for a whole window expires from the cache.
type RateLimiter struct {
	mu     sync.Mutex
	hits   *expirable.LRU[string, []time.Time]
	limit  int
	window time.Duration
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		hits:   expirable.NewLRU[string, []time.Time](maxTrackedClients, nil, window),
		limit:  limit,
		window: window,
	}
}

// Allow records a hit for key unless it is over the limit.
// The second result is how long until the oldest hit leaves the window.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	previous, _ := rl.hits.Peek(key)
	recent := make([]time.Time, 0, len(previous)+1)
	for _, t := range previous {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= rl.limit {
		rl.hits.Add(key, recent)
		return false, recent[0].Sub(cutoff)
	}

	rl.hits.Add(key, append(recent, now))
	return true, 0
}

// RateLimitAuth guards endpoints that send email or check passwords:
// 5 requests per 15 minutes per client IP.
func RateLimitAuth() func(http.HandlerFunc) http.HandlerFunc {
	return RateLimit(5, 15*time.Minute)
}

func RateLimit(limit int, window time.Duration) func(http.HandlerFunc) http.HandlerFunc {
	limiter := NewRateLimiter(limit, window)

	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			ok, retryAfter := limiter.Allow(ip)
			if !ok {
				slog.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())+1))
				writeJSONError(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
				return
			}

			next(w, r)
		}
	}
}

// getClientIP prefers proxy headers over the socket address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
