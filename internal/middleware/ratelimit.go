package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/nomnom/internal/auth"
)

// RealIP extracts the client's real IP address, preferring Cloudflare's
// CF-Connecting-IP header, then X-Forwarded-For, and falling back to RemoteAddr.
func RealIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the original client
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Limit is a request budget per key over a fixed window.
type Limit struct {
	Requests int
	Window   time.Duration
}

type bucket struct {
	used    int
	resetAt time.Time
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Take spends one request from key's budget. Once the budget is spent it
// reports false and the time left until the window resets.
func (rl *RateLimiter) Take(key string, lim Limit) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		rl.buckets[key] = &bucket{used: 1, resetAt: now.Add(lim.Window)}
		return true, 0
	}
	if b.used >= lim.Requests {
		return false, b.resetAt.Sub(now)
	}
	b.used++
	return true, 0
}

// Sweep drops buckets whose window has passed and returns how many remain.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if !now.Before(b.resetAt) {
			delete(rl.buckets, key)
		}
	}
	return len(rl.buckets)
}

// Run sweeps every interval until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// KeyFunc picks the bucket a request is counted against. Requests with an
// empty key are not limited.
type KeyFunc func(*http.Request) string

// ByClientIP counts each route separately per client address. It suits the
// public auth routes, where there is no user yet.
func ByClientIP(r *http.Request) string {
	return r.URL.Path + "|" + RealIP(r)
}

// ByUser counts every mutation an authenticated user makes, across all
// routes. Reads are not limited.
func ByUser(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ""
	}
	id := auth.UserID(r.Context())
	if id == 0 {
		return ""
	}
	return "user:" + strconv.FormatInt(id, 10)
}

// RateLimit rejects requests over lim with 429 and a Retry-After header.
// A limit with no requests disables it.
func RateLimit(rl *RateLimiter, key KeyFunc, lim Limit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if lim.Requests <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			ok, wait := rl.Take(k, lim)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
