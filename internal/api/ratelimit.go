package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter enforces spec §4.2's per-IP rate limit using a token
// bucket per client, refilled at points/duration and bounded by the same
// burst, following the token-bucket shape used for HTTP rate limiting
// elsewhere in the reference corpus.
type IPRateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*rate.Limiter
	rate     rate.Limit
	burst    int
	lastSeen map[string]time.Time
}

func NewIPRateLimiter(points int, durationS int) *IPRateLimiter {
	r := rate.Limit(float64(points) / float64(durationS))
	return &IPRateLimiter{
		buckets:  make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     r,
		burst:    points,
	}
}

func (l *IPRateLimiter) limiterFor(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.buckets[key]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.buckets[key] = lim
	}
	l.lastSeen[key] = time.Now()
	return lim
}

// Sweep evicts buckets idle longer than ttl, keeping the map bounded for
// long-running processes. Intended to run on a background ticker.
func (l *IPRateLimiter) Sweep(ttl time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for k, seen := range l.lastSeen {
		if now.Sub(seen) > ttl {
			delete(l.buckets, k)
			delete(l.lastSeen, k)
		}
	}
}

func (l *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		lim := l.limiterFor(key)
		if !lim.Allow() {
			retryAfter := int(1 / float64(l.rate))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
