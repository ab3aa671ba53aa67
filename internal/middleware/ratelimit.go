package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(r *http.Request) string

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	keys  map[string]*rate.Limiter
	mu    sync.RWMutex
	limit rate.Limit
	burst int
	keyFn KeyFunc
}

// NewRateLimiter creates a keyed rate limiter. limit is events per second;
// for N per minute use rate.Limit(float64(N)/60.0). burst is max tokens per bucket.
func NewRateLimiter(limit rate.Limit, burst int, keyFn KeyFunc) *RateLimiter {
	return &RateLimiter{
		keys:  make(map[string]*rate.Limiter),
		limit: limit,
		burst: burst,
		keyFn: keyFn,
	}
}

func (l *RateLimiter) getLimiter(k string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.keys[k]
	l.mu.RUnlock()
	if ok {
		return lim
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok = l.keys[k]; ok {
		return lim
	}
	lim = rate.NewLimiter(l.limit, l.burst)
	l.keys[k] = lim
	return lim
}

// ClientIP returns the client IP from X-Forwarded-For, X-Real-IP, or RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First value is the client when behind a single proxy
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ByUser charges authenticated requests to the user and the rest to the client IP.
func ByUser(r *http.Request) string {
	if u, ok := UserFrom(r.Context()); ok {
		return "user:" + strconv.FormatInt(u.ID, 10)
	}
	return "ip:" + ClientIP(r)
}

// Middleware returns 429 when the request's bucket is empty.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.getLimiter(l.keyFn(r)).Allow() {
			writeError(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginRateLimiter allows 10 login attempts per minute per IP, burst 5.
func LoginRateLimiter() *RateLimiter {
	return NewRateLimiter(rate.Limit(10.0/60.0), 5, ClientIP)
}

// ScanRateLimiter allows 30 scans per minute per user, burst 10.
func ScanRateLimiter() *RateLimiter {
	return NewRateLimiter(rate.Limit(30.0/60.0), 10, ByUser)
}
