package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RATE LIMITING ────────────────────────────────────────────────────────────

// ipLimiter tracks one token bucket per client IP. Idle entries are swept
// under the lock on access — no background goroutine, so constructing a
// limiter (servers in tests do, repeatedly) leaks nothing.
type ipLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*ipBucket
	r         rate.Limit
	burst     int
	lastSweep time.Time
}

type ipBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

const (
	sweepInterval = time.Minute
	bucketIdleTTL = 3 * time.Minute
)

func newIPLimiter(rps float64, burst int) *ipLimiter {
	return &ipLimiter{
		buckets:   make(map[string]*ipBucket),
		r:         rate.Limit(rps),
		burst:     burst,
		lastSweep: time.Now(),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Drop stale entries so the map does not grow with every scanner on the
	// internet. Amortized over requests; at most once per sweepInterval.
	now := time.Now()
	if now.Sub(l.lastSweep) >= sweepInterval {
		for addr, b := range l.buckets {
			if now.Sub(b.seen) > bucketIdleTTL {
				delete(l.buckets, addr)
			}
		}
		l.lastSweep = now
	}

	if b, ok := l.buckets[ip]; ok {
		b.seen = now
		return b.lim
	}
	lim := rate.NewLimiter(l.r, l.burst)
	l.buckets[ip] = &ipBucket{lim: lim, seen: now}
	return lim
}

// rateLimitMiddleware limits the public token routes per remote IP. RealIP
// runs earlier in the chain, so RemoteAddr already reflects X-Forwarded-For
// when behind the proxy.
func (s *Server) rateLimitMiddleware() func(http.Handler) http.Handler {
	rps := s.cfg.RateLimitRPS
	if rps <= 0 {
		rps = 2
	}
	burst := s.cfg.RateLimitBurst
	if burst <= 0 {
		burst = 5
	}
	limiter := newIPLimiter(rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.get(r.RemoteAddr).Allow() {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
