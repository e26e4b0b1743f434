package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (Decision, error)
}

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Limiter Limiter
	// KeyFunc extracts the rate limit key. Defaults to the client IP.
	KeyFunc func(*http.Request) string
}

// RateLimit rejects requests denied by cfg.Limiter with 429 and reports the
// budget in X-RateLimit-* headers. Limiter errors let the request through.
func RateLimit(cfg RateLimitConfig) Middleware {
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			d, err := cfg.Limiter.Allow(r.Context(), keyFunc(r), now)
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				wait := max(d.ResetAt.Sub(now), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type window struct {
	prev      float64
	curr      float64
	currStart time.Time
}

// SlidingWindow is an in-process Limiter. The previous window's count is
// weighted by how much of it still overlaps the sliding window.
type SlidingWindow struct {
	max    int
	size   time.Duration
	mu     sync.Mutex
	counts map[string]*window
}

var _ Limiter = (*SlidingWindow)(nil)

// NewSlidingWindow allows max requests per size per key.
func NewSlidingWindow(max int, size time.Duration) *SlidingWindow {
	return &SlidingWindow{max: max, size: size, counts: make(map[string]*window)}
}

// Allow records one request for key if it fits the budget.
func (s *SlidingWindow) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.counts[key]
	if !ok {
		w = &window{currStart: now.Truncate(s.size)}
		s.counts[key] = w
	}
	if elapsed := now.Sub(w.currStart); elapsed >= s.size {
		w.prev = w.curr
		if elapsed >= 2*s.size {
			w.prev = 0
		}
		w.curr = 0
		w.currStart = now.Truncate(s.size)
	}

	overlap := max(1-now.Sub(w.currStart).Seconds()/s.size.Seconds(), 0)
	used := w.prev*overlap + w.curr
	d := Decision{Limit: s.max, ResetAt: w.currStart.Add(s.size)}
	if used >= float64(s.max) {
		return d, nil
	}
	w.curr++
	d.Allowed = true
	d.Remaining = max(int(float64(s.max)-used-1), 0)
	return d, nil
}

// Sweep drops keys idle for two windows.
func (s *SlidingWindow) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, w := range s.counts {
		if now.Sub(w.currStart) >= 2*s.size {
			delete(s.counts, k)
		}
	}
}

// RunSweeper calls Sweep every two windows until ctx is done.
func (s *SlidingWindow) RunSweeper(ctx context.Context) {
	t := time.NewTicker(2 * s.size)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			s.Sweep(now)
		}
	}
}
