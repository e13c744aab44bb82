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
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max is the number of requests allowed per Window. Zero disables the
	// limiter.
	Max    int
	Window time.Duration
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// window counts requests of one key in the current and previous fixed
// windows. The effective count weights the previous window by its overlap
// with the sliding window ending now.
type window struct {
	start      time.Time
	curr, prev float64
}

func (w *window) advance(now time.Time, size time.Duration) {
	switch elapsed := now.Sub(w.start); {
	case elapsed >= 2*size:
		w.prev, w.curr = 0, 0
		w.start = now.Truncate(size)
	case elapsed >= size:
		w.prev, w.curr = w.curr, 0
		w.start = w.start.Add(size)
	}
}

func (w *window) effective(now time.Time, size time.Duration) float64 {
	overlap := 1 - float64(now.Sub(w.start))/float64(size)
	return w.prev*math.Max(overlap, 0) + w.curr
}

type limiter struct {
	max  int
	size time.Duration
	key  func(*http.Request) string
	now  func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newLimiter(cfg RateLimitConfig) *limiter {
	l := &limiter{
		max:     cfg.Max,
		size:    cfg.Window,
		key:     cfg.KeyFunc,
		now:     time.Now,
		windows: make(map[string]*window),
	}
	if l.key == nil {
		l.key = ClientIP
	}
	return l
}

// take records one request for key if it fits and reports the remaining
// budget and when the current window resets.
func (l *limiter) take(key string) (remaining int, reset time.Time, ok bool) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, found := l.windows[key]
	if !found {
		w = &window{start: now.Truncate(l.size)}
		l.windows[key] = w
	}
	w.advance(now, l.size)
	reset = w.start.Add(l.size)

	count := w.effective(now, l.size)
	if count >= float64(l.max) {
		return 0, reset, false
	}
	w.curr++
	return max(l.max-int(math.Ceil(count+1)), 0), reset, true
}

// evict drops keys idle for two full windows.
func (l *limiter) evict() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if now.Sub(w.start) >= 2*l.size {
			delete(l.windows, key)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.max)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		remaining, reset, ok := l.take(l.key(r))

		h := w.Header()
		h.Set("X-RateLimit-Limit", limit)
		h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
		if !ok {
			retry := math.Ceil(max(reset.Sub(l.now()), 0).Seconds())
			h.Set("Retry-After", strconv.Itoa(int(retry)))
			WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimit limits requests per client with a sliding window. Every response
// carries X-RateLimit-* headers; rejected requests get 429 and Retry-After.
// Idle clients are evicted until ctx is done.
func RateLimit(ctx context.Context, cfg RateLimitConfig) Middleware {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	l := newLimiter(cfg)
	go func() {
		ticker := time.NewTicker(2 * l.size)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.evict()
			}
		}
	}()
	return l.middleware
}

// ClientIP returns the first X-Forwarded-For hop, then X-Real-IP, then the
// remote address host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
