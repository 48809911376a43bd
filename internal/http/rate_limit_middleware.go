package httpx

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// RateLimiter counts requests per key inside a rolling window.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed   bool
	count     int
	windowEnd time.Time
}

// memoryRateLimiter is the in-process fallback used when no Redis address
// is configured. Expired windows are swept inline during Allow, so it needs
// no background goroutine.
type memoryRateLimiter struct {
	mu        sync.Mutex
	windows   map[string]*rateWindow
	nextSweep time.Time
}

type rateWindow struct {
	count int
	until time.Time
}

const memorySweepEvery = 5 * time.Minute

func NewMemoryRateLimiter() RateLimiter {
	return &memoryRateLimiter{
		windows:   make(map[string]*rateWindow),
		nextSweep: time.Now().Add(memorySweepEvery),
	}
}

func (rl *memoryRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.After(rl.nextSweep) {
		for k, w := range rl.windows {
			if now.After(w.until) {
				delete(rl.windows, k)
			}
		}
		rl.nextSweep = now.Add(memorySweepEvery)
	}

	w, ok := rl.windows[key]
	if !ok || now.After(w.until) {
		w = &rateWindow{count: 1, until: now.Add(window)}
		rl.windows[key] = w
		return rateDecision{allowed: true, count: 1, windowEnd: w.until}
	}
	if w.count >= limit {
		return rateDecision{allowed: false, count: w.count, windowEnd: w.until}
	}
	w.count++
	return rateDecision{allowed: true, count: w.count, windowEnd: w.until}
}

func (rl *memoryRateLimiter) Close() {}

func (r *Router) withRateLimit(route string, limit int, window time.Duration, keyFn func(*http.Request) string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if limit <= 0 || r.limiter == nil {
			next(w, req)
			return
		}
		key := keyFn(req)
		if key == "" {
			key = rateLimitKeyIP(req)
		}
		decision := r.limiter.Allow(key, limit, window)
		r.applyRateHeaders(w, limit, decision)
		if !decision.allowed {
			label := route
			if label == "" {
				label = req.URL.Path
			}
			r.recordRateLimitHit(label, rateMetricKey(key))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, req)
	}
}

// handlerAuthRate is the standard wrapper for authenticated routes: session
// check first, then a per-session quota.
func (r *Router) handlerAuthRate(route string, limit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return r.requireAuth(r.withRateLimit(route, limit, window, r.rateLimitKeySession, next))
}

func (r *Router) rateLimitKeySession(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.Role != "" {
		return "session:" + info.Role
	}
	return ""
}

func rateLimitKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

// rateMetricKey strips the key's variable part so metric labels stay low
// cardinality ("ip", "session").
func rateMetricKey(key string) string {
	if key == "" {
		return "unknown"
	}
	if idx := strings.IndexRune(key, ':'); idx > 0 {
		return key[:idx]
	}
	return key
}
