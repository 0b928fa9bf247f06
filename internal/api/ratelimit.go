package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"spike-overlay/internal/observability"

	"golang.org/x/time/rate"
)

// Budget is a token bucket: Rate tokens per second, up to Burst.
type Budget struct {
	Rate  float64
	Burst int
}

// RateLimitConfig sets the per-client API budgets.
//
// Reads (GET, HEAD, OPTIONS) and control writes draw from separate buckets, so a
// panel polling /api/state cannot starve its own toggle clicks and a stuck button
// cannot flood the viewer's event queue.
type RateLimitConfig struct {
	Read       Budget
	Control    Budget
	IdleTTL    time.Duration // Buckets of a client unseen this long are dropped
	TrustProxy bool          // Key clients by X-Forwarded-For / X-Real-IP
}

// DefaultRateLimitConfig fits one browser panel polling state a few times a second.
var DefaultRateLimitConfig = RateLimitConfig{
	Read:    Budget{Rate: 20, Burst: 40},
	Control: Budget{Rate: 5, Burst: 10},
	IdleTTL: 10 * time.Minute,
}

const (
	budgetRead    = "read"
	budgetControl = "control"
)

type clientBuckets struct {
	read    *rate.Limiter
	control *rate.Limiter
	seen    time.Time
}

// LimiterStats is reported on /health.
type LimiterStats struct {
	Clients        int    `json:"clients"`
	LimitedRead    uint64 `json:"limited_read"`
	LimitedControl uint64 `json:"limited_control"`
}

// ClientLimiter rate limits API requests per client address.
// Idle clients are swept lazily on access, at most once per IdleTTL.
type ClientLimiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu        sync.Mutex
	clients   map[string]*clientBuckets
	lastSweep time.Time
	stats     LimiterStats
}

// NewClientLimiter creates a limiter. Zero budgets fall back to the defaults.
func NewClientLimiter(cfg RateLimitConfig) *ClientLimiter {
	if cfg.Read.Burst <= 0 {
		cfg.Read = DefaultRateLimitConfig.Read
	}
	if cfg.Control.Burst <= 0 {
		cfg.Control = DefaultRateLimitConfig.Control
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig.IdleTTL
	}
	return &ClientLimiter{
		cfg:     cfg,
		now:     time.Now,
		clients: make(map[string]*clientBuckets),
	}
}

// Allow spends one token from client's read or control budget.
func (l *ClientLimiter) Allow(client string, control bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	c, ok := l.clients[client]
	if !ok {
		c = &clientBuckets{
			read:    rate.NewLimiter(rate.Limit(l.cfg.Read.Rate), l.cfg.Read.Burst),
			control: rate.NewLimiter(rate.Limit(l.cfg.Control.Rate), l.cfg.Control.Burst),
		}
		l.clients[client] = c
	}
	c.seen = now

	if control {
		if c.control.AllowN(now, 1) {
			return true
		}
		l.stats.LimitedControl++
		return false
	}
	if c.read.AllowN(now, 1) {
		return true
	}
	l.stats.LimitedRead++
	return false
}

func (l *ClientLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.cfg.IdleTTL {
		return
	}
	l.lastSweep = now
	for client, c := range l.clients {
		if now.Sub(c.seen) >= l.cfg.IdleTTL {
			delete(l.clients, client)
		}
	}
}

// Stats returns the tracked client count and rejections per budget.
func (l *ClientLimiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.stats
	s.Clients = len(l.clients)
	return s
}

// Middleware rejects over-budget requests with 429.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		control := !isReadMethod(r.Method)
		if !l.Allow(ClientIP(r, l.cfg.TrustProxy), control) {
			budget := budgetRead
			if control {
				budget = budgetControl
			}
			observability.RecordRateLimited(budget)
			w.Header().Set("Retry-After", "1")
			writeError(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isReadMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// ClientIP returns the address a request is limited under. Forwarding headers
// are only honoured behind a trusted proxy; they are client-controlled otherwise.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
