// Package api exposes the overlay's rendered frames and UI controls over HTTP, and
// mounts the relay's WebSocket endpoints.
package api

import (
	"net/http"
	"time"

	"spike-overlay/internal/match"
	"spike-overlay/internal/observability"
	"spike-overlay/internal/overlay"
	"spike-overlay/internal/relay"
	"spike-overlay/internal/render"
	"spike-overlay/internal/ui"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// OverlayInterface is the consumer state the API reads and the queue it feeds.
// *overlay.Viewer satisfies it.
type OverlayInterface interface {
	Store() *match.Store
	Controls() *ui.Controls
	Queue() *ui.Queue
	Pipeline() *render.Pipeline
	LatestFrame() *overlay.Frame
	Stats() (applied, rejected int64)
}

// RelayInterface is the relay surface the API mounts. *relay.Hub satisfies it.
type RelayInterface interface {
	HandleWebSocket(w http.ResponseWriter, r *http.Request)
	Peers() []relay.PeerInfo
	Registry() *relay.Registry
}

// RouterConfig contains the shared HTTP settings of both routers.
//
// Example usage in tests:
//
//	router := api.NewOverlayRouter(viewer, api.RouterConfig{
//	    RateLimitConfig: &api.RateLimitConfig{Read: api.Budget{Rate: 1000, Burst: 1000}},
//	    DisableLogging:  true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one will be created using RateLimitConfig.
	RateLimiter *ClientLimiter

	// RateLimitConfig is only used if RateLimiter is nil.
	// If both are nil, uses DefaultRateLimitConfig.
	RateLimitConfig *RateLimitConfig

	// CORSOrigins defaults to localhost on any port.
	CORSOrigins []string

	// DisableLogging disables the request logger middleware.
	DisableLogging bool
}

// NewOverlayRouter constructs the overlay HTTP router.
// It starts no goroutines and opens no listeners.
func NewOverlayRouter(o OverlayInterface, cfg RouterConfig) *chi.Mux {
	r := newBaseRouter(cfg)
	limiter := limiterFor(cfg)
	h := &overlayHandlers{overlay: o, limiter: limiter}

	r.Get("/frame.png", h.handleFrame)
	r.Get("/frame/{layer}.png", h.handleLayer)

	// Reads and control posts draw from separate per-client budgets
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)

		r.Get("/state", h.handleGetState)
		r.Get("/maps", h.handleGetMaps)

		r.Route("/controls", func(r chi.Router) {
			r.Get("/", h.handleGetControls)
			r.Post("/toggle", h.handleToggle)
			r.Post("/select", h.handleSelect)
			r.Post("/rotate", h.handleRotate)
			r.Post("/reset", h.handleResetRotation)
			r.Post("/map", h.handleSelectMap)
		})
	})

	r.Get("/health", h.handleHealth)
	return r
}

// NewRelayRouter constructs the relay HTTP router. WebSocket upgrades are served at / and /ws.
func NewRelayRouter(hub RelayInterface, cfg RouterConfig) *chi.Mux {
	r := newBaseRouter(cfg)
	limiter := limiterFor(cfg)
	h := &relayHandlers{hub: hub, limiter: limiter}

	r.Get("/", hub.HandleWebSocket)
	r.Get("/ws", hub.HandleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Get("/peers", h.handleGetPeers)
	})

	r.Get("/health", h.handleHealth)
	return r
}

// newBaseRouter installs logging, recovery, metrics and CORS
func newBaseRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	return r
}

func limiterFor(cfg RouterConfig) *ClientLimiter {
	if cfg.RateLimiter != nil {
		return cfg.RateLimiter
	}
	rateLimitCfg := DefaultRateLimitConfig
	if cfg.RateLimitConfig != nil {
		rateLimitCfg = *cfg.RateLimitConfig
	}
	return NewClientLimiter(rateLimitCfg)
}

// metricsMiddleware records status and latency per route pattern
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			// Hijacked (WebSocket) or nothing written
			status = http.StatusSwitchingProtocols
		}
		observability.RecordRequest(r.Method, route, status, time.Since(start))
	})
}
