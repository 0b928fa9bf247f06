package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server is an HTTP listener around one of the routers.
type Server struct {
	name       string
	router     *chi.Mux
	httpServer *http.Server
}

// NewOverlayServer creates the overlay frame/control server.
//
// Nothing listens until Start is called, so tests can use Router() with httptest.
func NewOverlayServer(addr string, o OverlayInterface) *Server {
	return newServer("overlay", addr, NewOverlayRouter(o, RouterConfig{}))
}

// NewRelayServer creates the relay WebSocket server.
func NewRelayServer(addr string, hub RelayInterface) *Server {
	return newServer("relay", addr, NewRelayRouter(hub, RouterConfig{}))
}

func newServer(name, addr string, router *chi.Mux) *Server {
	return &Server{
		name:   name,
		router: router,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start listens until Shutdown. Returns nil after a clean shutdown.
func (s *Server) Start() error {
	log.Info().Msgf("🌐 %s server starting on %s", s.name, s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrapf(err, "%s server", s.name)
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops accepting connections and waits for in-flight requests.
// Hijacked WebSocket connections are not tracked; close them separately.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrapf(err, "%s server shutdown", s.name)
	}
	log.Info().Msgf("🌐 %s server stopped", s.name)
	return nil
}
