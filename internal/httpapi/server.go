// Package httpapi serves the thin read-only REST surface and mounts the
// websocket endpoint. Everything authoritative lives behind the engine; the
// handlers here only hand back immutable data and snapshots.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/campusplay/dicearena/internal/catalog"
	"github.com/campusplay/dicearena/internal/game"
	"github.com/campusplay/dicearena/internal/venue"
)

// StateProvider hands out session snapshots for initial page loads, before
// the event channel connects.
type StateProvider interface {
	Snapshot(venueID string) game.Snapshot
}

// Deps are the collaborators the API serves from.
type Deps struct {
	Catalog *catalog.Catalog
	Venues  *venue.Registry
	State   StateProvider
	WS      http.HandlerFunc
}

// Server owns the HTTP listener.
type Server struct {
	srv *http.Server
}

// New builds the router. The game's original server allowed any origin, so
// CORS stays wide open here.
func New(addr string, deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", handleHealth)
	r.Get("/api/game-scenarios", handleScenarios(deps.Catalog))
	r.Get("/api/game-state", handleGameState(deps.Venues, deps.State))
	r.Get("/api/venues", handleVenues(deps.Venues))
	r.Get("/api/venues/{venueID}/qr", handleVenueQR(deps.Venues))
	r.Get("/ws", deps.WS)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}
	log.Info().Str("addr", s.srv.Addr).Msg("http server listening")

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r)
	})
}
