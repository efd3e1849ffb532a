// Package httpapi exposes the server's REST surface and the WebSocket
// endpoint of the real-time channel.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/Aphrodine-wq/clipsync/internal/logging"
	"github.com/Aphrodine-wq/clipsync/internal/server/config"
	"github.com/Aphrodine-wq/clipsync/internal/server/hub"
	"github.com/Aphrodine-wq/clipsync/internal/server/services"
)

// Server wires handlers, middleware, and the hub behind one http.Server.
type Server struct {
	config *config.Config
	logger logging.Logger
	users  *services.UserService
	clips  *services.ClipService
	hub    *hub.Hub
}

// NewServer constructs the HTTP layer over the given services and hub.
func NewServer(cfg *config.Config, l logging.Logger, us *services.UserService, cs *services.ClipService, h *hub.Hub) *Server {
	return &Server{
		config: cfg,
		logger: l.With("module", "httpapi"),
		users:  us,
		clips:  cs,
		hub:    h,
	}
}

// Handler builds the route table. Exposed separately from Run so tests can
// drive it through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/register", s.handleRegister)
	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	mux.Handle("GET /clips", s.withAuth(s.handleListClips))
	mux.Handle("POST /clips", s.withAuth(s.handleCreateClip))
	mux.Handle("DELETE /clips/{id}", s.withAuth(s.handleDeleteClip))
	mux.Handle("POST /clips/{id}/set-pinned", s.withAuth(s.handleSetPinned))
	mux.Handle("POST /clips/{id}/set-password", s.withAuth(s.handleSetPassword))
	mux.Handle("POST /clips/{id}/unlock", s.withAuth(s.handleUnlock))
	mux.Handle("POST /clips/{id}/remove-password", s.withAuth(s.handleRemovePassword))
	mux.Handle("GET /clips/{id}/content-url", s.withAuth(s.handleContentURL))

	mux.HandleFunc("GET /ws", s.handleWebsocket)

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.EndpointAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.config.EndpointAddr)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
