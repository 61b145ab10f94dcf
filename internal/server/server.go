// package server contains the HTTP API for exporting and importing Spotify playlists
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spm/internal/repositories"
	"github.com/desertthunder/spm/internal/services"
	"github.com/desertthunder/spm/internal/tasks"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows which path patterns it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	// Use adds middleware to the router's middleware stack
	Use(middleware ...Middleware)
	// Handle registers a handler for the specified method and path, wrapped in route-only middleware
	Handle(method, path string, handler http.Handler, mw ...Middleware)
	// Handler registers a custom Handler implementation
	Handler(handler Handler)
	// ServeHTTP implements http.Handler for the entire router
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// ClientFactory builds the Web API client acting for the holder of accessToken.
type ClientFactory func(ctx context.Context, accessToken string) services.PlaylistService

// Options configures a [Server]. Auth, Engine, and Client are required.
type Options struct {
	Auth   *services.AuthService
	Engine *tasks.Engine
	Client ClientFactory
	// Runs records export and import history when set.
	Runs         *repositories.RunRepository
	Logger       *log.Logger
	CookieSecure bool
}

// Server serves the auth, export, and import endpoints.
//
// It keeps no per-user state: tokens arrive with each request and the CSRF state lives in a cookie.
type Server struct {
	auth         *services.AuthService
	engine       *tasks.Engine
	client       ClientFactory
	runs         *repositories.RunRepository
	logger       *log.Logger
	cookieSecure bool
	router       *BasicRouter
}

var _ Router = (*BasicRouter)(nil)

// New creates a Server and registers its routes.
func New(opts Options) (*Server, error) {
	if opts.Auth == nil || opts.Engine == nil || opts.Client == nil {
		return nil, errors.New("server: auth, engine, and client factory are required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	s := &Server{
		auth:         opts.Auth,
		engine:       opts.Engine,
		client:       opts.Client,
		runs:         opts.Runs,
		logger:       opts.Logger,
		cookieSecure: opts.CookieSecure,
		router:       NewBasicRouter(),
	}

	s.router.Use(Recover(s.logger), RequestLogger(s.logger))

	s.router.Handle(http.MethodGet, "/auth/login", http.HandlerFunc(s.handleLogin))
	s.router.Handle(http.MethodGet, "/auth/callback", http.HandlerFunc(s.handleCallback))
	s.router.Handle(http.MethodPost, "/auth/refresh_token", http.HandlerFunc(s.handleRefresh))

	authed := s.requireUser
	s.router.Handle(http.MethodGet, "/api/playlists", http.HandlerFunc(s.handleListPlaylists), authed)
	s.router.Handle(http.MethodPost, "/api/playlists/export", http.HandlerFunc(s.handleExport), authed)
	s.router.Handle(http.MethodPost, "/api/import", http.HandlerFunc(s.handleImport), authed)

	return s, nil
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	}
}
