// Package web serves the lotto checker UI and drives each browser's flow session.
package web

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zombor/lotto-checker/internal/flow"
	"github.com/zombor/lotto-checker/internal/history"
)

// History is the scan history exposed over the API
type History interface {
	ListScans() ([]*history.Scan, error)
	GetScan(id string) (*history.Scan, error)
	GetImage(id string) ([]byte, error)
	DeleteScan(id string) error
}

// Server handles HTTP requests for lotto checker sessions
type Server struct {
	sessions  *flow.Manager
	history   History
	basicAuth BasicAuth
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux. history may be nil.
func NewServer(sessions *flow.Manager, history History, basicAuth BasicAuth) *Server {
	return NewServerWithMux(sessions, history, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(sessions *flow.Manager, history History, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		sessions:  sessions,
		history:   history,
		basicAuth: basicAuth,
		mux:       mux,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return false
	}
	return username == s.basicAuth.Username && password == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Lotto Checker"`)
			corsError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.requireAuth(s.handleStaticCSS))
	s.mux.HandleFunc("GET /static/app.js", s.requireAuth(s.handleStaticJS))

	// Session flow
	s.mux.HandleFunc("GET /api/session/events", s.requireAuth(s.handleEvents))
	s.mux.HandleFunc("POST /api/session/scan", s.requireAuth(s.handleStartScan))
	s.mux.HandleFunc("POST /api/session/camera-failed", s.requireAuth(s.handleCameraFailed))
	s.mux.HandleFunc("POST /api/session/cancel", s.requireAuth(s.handleCancel))
	s.mux.HandleFunc("POST /api/session/capture", s.requireAuth(s.handleCapture))
	s.mux.HandleFunc("POST /api/session/reset", s.requireAuth(s.handleReset))
	s.mux.HandleFunc("GET /api/session", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("GET /api/camera/preview", s.requireAuth(s.handlePreview))
	s.mux.HandleFunc("GET /view", s.requireAuth(s.handleView))

	if s.history != nil {
		s.mux.HandleFunc("GET /api/history/{id}/image", s.requireAuth(s.handleGetHistoryImage))
		s.mux.HandleFunc("GET /api/history/{id}", s.requireAuth(s.handleGetHistoryScan))
		s.mux.HandleFunc("DELETE /api/history/{id}", s.requireAuth(s.handleDeleteHistoryScan))
		s.mux.HandleFunc("GET /api/history", s.requireAuth(s.handleListHistory))
	}

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.requireAuth(s.handleIndex))
	s.mux.HandleFunc("GET /", s.requireAuth(s.handleIndex))
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving http: %w", err)
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
