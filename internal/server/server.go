// Package server exposes the warranty tracker over HTTP: a small embedded web
// page plus a JSON API authenticated with bearer session tokens.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/warranty-tracker/internal/identity"
	"github.com/zombor/warranty-tracker/internal/warranty"
	"github.com/zombor/warranty-tracker/internal/workflow"
)

// Server handles HTTP requests for devices, sign-in and the add-device workflow
type Server struct {
	devices   *warranty.Service
	auth      *identity.Provider
	workflows *workflow.Registry
	newCamera func() workflow.ImageSource
	now       func() time.Time
	mux       *http.ServeMux
}

// NewServer creates a new Server with default mux
func NewServer(devices *warranty.Service, auth *identity.Provider, workflows *workflow.Registry) *Server {
	return NewServerWithMux(devices, auth, workflows, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(devices *warranty.Service, auth *identity.Provider, workflows *workflow.Registry, mux *http.ServeMux) *Server {
	s := &Server{
		devices:   devices,
		auth:      auth,
		workflows: workflows,
		now:       func() time.Time { return time.Now().UTC() },
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// WithCamera enables capture from a network camera. newCamera is called once per
// capture so each attempt holds its own device.
func (s *Server) WithCamera(newCamera func() workflow.ImageSource) *Server {
	s.newCamera = newCamera
	return s
}

// WithClock overrides the reference time used for dashboard status
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// bearerToken extracts the session token from the Authorization header
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// requireAuth resolves the bearer token and stores the identity in the request context
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Sign in required")
			return
		}
		id, err := s.auth.Authenticate(r.Context(), token)
		if err != nil {
			if !errors.Is(err, identity.ErrInvalidToken) {
				slog.Error("Error authenticating request", "error", err)
			}
			writeError(w, http.StatusUnauthorized, "Session expired, please sign in again")
			return
		}
		next(w, r.WithContext(identity.WithIdentity(r.Context(), id)))
	}
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

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	// Static files
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.HandleFunc("GET /static/app.js", s.handleStaticJS)

	// Sign-in
	s.mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /api/auth/signin", s.handleSignIn)
	s.mux.HandleFunc("POST /api/auth/federated", s.handleFederated)
	s.mux.HandleFunc("POST /api/auth/signout", s.requireAuth(s.handleSignOut))
	s.mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	// Devices
	s.mux.HandleFunc("GET /api/devices/export", s.requireAuth(s.handleExportDevices))
	s.mux.HandleFunc("GET /api/devices/{id}/bill", s.requireAuth(s.handleGetBill))
	s.mux.HandleFunc("DELETE /api/devices/{id}", s.requireAuth(s.handleDeleteDevice))
	s.mux.HandleFunc("GET /api/devices", s.requireAuth(s.handleListDevices))
	s.mux.HandleFunc("GET /api/dashboard", s.requireAuth(s.handleDashboard))

	// Add-device workflow
	s.mux.HandleFunc("GET /api/workflow", s.requireAuth(s.handleWorkflowView))
	s.mux.HandleFunc("POST /api/workflow/open", s.requireAuth(s.handleWorkflowOpen))
	s.mux.HandleFunc("POST /api/workflow/image", s.requireAuth(s.handleWorkflowImage))
	s.mux.HandleFunc("POST /api/workflow/camera", s.requireAuth(s.handleWorkflowCamera))
	s.mux.HandleFunc("POST /api/workflow/capture", s.requireAuth(s.handleWorkflowCapture))
	s.mux.HandleFunc("POST /api/workflow/extract", s.requireAuth(s.handleWorkflowExtract))
	s.mux.HandleFunc("POST /api/workflow/manual", s.requireAuth(s.handleWorkflowManual))
	s.mux.HandleFunc("POST /api/workflow/discard", s.requireAuth(s.handleWorkflowDiscard))
	s.mux.HandleFunc("PATCH /api/workflow/form", s.requireAuth(s.handleWorkflowForm))
	s.mux.HandleFunc("POST /api/workflow/rescan", s.requireAuth(s.handleWorkflowRescan))
	s.mux.HandleFunc("POST /api/workflow/save", s.requireAuth(s.handleWorkflowSave))
	s.mux.HandleFunc("POST /api/workflow/cancel", s.requireAuth(s.handleWorkflowCancel))

	// Static HTML interface (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Handler returns the mux wrapped with CORS handling
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.mux)
}

// Start serves HTTP on addr until ctx is cancelled, then drains in-flight requests
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
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}
