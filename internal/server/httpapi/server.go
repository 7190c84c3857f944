package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/relativit/relativit/internal/logging"
)

// Server owns the HTTP listener lifecycle.
type Server struct {
	httpServer *http.Server
	logger     logging.Logger
}

// NewServer builds the router and binds it to addr.
func NewServer(addr string, h *Handlers, l logging.Logger) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/request-code", h.handleRequestCode)
		r.Post("/verify-code", h.handleVerifyCode)
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/refresh", h.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Post("/logout", h.handleLogout)
			r.Post("/logout-all", h.handleLogoutAll)
			r.Get("/me", h.handleMe)
			r.Patch("/profile", h.handleUpdateProfile)
			r.Post("/password", h.handleChangePassword)
		})
	})

	r.Route("/api/settings", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/api-key", h.handleSaveAPIKey)
		r.Post("/api-key/validate", h.handleValidateAPIKey)
		r.Get("/api-key/status", h.handleAPIKeyStatus)
		r.Delete("/api-key", h.handleRemoveAPIKey)
		r.Post("/trial-mode", h.handleEnableTrialMode)
	})

	r.Route("/api/ai", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Post("/chat", h.handleChat)
		r.Post("/extract-issues", h.handleExtractIssues)
		r.Get("/usage", h.handleUsage)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: l.With("module", "httpapi"),
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
