// Package server implements the RepForm HTTP API: session upload and
// server-side analysis, session history, progression and the MCP endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/claude/repform/internal/config"
	repmcp "github.com/claude/repform/internal/mcp"
	"github.com/claude/repform/internal/session"
	"github.com/claude/repform/internal/storage"
	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Store is the persistence the handlers need. *storage.DB satisfies it.
type Store interface {
	repmcp.DataSource
	UserStore
	StoreSession(ctx context.Context, userID int, source string, rec session.Record, progress storage.ProgressFunc) (storage.StoredSession, error)
	InsertImportLog(ctx context.Context, log storage.ImportLog) (int64, error)
	QueryImportLogs(ctx context.Context, userID, limit int) ([]storage.ImportLog, error)
}

// Compile-time check: *storage.DB satisfies Store.
var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  Store
	cfg    *config.Config
	log    *slog.Logger
	router chi.Router
	whois  WhoIsClient
	mcp    http.Handler
}

// New creates a new Server with all routes configured.
func New(store Store, cfg *config.Config, version string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		cfg:    cfg,
		log:    log,
		router: chi.NewRouter(),
	}
	mcpSrv := repmcp.New(store, version, log)
	s.mcp = mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			return repmcp.WithUserID(ctx, userIDFromContext(r))
		}),
	)
	s.routes()
	return s
}

// SetTailscale switches identity resolution from the dev user to tailnet
// WhoIs lookups.
func (s *Server) SetTailscale(wc WhoIsClient) {
	s.whois = wc
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) identify(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.whois == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.whois, s.store, s.log)(next).ServeHTTP(w, r)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identify)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.cfg.Auth.APIKey))
			r.Post("/sessions", s.handleUploadSession)
			r.Post("/analyze", s.handleAnalyze)
		})

		r.Get("/me", s.handleMe)
		r.Get("/sessions", s.handleQuerySessions)
		r.Get("/sessions/stats", s.handleSessionStats)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/progression", s.handleProgression)
		r.Get("/exercises", s.handleExercises)
		r.Get("/imports", s.handleImportLogs)
	})

	s.router.Handle("/mcp", s.mcp)
}

// contextWithTimeout returns a background context with a 5-second timeout for
// bookkeeping that must outlive the request.
func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
