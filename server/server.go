// Package server is the HTTP façade over the store and the session
// issuer. Every API endpoint is a GET with query-string arguments and a
// {"data"}/{"error"} JSON envelope; the interesting logic all lives
// below it.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adwatch/adwatch/config"
	"github.com/adwatch/adwatch/session"
	"github.com/adwatch/adwatch/store"
)

// Server serves the API and the static web client.
type Server struct {
	store  *store.Store
	issuer *session.Issuer
	cfg    config.ServerConfig
	logger *zap.SugaredLogger

	httpServer *http.Server
}

// New creates the server.
func New(s *store.Store, issuer *session.Issuer, cfg config.ServerConfig, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	srv := &Server{
		store:  s,
		issuer: issuer,
		cfg:    cfg,
		logger: logger.Named("server"),
	}
	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

// Routes builds the handler tree. Exposed for httptest.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/create_session", s.handleCreateSession)
	mux.HandleFunc("/api/session_exists", s.handleSessionExists)
	mux.HandleFunc("/api/update_push_sub", s.handleUpdatePushSub)
	mux.HandleFunc("/api/get_ad_queries", s.handleGetAdQueries)
	mux.HandleFunc("/api/get_ad_query", s.handleGetAdQuery)
	mux.HandleFunc("/api/get_ad_query_status", s.handleGetAdQueryStatus)
	mux.HandleFunc("/api/insert_ad_query", s.handleInsertAdQuery)
	mux.HandleFunc("/api/update_ad_query", s.handleUpdateAdQuery)
	mux.HandleFunc("/api/delete_ad_query", s.handleDeleteAdQuery)
	mux.HandleFunc("/api/list_ad_content", s.handleListAdContent)
	mux.HandleFunc("/api/toggle_ad_query_subscription", s.handleToggleSubscription)

	if s.cfg.AssetDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.AssetDir)))
	}

	return s.requestLog(mux)
}

// Start begins serving. Blocks until Shutdown or a listener error.
func (s *Server) Start() error {
	s.logger.Infow("Starting HTTP server", "addr", s.httpServer.Addr, "asset_dir", s.cfg.AssetDir)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// requestLog tags each request with an id and logs its outcome.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.Debugw("Request handled",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start))
	})
}
