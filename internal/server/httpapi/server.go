// Package httpapi exposes the sync, account, and key-escrow services over
// HTTP with JSON bodies and bearer-token authentication.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mpavlenko/docketsync/internal/common"
	"github.com/mpavlenko/docketsync/internal/logging"
	"github.com/mpavlenko/docketsync/internal/server/config"
	"github.com/mpavlenko/docketsync/internal/server/services"
)

// Server wires the services into an http.Server.
type Server struct {
	cfg   *config.Config
	users *services.UserService
	keys  *services.KeyService
	sync  *services.SyncService
	log   logging.Logger

	httpServer *http.Server
}

func NewServer(cfg *config.Config, users *services.UserService, keys *services.KeyService, sync *services.SyncService, log logging.Logger) *Server {
	return &Server{cfg: cfg, users: users, keys: keys, sync: sync, log: log}
}

// Handler builds the route table. Sync and key routes require a bearer token;
// register, login, and ping do not.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("POST /users/register", s.handleRegister)
	mux.HandleFunc("POST /users/login", s.handleLogin)

	mux.Handle("POST /sync/pull", s.authenticated(s.handlePull))
	mux.Handle("POST /sync/push", s.authenticated(s.handlePush))
	mux.Handle("GET /users/key", s.authenticated(s.handleGetKey))
	mux.Handle("POST /users/key", s.authenticated(s.handlePutKey))

	return s.logRequests(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.EndpointAddr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server listening", "addr", s.cfg.EndpointAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps sentinel errors to HTTP statuses. Internal failures are
// logged with detail but reported opaquely.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrBatchTooLarge):
		status = http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrAlreadyExists):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}
