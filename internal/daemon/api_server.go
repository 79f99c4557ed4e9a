package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"mashup/internal/logging"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	handler http.Handler

	// server is replaced on every start since a shut down server cannot serve again.
	server *http.Server
	// address is set once the listener is bound and cleared on stop; the
	// daemon status reads it from other goroutines.
	address atomic.Pointer[string]
}

func newAPIServer(bind string, handler http.Handler, logger *slog.Logger) *apiServer {
	bind = strings.TrimSpace(bind)
	if bind == "" || handler == nil {
		return nil
	}
	return &apiServer{
		bind:    bind,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		handler: handler,
	}
}

func (s *apiServer) start() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Artifact downloads can be large.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	s.server = server
	bound := listener.Addr().String()
	s.address.Store(&bound)

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "web form and job API unavailable"),
			)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", bound))
	return nil
}

func (s *apiServer) addr() string {
	if s == nil {
		return ""
	}
	if bound := s.address.Load(); bound != nil {
		return *bound
	}
	return ""
}

func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
		_ = s.server.Close()
	}
	s.server = nil
	s.address.Store(nil)
}
