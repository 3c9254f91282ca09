package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/campaign-dispatch/internal/pkg/logger"
)

// Server wraps the HTTP server for the API binary.
type Server struct {
	server *http.Server
}

// NewServer builds a server on the given port.
func NewServer(port int, h *Handlers) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      SetupRoutes(h),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// Start blocks serving requests until Shutdown.
func (s *Server) Start() error {
	logger.Info("api server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
