package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// clientTimeout bounds every dashboard read at the HTTP layer per spec
// §4.9, independent of the store's own statement timeout.
const clientTimeout = 8 * time.Second

// Server wraps an http.Server with the graceful shutdown sequence the
// reference game server's gRPC gateway server follows: stop accepting new
// connections, let in-flight requests finish, then return.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

func NewServer(addr string, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      http.TimeoutHandler(handler, clientTimeout, `{"error":"request timed out"}`),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: clientTimeout + time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
