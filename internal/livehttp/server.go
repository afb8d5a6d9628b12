package livehttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server runs an HTTP handler on a loopback listener.
type Server struct {
	addr         string
	handler      http.Handler
	httpServer   *http.Server
	listener     net.Listener
	logger       *zap.Logger
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New creates a server for handler bound to addr, e.g. "127.0.0.1:17889".
// Port 0 picks a free port; Addr reports the bound address after Start.
func New(addr string, handler http.Handler, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:         addr,
		handler:      handler,
		logger:       logger,
		readTimeout:  10 * time.Second,
		writeTimeout: 35 * time.Second,
	}
}

// Start begins listening in a goroutine. It returns when the socket is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started, or the configured address otherwise.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Running reports whether Start succeeded and Shutdown has not been called.
func (s *Server) Running() bool {
	return s.httpServer != nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	s.httpServer = nil
	s.listener = nil
	return err
}
