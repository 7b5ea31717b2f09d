// Package server runs the HTTP side of a simulator process: metrics and
// health endpoints, stopped by context cancellation.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dd0wney/cluso-relaysim/pkg/logging"
)

// DefaultShutdownTimeout bounds the drain of open requests
const DefaultShutdownTimeout = 5 * time.Second

// GracefulServer wraps an HTTP server that drains on shutdown
type GracefulServer struct {
	server          *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	ready chan struct{}
	addr  net.Addr
}

// Option configures a GracefulServer
type Option func(*GracefulServer)

// WithLogger sets the server logger
func WithLogger(logger logging.Logger) Option {
	return func(gs *GracefulServer) { gs.logger = logger }
}

// WithShutdownTimeout sets how long Run waits for requests to drain
func WithShutdownTimeout(d time.Duration) Option {
	return func(gs *GracefulServer) { gs.shutdownTimeout = d }
}

// NewGracefulServer creates a server for handler on addr. ":0" picks a port,
// which Addr reports once the server is listening.
func NewGracefulServer(addr string, handler http.Handler, opts ...Option) *GracefulServer {
	gs := &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:          logging.NewNopLogger(),
		shutdownTimeout: DefaultShutdownTimeout,
		shutdownCh:      make(chan struct{}),
		ready:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(gs)
	}
	gs.logger = gs.logger.With(logging.Component("http"))
	return gs
}

// Run serves until ctx is done, then shuts down gracefully. It returns nil
// after a clean shutdown.
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		close(gs.ready)
		return err
	}
	gs.addr = ln.Addr()
	close(gs.ready)
	gs.logger.Info("http server listening", logging.String("addr", gs.addr.String()))

	errCh := make(chan error, 1)
	go func() { errCh <- gs.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	if err := gs.Shutdown(gs.shutdownTimeout); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr blocks until Run has bound its listener and returns the address. It
// returns nil when binding failed.
func (gs *GracefulServer) Addr() net.Addr {
	<-gs.ready
	return gs.addr
}

// Shutdown initiates a graceful shutdown. Only the first call has effect.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("http server shutting down", logging.Duration("timeout", timeout))
		if err = gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("http shutdown failed", logging.Error(err))
			return
		}
		gs.logger.Info("http server stopped")
	})
	return err
}

// IsShuttingDown returns true if shutdown has been initiated
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// ShutdownChannel returns a channel that closes when shutdown is initiated
func (gs *GracefulServer) ShutdownChannel() <-chan struct{} {
	return gs.shutdownCh
}
