package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// DefaultServerFactory is the default implementation of ServerFactory
type DefaultServerFactory struct{}

// NewServerFactory creates a new server factory
func NewServerFactory() ServerFactory {
	return &DefaultServerFactory{}
}

// CreateServerStarter creates a server starter
func (f *DefaultServerFactory) CreateServerStarter() ServerStarter {
	return &DefaultServerStarter{}
}

// DefaultServerStarter is the default implementation of ServerStarter
type DefaultServerStarter struct{}

// StartServer listens on the server's address and shuts down gracefully
// when ctx is cancelled.
func (s *DefaultServerStarter) StartServer(ctx context.Context, server *Server) error {
	httpServer := &http.Server{
		Addr:              server.config.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("status server listening", zap.String("addr", server.config.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
