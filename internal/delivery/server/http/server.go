package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"agentchat/internal/shared/async"
	"agentchat/internal/shared/logging"
)

const shutdownTimeout = 10 * time.Second

// NewServer wraps a handler in an http.Server with the API's timeouts.
// Write timeouts leave room for slow agents.
func NewServer(addr string, handler http.Handler, agentTimeout time.Duration) *http.Server {
	if agentTimeout <= 0 {
		agentTimeout = time.Minute
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      agentTimeout*2 + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Serve runs the server until ctx is cancelled, then shuts it down
// gracefully.
func Serve(ctx context.Context, server *http.Server, logger logging.Logger) error {
	logger = logging.OrNop(logger)

	errCh := make(chan error, 1)
	done := async.Go(logger, "server.listen", func() {
		logger.Info("Server listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	})

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := server.Shutdown(shutdownCtx)

		var serveErr error
		select {
		case serveErr = <-errCh:
		case <-done:
			select {
			case serveErr = <-errCh:
			default:
			}
		}
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}
		logger.Info("Server stopped")
		return nil
	}
}
