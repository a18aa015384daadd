package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

const shutdownGrace = 10 * time.Second

// Serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests before returning.
func Serve(ctx context.Context, logg *logger.Logger, addr string, handler http.Handler) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Warn(ctx, "http server did not drain cleanly")
		return server.Close()
	}
	return nil
}
