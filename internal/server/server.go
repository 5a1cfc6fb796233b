package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/spherical/bbox-ocr/internal/config"
	"github.com/spherical/bbox-ocr/internal/observability"
)

// Run serves handler until ctx is cancelled, then shuts down gracefully
// within cfg.GracefulShutdown.
func Run(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *observability.Logger) error {
	logger = observability.OrNop(logger)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
