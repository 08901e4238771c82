package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/app"
	"github.com/dtwincode/dtwin-supply-optimizer-32/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Serve runs the HTTP API for a until ctx is cancelled, then shuts the
// server down gracefully.
func Serve(ctx context.Context, a *app.App) error {
	cfg := a.Config.Server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(a.Services, a.Metrics, cfg.AllowedOrigins),
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Log.Info().Msg("Server exiting")
	return nil
}
