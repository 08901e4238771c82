package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/api"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/app"
	"github.com/dtwincode/dtwin-supply-optimizer-32/internal/config"
	"github.com/dtwincode/dtwin-supply-optimizer-32/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.LogLevel)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wait for interrupt signal to gracefully shut down the server
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize app")
	}
	defer a.Close()

	if err := api.Serve(ctx, a); err != nil {
		logger.Log.Error().Err(err).Msg("Server stopped with error")
	}
}
