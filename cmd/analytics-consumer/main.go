package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robolike/portal/internal/app/analyticsconsumer"
	"github.com/robolike/portal/internal/config"
	"github.com/robolike/portal/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	logger.Info("starting analytics consumer", slog.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := analyticsconsumer.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize analytics consumer", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("analytics consumer stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("analytics consumer stopped gracefully")
}
