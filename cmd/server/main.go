package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/garrettladley/slackerp/internal/app"
	"github.com/garrettladley/slackerp/internal/config"
	"github.com/garrettladley/slackerp/internal/server"
	"github.com/garrettladley/slackerp/internal/xslog"
	"github.com/joho/godotenv"
)

const (
	keyPort  = "port"
	keyTasks = "tasks"

	shutdownGracePeriod = 30 * time.Second
)

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	holder, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	cfg := holder.Current()

	a, err := app.New(ctx, holder, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.ErrorContext(ctx, "failed to close app", xslog.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.InfoContext(ctx, "starting server",
		xslog.Version(),
		slog.String(keyPort, cfg.Port),
		slog.Any(keyTasks, a.Scheduler.Names()))

	coordinator := server.NewShutdownCoordinator(shutdownGracePeriod, logger)
	if err := coordinator.Serve(ctx, httpServer, a.Workers(true)...); err != nil {
		return err
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}
