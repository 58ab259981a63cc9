package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/garrettladley/slackerp/internal/xslog"
	"golang.org/x/sync/errgroup"
)

// Worker is a background loop that returns once its context is cancelled.
type Worker func(ctx context.Context) error

// ShutdownCoordinator runs the HTTP server next to the background workers
// and stops them in order: the server stops accepting requests first, so
// handlers can still enqueue jobs while they drain, then the workers.
type ShutdownCoordinator struct {
	gracePeriod time.Duration
	logger      *slog.Logger
}

func NewShutdownCoordinator(gracePeriod time.Duration, logger *slog.Logger) *ShutdownCoordinator {
	return &ShutdownCoordinator{
		gracePeriod: gracePeriod,
		logger:      logger,
	}
}

// Serve blocks until ctx is cancelled, the server fails, or a worker fails.
func (sc *ShutdownCoordinator) Serve(ctx context.Context, srv *http.Server, workers ...Worker) error {
	workerCtx, stopWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorkers()

	g, gctx := errgroup.WithContext(workerCtx)
	for _, w := range workers {
		g.Go(func() error { return w(gctx) })
	}

	serveErr := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		serveErr <- err
	}()

	var err error
	select {
	case <-ctx.Done():
		sc.logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("server error: %w", err)
		}
	case <-gctx.Done():
		sc.logger.ErrorContext(ctx, "background worker stopped, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.gracePeriod)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		err = errors.Join(err, fmt.Errorf("server shutdown failed: %w", serr))
	}
	sc.logger.InfoContext(ctx, "server stopped, draining workers",
		xslog.Duration(sc.gracePeriod))

	stopWorkers()
	return errors.Join(err, g.Wait())
}
