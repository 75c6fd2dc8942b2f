package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type backgroundServices interface {
	Shutdown()
}

type workerPool interface {
	Stop(ctx context.Context) error
}

// gracefulStop stops the listener, then the rate limiters, then drains the worker pool.
// The pool is drained even when the listener fails to stop, and gets its own timeout so
// a slow listener cannot eat into it.
func gracefulStop(srv httpServer, bg backgroundServices, pool workerPool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var stopErr error
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("http server did not shut down cleanly", "error", err)
			stopErr = fmt.Errorf("server forced to shutdown: %w", err)
		}
		cancel()
	}

	if bg != nil {
		bg.Shutdown()
	}

	// Queued audit writes, archive uploads and emails need the database and network.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		slog.Warn("background work did not drain before shutdown", "error", err)
	} else {
		slog.Info("background work drained")
	}

	return stopErr
}
