package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubServer struct{ err error }

func (s stubServer) Shutdown(context.Context) error { return s.err }

type stubBackground struct{ stopped bool }

func (b *stubBackground) Shutdown() { b.stopped = true }

type stubPool struct {
	stopped bool
	ctxErr  error
}

func (p *stubPool) Stop(ctx context.Context) error {
	p.stopped = true
	p.ctxErr = ctx.Err()
	return nil
}

func TestGracefulStop_DrainsPoolWhenListenerFails(t *testing.T) {
	bg := &stubBackground{}
	pool := &stubPool{}

	err := gracefulStop(stubServer{err: context.DeadlineExceeded}, bg, pool, time.Second)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("gracefulStop() error = %v, want DeadlineExceeded", err)
	}
	if !bg.stopped {
		t.Error("rate limiters not stopped")
	}
	if !pool.stopped {
		t.Fatal("worker pool not drained after a failed listener shutdown")
	}
	if pool.ctxErr != nil {
		t.Errorf("pool drained with an already-expired context: %v", pool.ctxErr)
	}
}

func TestGracefulStop_CleanShutdown(t *testing.T) {
	pool := &stubPool{}
	if err := gracefulStop(stubServer{}, &stubBackground{}, pool, 0); err != nil {
		t.Errorf("gracefulStop() error = %v", err)
	}
	if !pool.stopped {
		t.Error("worker pool not drained")
	}
}

func TestGracefulStop_WithoutListener(t *testing.T) {
	pool := &stubPool{}
	if err := gracefulStop(nil, &stubBackground{}, pool, time.Second); err != nil {
		t.Errorf("gracefulStop() error = %v", err)
	}
	if !pool.stopped {
		t.Error("worker pool not drained when the listener never started")
	}
}
