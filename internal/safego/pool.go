package safego

import (
	"context"
	"log/slog"
	"sync"

	"github.com/feedback-system/feedback-system/internal/telemetry"
)

type task struct {
	name string
	fn   func()
}

// Pool runs submitted tasks on a fixed number of workers. The queue is bounded:
// Submit never blocks and reports whether the task was accepted, leaving the caller
// to decide between running the task inline and dropping it.
type Pool struct {
	queue chan task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPool starts workers goroutines serving a queue of queueSize tasks.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	p := &Pool{queue: make(chan task, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.queue {
		telemetry.WorkerPoolQueueDepth.Set(float64(len(p.queue)))
		run(t.name, t.fn)
	}
}

// Submit enqueues fn. It returns false when the queue is full or the pool is stopped.
func (p *Pool) Submit(name string, fn func()) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		telemetry.WorkerPoolQueueDepth.Set(float64(len(p.queue)))
		return true
	default:
		return false
	}
}

// SubmitOrRun enqueues fn, or runs it on the calling goroutine when the pool cannot
// accept it. Use it for work that must not be lost under backpressure.
func (p *Pool) SubmitOrRun(name string, fn func()) {
	if p.Submit(name, fn) {
		return
	}
	slog.Warn("worker pool saturated, running task inline", "task", name)
	run(name, fn)
}

// Stop refuses new tasks and waits for queued tasks to finish or ctx to end.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		telemetry.WorkerPoolQueueDepth.Set(0)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
