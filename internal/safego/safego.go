// Package safego provides panic-recovering goroutine launchers for background work: Go
// for one-off goroutines and Pool for a bounded set of workers draining a bounded queue.
package safego

import "log/slog"

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process. This should be used for all
// fire-and-forget goroutines where an unrecovered panic would silently kill the
// goroutine forever.
func Go(fn func()) {
	go run("goroutine", fn)
}

// run executes fn, recovering and logging any panic.
func run(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background goroutine", "task", name, "panic", r)
		}
	}()
	fn()
}
