// Package async runs background goroutines that log panics instead of
// crashing the process.
package async

import "runtime/debug"

// PanicLogger receives panic reports.
type PanicLogger interface {
	Error(format string, args ...any)
}

// Go runs fn in a recovered goroutine. The returned channel is closed once
// fn has returned or panicked.
func Go(logger PanicLogger, name string, fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer Recover(logger, name)
		fn()
	}()
	return done
}

// Recover logs a recovered panic with its stack. Call it deferred.
func Recover(logger PanicLogger, name string) {
	r := recover()
	if r == nil || logger == nil {
		return
	}
	if name == "" {
		name = "anonymous"
	}
	logger.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
}
