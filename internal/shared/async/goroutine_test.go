package async

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type capturingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *capturingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *capturingLogger) joined() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.lines, "\n")
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("goroutine did not finish")
	}
}

func TestGoRunsFunction(t *testing.T) {
	ran := false
	waitDone(t, Go(&capturingLogger{}, "listener", func() { ran = true }))
	if !ran {
		t.Fatal("function was not run")
	}
}

func TestGoLogsPanicAndClosesDone(t *testing.T) {
	logger := &capturingLogger{}
	waitDone(t, Go(logger, "serve", func() { panic("listener crashed") }))

	logged := logger.joined()
	if !strings.Contains(logged, "goroutine panic [serve]: listener crashed") {
		t.Fatalf("missing panic line in %q", logged)
	}
	if !strings.Contains(logged, "stack:") {
		t.Fatalf("missing stack trace in %q", logged)
	}
}

func TestRecoverToleratesNilLogger(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic escaped Recover: %v", r)
		}
	}()
	func() {
		defer Recover(nil, "nil-logger")
		panic("boom")
	}()
}
