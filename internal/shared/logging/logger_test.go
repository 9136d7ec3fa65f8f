package logging

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"agentchat/internal/observability"
	id "agentchat/internal/shared/utils/id"
)

type recordingLogger struct {
	lines []string
}

func (r *recordingLogger) Debug(format string, args ...any) { r.add("DEBUG", format, args...) }
func (r *recordingLogger) Info(format string, args ...any)  { r.add("INFO", format, args...) }
func (r *recordingLogger) Warn(format string, args ...any)  { r.add("WARN", format, args...) }
func (r *recordingLogger) Error(format string, args ...any) { r.add("ERROR", format, args...) }

func (r *recordingLogger) add(level, format string, args ...any) {
	r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
}

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var typed *recordingLogger
	var logger Logger = typed
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "test")
	logger.Info("hello %s", "world")

	if want := "hello world"; !strings.Contains(buf.String(), want) {
		t.Fatalf("expected %q in output, got %q", want, buf.String())
	}
	if !strings.Contains(buf.String(), "component=test") {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
}

func TestFromContextPrefixesLogID(t *testing.T) {
	rec := &recordingLogger{}
	ctx := id.WithLogID(context.Background(), "log-abc")

	FromContext(ctx, rec).Info("request done")

	if len(rec.lines) != 1 || rec.lines[0] != "INFO logid=log-abc request done" {
		t.Fatalf("unexpected lines %v", rec.lines)
	}
}

func TestFromContextUsesStructuredLogID(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{Format: "json", Output: buf})
	ctx := id.WithLogID(context.Background(), "log-xyz")

	FromContext(ctx, FromObservabilityWithComponent(base, "http")).Info("ok")

	if !strings.Contains(buf.String(), `"log_id":"log-xyz"`) {
		t.Fatalf("expected log_id field, got %q", buf.String())
	}
}
