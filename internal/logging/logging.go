// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package logging provides component-scoped structured logging on top of
// log/slog. Every subsystem fetches its own logger with WithComponent and
// attaches key/value pairs describing the event, never formatted strings.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

var (
	mu      sync.RWMutex
	handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
)

// Configure replaces the process-wide handler. Call once at startup, before
// any component logger has been used for output (existing *Logger values
// read the handler lazily on each call).
func Configure(w io.Writer, level slog.Level, json bool) {
	mu.Lock()
	defer mu.Unlock()
	opts := &slog.HandlerOptions{Level: level}
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
}

func currentHandler() slog.Handler {
	mu.RLock()
	defer mu.RUnlock()
	return handler
}

// Logger is a component-scoped logger. The zero value is not usable;
// obtain one via WithComponent.
type Logger struct {
	component string
	err       error
}

// WithComponent returns a Logger tagged with the given component name,
// e.g. logging.WithComponent("mrt").Info("task drained", "kind", k).
func WithComponent(component string) *Logger {
	return &Logger{component: component}
}

// WithError returns a derived Logger that attaches err to every log call
// made through it; the receiver is left unchanged.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{component: l.component, err: err}
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, kv ...any) {
	h := currentHandler()
	if !h.Enabled(ctx, level) {
		return
	}
	args := make([]any, 0, len(kv)+4)
	args = append(args, slog.String("component", l.component))
	if l.err != nil {
		args = append(args, slog.String("error", l.err.Error()))
	}
	args = append(args, kv...)
	r := slog.NewRecord(time.Now(), level, msg, 0)
	r.Add(args...)
	_ = h.Handle(ctx, r)
}

func (l *Logger) Debug(msg string, kv ...any) { l.log(context.Background(), slog.LevelDebug, msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.log(context.Background(), slog.LevelInfo, msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.log(context.Background(), slog.LevelWarn, msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.log(context.Background(), slog.LevelError, msg, kv...) }
