// Package events provides usage-event sinks and the fire-and-forget policy applied
// by workflow actions: a failing log never fails the action that produced it.
package events

import (
	"context"
	"errors"
	"log/slog"
	"time"

	ebomlca "github.com/superdango/ebom-lca"
)

// Logger appends events and never returns an error.
type Logger struct {
	sink    ebomlca.EventSink
	timeout time.Duration
	now     func() time.Time
}

type LoggerOption func(l *Logger)

// WithTimeout bounds the time spent by the sink on one event.
func WithTimeout(timeout time.Duration) LoggerOption {
	return func(l *Logger) {
		l.timeout = timeout
	}
}

// WithClock overrides the timestamp source of events without one.
func WithClock(now func() time.Time) LoggerOption {
	return func(l *Logger) {
		l.now = now
	}
}

// FireAndForget wraps sink so that its failures are logged and swallowed.
func FireAndForget(sink ebomlca.EventSink, opts ...LoggerOption) *Logger {
	l := &Logger{
		sink:    sink,
		timeout: 5 * time.Second,
		now:     time.Now,
	}
	for _, option := range opts {
		option(l)
	}
	return l
}

// Log sends the event and reports whether the sink accepted it.
func (l *Logger) Log(ctx context.Context, event ebomlca.Event) bool {
	if l == nil || l.sink == nil {
		return false
	}
	if event.At.IsZero() {
		event.At = l.now()
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
	defer cancel()

	if err := l.sink.Log(ctx, event); err != nil {
		slog.Warn("failed to log usage event", "action", event.Action, "table", event.TableID, "err", err)
		return false
	}
	return true
}

// SlogSink writes events as structured log records.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Log(ctx context.Context, event ebomlca.Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "usage event",
		"category", event.Category,
		"action", event.Action,
		"table", event.TableID,
		"step", event.Step,
		"duration_ms", event.DurationMs,
		"detail", event.Detail,
		"at", event.At,
	)
	return nil
}

// Multi sends every event to all sinks, each sink is tried even when a previous one fails.
type Multi []ebomlca.EventSink

func (m Multi) Log(ctx context.Context, event ebomlca.Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Log(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
