package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/goliatone/go-here/auth"
)

// logger adapts slog to the printf style logger the packages expect
type logger struct {
	log *slog.Logger
}

func newLogger(level string) *logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &logger{log: slog.New(h)}
}

// named returns a logger tagging every line with component
func (l *logger) named(component string) *logger {
	return &logger{log: l.log.With("component", component)}
}

func (l *logger) Debug(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l *logger) Info(format string, args ...any) {
	l.log.Info(fmt.Sprintf(format, args...))
}

func (l *logger) Warn(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l *logger) Error(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

// activitySink writes account activity as structured log lines
func (l *logger) activitySink() auth.ActivitySink {
	return auth.ActivitySinkFunc(func(ctx context.Context, event auth.ActivityEvent) error {
		l.log.InfoContext(ctx, "activity",
			"event", string(event.EventType),
			"user_id", event.UserID,
			"metadata", event.Metadata,
			"occurred_at", event.OccurredAt,
		)
		return nil
	})
}
