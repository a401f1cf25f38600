package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// AppLogger is the logging surface used across the service.
type AppLogger interface {
	Info(message string, args ...slog.Attr)
	Warn(message string, args ...slog.Attr)
	Error(message string, err error, args ...slog.Attr)
	Fatal(message string, err error, args ...slog.Attr)
	With(args ...slog.Attr) AppLogger
}

type AppSLogger struct {
	log *slog.Logger
}

// NewAppSLogger logs JSON in production and text when env is "dev".
func NewAppSLogger(env string) *AppSLogger {
	return newLogger(os.Stdout, env)
}

// NewDiscard drops every record. Used by tests.
func NewDiscard() *AppSLogger {
	return newLogger(io.Discard, "dev")
}

func newLogger(w io.Writer, env string) *AppSLogger {
	var h slog.Handler
	if env == "dev" {
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return &AppSLogger{log: slog.New(h).With(slog.String("app", "caseflow"))}
}

func (l *AppSLogger) Info(message string, args ...slog.Attr) {
	l.log.LogAttrs(context.Background(), slog.LevelInfo, message, args...)
}

func (l *AppSLogger) Warn(message string, args ...slog.Attr) {
	l.log.LogAttrs(context.Background(), slog.LevelWarn, message, args...)
}

func (l *AppSLogger) Error(message string, err error, args ...slog.Attr) {
	l.log.LogAttrs(context.Background(), slog.LevelError, message, append(args, errAttr(err))...)
}

func (l *AppSLogger) Fatal(message string, err error, args ...slog.Attr) {
	l.Error(message, err, args...)
	os.Exit(1)
}

func (l *AppSLogger) With(args ...slog.Attr) AppLogger {
	anyArgs := make([]any, 0, len(args))
	for _, a := range args {
		anyArgs = append(anyArgs, a)
	}
	return &AppSLogger{log: l.log.With(anyArgs...)}
}

func errAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
