package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// teeHandler writes every record to the console handler and copies records
// at Error level and above to the error file handler.
type teeHandler struct {
	console slog.Handler
	errors  slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, lvl slog.Level) bool {
	return h.console.Enabled(ctx, lvl) || h.errors.Enabled(ctx, lvl)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var consoleErr, fileErr error

	if h.console.Enabled(ctx, r.Level) {
		consoleErr = h.console.Handle(ctx, r)
	}
	if r.Level >= slog.LevelError && h.errors.Enabled(ctx, r.Level) {
		fileErr = h.errors.Handle(ctx, r.Clone())
	}

	return errors.Join(consoleErr, fileErr)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{
		console: h.console.WithAttrs(attrs),
		errors:  h.errors.WithAttrs(attrs),
	}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{
		console: h.console.WithGroup(name),
		errors:  h.errors.WithGroup(name),
	}
}

// setupLogger builds the process logger. The returned closer releases the
// error log file.
func setupLogger(env, errorFile string, out io.Writer) (*slog.Logger, func() error) {
	level := slog.LevelDebug
	if env == envProd {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	switch env {
	case envDev:
		console = slog.NewJSONHandler(out, opts)
	default:
		console = slog.NewTextHandler(out, opts)
	}

	noop := func() error { return nil }
	if errorFile == "" {
		return slog.New(console), noop
	}

	f, err := os.OpenFile(errorFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log := slog.New(console)
		log.Warn("cannot open error log file", slog.String("path", errorFile), slog.String("error", err.Error()))
		return log, noop
	}

	return slog.New(&teeHandler{
		console: console,
		errors:  slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelError}),
	}), f.Close
}
