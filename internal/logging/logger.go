// Package logging configures structured logging for the trace synthesizer.
//
// The default "trace" format writes one line per record:
//
//	(2024-05-01 12:00:00,000) Trace synthesizer -- [WARNING] Failed to save out.csv attempt=1
//
// Loggers are built with New and passed to the components that log. Setup
// also installs the logger as the slog default and is meant to be called
// once, from main.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	slogseq "github.com/sokkalf/slog-seq"
)

// Options selects the level, format and sinks of a logger.
type Options struct {
	// Level values: "debug", "info", "warn", "error" (default: "info")
	Level string

	// Format values: "trace", "text", "json" (default: "trace")
	Format string

	// SeqURL, when set, also ships records to a Seq server.
	SeqURL string

	// Output is the console sink (default: os.Stdout).
	Output io.Writer
}

// New builds a logger from opts without touching global state.
// The returned func flushes and closes any remote sink.
func New(opts Options) (*slog.Logger, func()) {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}

	var console slog.Handler
	switch strings.ToLower(opts.Format) {
	case "json":
		console = slog.NewJSONHandler(out, handlerOpts)
	case "text":
		console = slog.NewTextHandler(out, handlerOpts)
	default:
		console = NewTraceHandler(out, handlerOpts)
	}

	if opts.SeqURL == "" {
		return slog.New(console), func() {}
	}

	_, seqHandler := slogseq.NewLogger(
		opts.SeqURL,
		slogseq.WithBatchSize(50),
		slogseq.WithFlushInterval(500*time.Millisecond),
		slogseq.WithHandlerOptions(handlerOpts),
	)

	// If Seq is not available, use console only
	if seqHandler == nil {
		return slog.New(console), func() {}
	}

	logger := slog.New(&multiHandler{handlers: []slog.Handler{console, seqHandler}})
	return logger, func() { seqHandler.Close() }
}

// Setup builds a logger with New and installs it as the slog default.
func Setup(opts Options) (*slog.Logger, func()) {
	logger, closeFn := New(opts)
	slog.SetDefault(logger)
	return logger, closeFn
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID tags logger with chi's request id when ctx carries one.
func WithRequestID(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		return logger.With("request_id", reqID)
	}
	return logger
}

// WithFields returns a request-scoped logger with additional fields.
//
//	importLogger := logging.WithFields(ctx, logger, "table", name)
//	importLogger.Info("table imported")
func WithFields(ctx context.Context, logger *slog.Logger, args ...any) *slog.Logger {
	return WithRequestID(ctx, logger).With(args...)
}
