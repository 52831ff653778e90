package fxpipe

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/flush"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/fxpipe/stream"
)

// nopHandler is a slog.Handler that silently discards all log records.
// Enabled returns false so callers skip message formatting entirely.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// SetLogger configures the logger for fxpipe and all its sub-packages.
// By default, fxpipe produces no log output.
//
// SetLogger is safe for concurrent use. Pass nil to restore silence.
//
// Log levels used by fxpipe:
//   - [slog.LevelDebug]: per-flush diagnostics (placements, draws, layouts)
//   - [slog.LevelInfo]: lifecycle events (disk cache attached, device reset)
//   - [slog.LevelWarn]: non-fatal issues (compile failure, skipped batch, stale disk cache)
//   - [slog.LevelError]: configuration key collisions found in validation mode
//
// Example:
//
//	fxpipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	shader.SetLogger(l)
	diskcache.SetLogger(l)
	stream.SetLogger(l)
	flush.SetLogger(l)
}

// Logger returns the current logger used by fxpipe.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}
