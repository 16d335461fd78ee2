// Package logging builds the process-wide slog logger and adapts it to
// types.Logger for components that take the narrower interface.
package logging

import (
	"io"
	"log/slog"
	"os"

	"payhook/internal/types"
)

// ParseLevel maps a LOG_LEVEL value onto a slog level. Unknown values fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to stdout at the given level.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: false,
	})
	return slog.New(handler)
}

// Adapter implements types.Logger on top of *slog.Logger.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter wraps logger. A nil logger falls back to slog.Default().
func NewAdapter(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

func (a *Adapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *Adapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *Adapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *Adapter) With(args ...any) types.Logger {
	return &Adapter{logger: a.logger.With(args...)}
}

// Slog exposes the wrapped logger for libraries that want *slog.Logger.
func (a *Adapter) Slog() *slog.Logger {
	return a.logger
}

// Discard is a types.Logger that drops everything. Constructors fall back to
// it when given no logger.
type Discard struct{}

func (Discard) Info(string, ...any)        {}
func (Discard) Error(string, ...any)       {}
func (Discard) Warn(string, ...any)        {}
func (d Discard) With(...any) types.Logger { return d }

var (
	_ types.Logger = (*Adapter)(nil)
	_ types.Logger = Discard{}
)
