package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger. Development builds get colored tint output;
// release builds (version set via -ldflags) log JSON tagged with version and env.
func New(level slog.Level, appEnv, version, appName string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, appEnv, version, appName)
}

// NewWithWriter is New with an explicit destination; the trainer logs to stderr.
func NewWithWriter(w io.Writer, level slog.Level, appEnv, version, appName string) *slog.Logger {
	if version == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(h).With(
		"app", appName,
		"version", version,
		"env", appEnv,
	)
}
