package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it via options so tests
// can substitute a discard handler.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
