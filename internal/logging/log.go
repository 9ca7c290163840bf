// Package logging wires up the process-wide structured logger. Astrid
// components take a *slog.Logger explicitly rather than reaching for a
// global, but Setup still installs a default for library code and early
// startup lines that run before a logger is threaded through.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/astrid-audio/astrid/internal/config"
)

// Setup builds a tint-backed slog.Logger at the given level, sets it as the
// slog default, and returns it for explicit injection into subsystems.
func Setup(level config.LogLevel) *slog.Logger {
	handler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel(level),
		TimeFormat: "15:04:05.000",
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	case config.LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}

// FatalExit logs msg at error level with args, then exits the process with
// a non-zero status. Used for errors that must abort the creating process
// (e.g. ResourceExhausted during IPC cell creation).
func FatalExit(logger *slog.Logger, msg string, args ...any) {
	logger.Error(msg, args...)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
