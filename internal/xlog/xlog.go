// Package xlog configures the process-wide structured logger.
package xlog

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures slog based on the LOG_LEVEL environment variable.
// Supported levels: debug, info, warn, error. Mirrors the teacher's
// util.InitSlog; it takes no override of its own.
func Init() {
	level := slog.LevelInfo
	if logLevel, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch strings.ToLower(logLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// EvalError logs a moonblade evaluation error the way the "log" error
// policy requires: print to stderr, caller substitutes Null and continues.
func EvalError(cmd string, row int, err error) {
	slog.Warn("evaluation error", "command", cmd, "row", row, "error", err)
}
