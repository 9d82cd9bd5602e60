package logging

import (
	"log/slog"
	"os"
)

var Logger *slog.Logger

func init() {
	Logger = newLogger()
}

// Init rebuilds the logger from the environment. Call it once from main
// before anything logs; package init already provides a usable default.
func Init() {
	Logger = newLogger()
}

func newLogger() *slog.Logger {
	level := new(slog.LevelVar) // dynamic level if we ever want to adjust it
	if os.Getenv("LOG_LEVEL") == "debug" {
		level.Set(slog.LevelDebug)
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "text" {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// Shortcut helpers (optional)
func Info(msg string, args ...any)  { Logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger.Warn(msg, args...) }
func Error(msg string, args ...any) { Logger.Error(msg, args...) }
func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

// Fatal logs at error level and exits. Only for unrecoverable startup
// failures; never called once a serial port is held open.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}
