package log

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var logger *slog.Logger
var loggerMutex sync.Mutex

// Level resolves the process log level from SHAREWARD_LOG_LEVEL. Unset or
// unrecognized values fall back to slog.LevelWarn so a misconfigured node
// degrades to quiet operation rather than flooding stdout.
func Level() slog.Level {
	switch strings.ToUpper(os.Getenv("SHAREWARD_LOG_LEVEL")) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Log returns the process-wide JSON logger, initializing it on first use.
func Log() *slog.Logger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if logger != nil {
		return logger
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: Level(),
	})
	logger = slog.New(handler)
	return logger
}

// Fatal logs msg at error level and terminates the process. Used for
// startup failures (bad config, bind failure, cluster join failure) where
// continuing would leave the node in an undefined state.
func Fatal(msg string) {
	Log().Error(msg)
	os.Exit(1)
}

// FatalF formats and logs a fatal message, then terminates the process.
func FatalF(format string, args ...any) {
	Log().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
