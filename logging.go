package hll

import (
	"log/slog"
	"os"
	"strings"
)

// initLogger configures the package-level slog logger used for the small
// set of operational diagnostics the engine itself needs to emit: the
// hash provider's negative-seed warning. The logger is unexported; the CLI
// and driver packages do not log through it.
// JSON if HLL_JSON_LOG=1/true, otherwise text; level from HLL_LOG_LEVEL.
func initLogger() *slog.Logger {
	mode := strings.ToLower(os.Getenv("HLL_JSON_LOG"))
	var handler slog.Handler
	opts := &slog.HandlerOptions{AddSource: false, Level: levelFromEnv()}
	if mode == "1" || mode == "true" || mode == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler).With("component", "hll")
}

func levelFromEnv() slog.Leveler {
	switch strings.ToLower(os.Getenv("HLL_LOG_LEVEL")) {
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

var logger = initLogger()
