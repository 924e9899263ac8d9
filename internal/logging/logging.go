// Package logging builds the process-wide slog.Logger from the
// LOG_LEVEL and LOG_FORMAT settings. Every component receives the
// logger through its constructor; nothing logs through the default.
package logging

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/briefmill/briefmill/internal/config"
)

// New builds the logger the whole process shares. Output goes to
// stdout; the platform collects it from there.
func New(cfg config.LoggingConfig) (*slog.Logger, error) {
	handler, err := buildHandler(cfg)
	if err != nil {
		return nil, err
	}

	return slog.New(handler), nil
}

// buildHandler picks the handler for the configured format: json for
// log collectors, text for a terminal.
func buildHandler(cfg config.LoggingConfig) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch cfg.Format {
	case "json":
		return slog.NewJSONHandler(os.Stdout, opts), nil
	case "text":
		return slog.NewTextHandler(os.Stdout, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %s", cfg.Format)
	}
}
