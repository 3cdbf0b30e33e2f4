// Package logging installs the slog default logger for the Litka binaries.
//
// The server logs to stdout, usually as JSON so deployments can ship the
// lines as-is; its level and format come from the config file, the
// LITKA_LOG_LEVEL / LITKA_LOG_FORMAT variables or the -log-level flag. The
// terminal client logs text to stderr at "warn" unless LITKA_LOG_LEVEL says
// otherwise, so log lines stay out of the chat transcript.
//
//	logging.Setup(logging.Options{Level: "info", Format: "json", Component: "server"})
//	logging.Setup(logging.Options{Level: logging.LevelFromEnv("warn"), Output: os.Stderr, Component: "client"})
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLevel overrides the log level of both binaries.
const EnvLevel = "LITKA_LOG_LEVEL"

// Options selects the handler installed by Setup.
type Options struct {
	Level  string    // debug, info, warn or error; empty means info
	Format string    // text or json; empty means text
	Output io.Writer // defaults to os.Stdout

	// Component, when set, is attached to every record as "component".
	Component string
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromEnv returns $LITKA_LOG_LEVEL, or fallback when it is unset.
func LevelFromEnv(fallback string) string {
	if v := strings.TrimSpace(os.Getenv(EnvLevel)); v != "" {
		return v
	}
	return fallback
}

// New builds a logger for opts without installing it.
func New(opts Options) (*slog.Logger, error) {
	if err := errors.Join(Validate(opts.Level), ValidateFormat(opts.Format)); err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}
	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	return logger, nil
}

// Setup installs the logger described by opts as the slog default.
// Call it once from main before anything logs.
func Setup(opts Options) error {
	logger, err := New(opts)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

// LevelNames lists the accepted level names for flag help.
func LevelNames() string {
	return "debug, info, warn, error"
}

// Validate rejects unknown level names. Empty is accepted.
func Validate(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "info", "warn", "warning", "error", "":
		return nil
	default:
		return fmt.Errorf("unknown log level %q (valid: %s)", level, LevelNames())
	}
}

// ValidateFormat rejects formats other than text and json. Empty is accepted.
func ValidateFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "json", "":
		return nil
	default:
		return fmt.Errorf("unknown log format %q (valid: text, json)", format)
	}
}
