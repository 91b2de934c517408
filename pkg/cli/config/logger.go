package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"
)

// Logger holds logger configuration
type Logger struct {
	Level string
	JSON  bool

	// Output defaults to stdout
	Output io.Writer
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("HANGAR_LOG_LEVEL"),
		},
		&cli.BoolFlag{
			Name:        "log-json",
			Usage:       "Output logs in JSON format",
			Value:       false,
			Destination: &c.JSON,
			Sources:     cli.EnvVars("HANGAR_LOG_JSON"),
		},
	}
}

// Configure configures and returns a logger
func (c *Logger) Configure() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, goerr.New("invalid log level", goerr.V("level", c.Level))
	}

	w := c.Output
	if w == nil {
		w = os.Stdout
	}

	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("PrivateKey"),
		masq.WithFieldName("DSN"),
	)

	var handler slog.Handler
	if c.JSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: filter,
		})
	} else {
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithColor(true),
			clog.WithReplaceAttr(filter),
		)
	}

	return slog.New(handler), nil
}
