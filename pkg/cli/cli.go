package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/cli/config"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/utils/errs"
	"github.com/urfave/cli/v3"
)

// Run runs the CLI application
func Run(ctx context.Context, args []string) error {
	// .env only fills variables that are not already set
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return goerr.Wrap(err, "failed to load .env file")
	}

	var (
		loggerCfg config.Logger
		sentryCfg config.Sentry
		logger    *slog.Logger
	)

	app := &cli.Command{
		Name:    "hangar",
		Usage:   "Release catalog, download and archive backend for a game launcher",
		Version: types.Version,
		Flags:   append(loggerCfg.Flags(), sentryCfg.Flags()...),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}

			if err := sentryCfg.Configure(); err != nil {
				return nil, err
			}

			slog.SetDefault(logger)
			ctx = ctxlog.With(ctx, logger)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			errs.Flush(flushTimeout)
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdReleases(),
			cmdGet(),
			cmdExtract(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}

	return nil
}
