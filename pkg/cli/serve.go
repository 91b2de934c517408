package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/cli/config"
	controller "github.com/m-mizutani/hangar/pkg/controller/http"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/infra/archive"
	"github.com/m-mizutani/hangar/pkg/infra/notify"
	"github.com/m-mizutani/hangar/pkg/infra/transfer"
	"github.com/m-mizutani/hangar/pkg/usecase"
	"github.com/m-mizutani/hangar/pkg/utils/async"
	"github.com/urfave/cli/v3"
)

const flushTimeout = 2 * time.Second

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		catalogCfg  config.Catalog
		downloadCfg config.Download
		warmup      bool
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, catalogCfg.Flags()...)
	flags = append(flags, downloadCfg.Flags()...)
	flags = append(flags, &cli.BoolFlag{
		Name:        "warmup",
		Usage:       "Fetch every catalog category once at startup",
		Destination: &warmup,
		Sources:     cli.EnvVars("HANGAR_WARMUP"),
	})

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the local HTTP API",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting hangar server",
				slog.String("addr", serverCfg.Addr),
				slog.Any("github", githubCfg),
				slog.Any("download", downloadCfg),
			)

			sources, err := catalogCfg.Load()
			if err != nil {
				return err
			}
			ghClient, err := githubCfg.NewClient()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}

			// Create use cases
			catalogUC := usecase.NewCatalog(ghClient, sources)
			archiveUC := newArchiveUseCase(downloadCfg)

			host := newTransferHost(downloadCfg)
			defer host.Close()

			broker := notify.NewBroker()
			downloader := usecase.NewDownloader(host, broker,
				usecase.WithArchive(archiveUC),
				usecase.WithRetention(downloadCfg.Retention),
			)

			janitorCtx, stopJanitor := context.WithCancel(ctx)
			defer stopJanitor()
			go downloader.RunJanitor(janitorCtx, time.Minute)

			if warmup {
				warmupCatalog(ctx, catalogUC)
			}

			// Create HTTP server with options
			server, err := controller.NewServer(
				ctx,
				controller.UseCases{
					Catalog:  catalogUC,
					Download: downloader,
					Archive:  archiveUC,
					Events:   broker,
				},
				controller.WithAddr(serverCfg.Addr),
				controller.WithDownloadDir(downloadCfg.Dir),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			// Start server in goroutine
			go func() {
				logger.Info("HTTP server starting", slog.String("addr", serverCfg.Addr))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Error("HTTP server error", slog.Any("error", err))
				}
			}()

			// Wait for interrupt signal
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

			select {
			case <-ctx.Done():
				logger.Info("Context cancelled, shutting down...")
			case sig := <-sigChan:
				logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
			}

			// Graceful shutdown
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				return goerr.Wrap(err, "failed to shutdown server gracefully")
			}

			logger.Info("Server shutdown complete", slog.Int("active_downloads", downloader.Active()))
			return nil
		},
	}
}

// warmupCatalog refreshes every category in the background. Failures leave the category unloaded.
func warmupCatalog(ctx context.Context, catalogUC interfaces.CatalogUseCase) {
	for _, src := range catalogUC.Sources() {
		category := src.Category
		async.Dispatch(ctx, func(ctx context.Context) error {
			_, err := catalogUC.Refresh(ctx, category)
			return err
		})
	}
}

func newArchiveUseCase(cfg config.Download) interfaces.ArchiveUseCase {
	return usecase.NewArchive(
		usecase.WithZipExtractor(archive.NewZipExtractor()),
		usecase.WithUnrarExtractor(archive.NewUnrar(cfg.UnrarPath)),
		usecase.WithSevenZipExtractor(archive.NewSevenZip(cfg.SevenZipPath)),
		usecase.WithCopyFallback(cfg.CopyFallback),
	)
}

func newTransferHost(cfg config.Download) *transfer.HTTPHost {
	return transfer.NewHTTPHost(
		transfer.WithProgressInterval(cfg.ProgressInterval),
		transfer.WithUserAgent(cfg.UserAgent),
	)
}
