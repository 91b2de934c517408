package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"sync"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/cli/config"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdGet() *cli.Command {
	var (
		downloadCfg config.Download
		fileName    string
		extract     bool
	)

	flags := append(downloadCfg.Flags(),
		&cli.StringFlag{
			Name:        "name",
			Aliases:     []string{"n"},
			Usage:       "File name to save as (default: last URL path segment)",
			Destination: &fileName,
		},
		&cli.BoolFlag{
			Name:        "extract",
			Aliases:     []string{"x"},
			Usage:       "Extract the archive after download",
			Destination: &extract,
		},
	)

	return &cli.Command{
		Name:      "get",
		Aliases:   []string{"g"},
		Usage:     "Download a file and optionally extract it",
		ArgsUsage: "URL",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return goerr.New("exactly one URL is required", goerr.T(types.ErrTagInvalidRequest))
			}
			target := c.Args().First()

			if fileName == "" {
				fileName = fileNameFromURL(target)
			}

			host := newTransferHost(downloadCfg)
			defer host.Close()

			printer := newProgressPrinter(os.Stderr, extract)
			downloader := usecase.NewDownloader(host, printer,
				usecase.WithArchive(newArchiveUseCase(downloadCfg)),
			)

			req, err := downloader.Start(ctx, &model.DownloadRequest{
				URL:         target,
				FileName:    fileName,
				Destination: downloadCfg.Dir,
				AutoExtract: extract,
			})
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-printer.done:
			}

			status, ok := downloader.Status(req.ID)
			if !ok {
				return goerr.New("download disappeared", goerr.V("id", req.ID))
			}
			if status.State == model.DownloadFailed {
				return goerr.New("download failed",
					goerr.T(types.ErrTagTransferFailed),
					goerr.V("url", target),
					goerr.V("reason", status.Error),
				)
			}
			if status.Extract != nil && status.Extract.Status == model.ExtractionFailed {
				return goerr.New("extraction failed",
					goerr.T(types.ErrTagExtractionFailed),
					goerr.V("path", req.Path),
					goerr.V("reason", status.Extract.Error),
				)
			}
			return nil
		},
	}
}

func fileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	return name
}

// progressPrinter is an EventSink writing a single download's events to a terminal
type progressPrinter struct {
	w           io.Writer
	waitExtract bool
	done        chan struct{}
	once        sync.Once
	mu          sync.Mutex
}

func newProgressPrinter(w io.Writer, waitExtract bool) *progressPrinter {
	return &progressPrinter{
		w:           w,
		waitExtract: waitExtract,
		done:        make(chan struct{}),
	}
}

func (p *progressPrinter) Emit(ctx context.Context, ev *model.DownloadEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case model.EventProgress:
		pr := ev.Progress
		if pr.TotalBytes > 0 {
			_, _ = fmt.Fprintf(p.w, "\r%s  %5.1f%%  %s / %s  %s/s",
				ev.FileName, pr.Percent, humanBytes(pr.ReceivedBytes), humanBytes(pr.TotalBytes), humanBytes(int64(pr.Speed)))
		} else {
			_, _ = fmt.Fprintf(p.w, "\r%s  %s  %s/s", ev.FileName, humanBytes(pr.ReceivedBytes), humanBytes(int64(pr.Speed)))
		}

	case model.EventCompleted:
		_, _ = color.New(color.FgGreen).Fprintf(p.w, "\n✔ %s (%s)\n", ev.Path, humanBytes(ev.Size))
		if !p.waitExtract {
			p.finish()
		}

	case model.EventFailed:
		_, _ = color.New(color.FgRed).Fprintf(p.w, "\n✘ %s: %s\n", ev.FileName, ev.Error)
		p.finish()

	case model.EventExtraction:
		ex := ev.Extraction
		switch ex.Status {
		case model.ExtractionDone:
			_, _ = color.New(color.FgGreen).Fprintf(p.w, "✔ extracted to %s\n", ex.Destination)
		case model.ExtractionDegraded:
			_, _ = color.New(color.FgYellow).Fprintf(p.w, "! no extractor available, copied to %s\n", ex.Destination)
		case model.ExtractionSkipped:
			_, _ = color.New(color.Faint).Fprintf(p.w, "- not an archive, left as is\n")
		case model.ExtractionFailed:
			_, _ = color.New(color.FgRed).Fprintf(p.w, "✘ extraction failed: %s\n", ex.Error)
		}
		p.finish()
	}
}

func (p *progressPrinter) finish() {
	p.once.Do(func() { close(p.done) })
}
