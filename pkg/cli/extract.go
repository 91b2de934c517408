package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/cli/config"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/urfave/cli/v3"
)

func cmdExtract() *cli.Command {
	var (
		downloadCfg config.Download
		dest        string
	)

	flags := append(downloadCfg.Flags(),
		&cli.StringFlag{
			Name:        "dest",
			Aliases:     []string{"d"},
			Usage:       "Destination directory (default: archive path without extension)",
			Destination: &dest,
		},
	)

	return &cli.Command{
		Name:      "extract",
		Aliases:   []string{"x"},
		Usage:     "Extract a zip, rar or 7z archive and delete it on success",
		ArgsUsage: "ARCHIVE",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return goerr.New("exactly one archive is required", goerr.T(types.ErrTagInvalidRequest))
			}
			archivePath := c.Args().First()
			if dest == "" {
				dest = strings.TrimSuffix(archivePath, filepath.Ext(archivePath))
			}

			result, err := newArchiveUseCase(downloadCfg).Extract(ctx, archivePath, dest)
			if err != nil {
				return err
			}

			switch result.Outcome {
			case model.OutcomeExtracted:
				_, _ = color.New(color.FgGreen).Fprintf(os.Stderr, "✔ extracted with %s to %s\n", result.Tool, result.Destination)
			case model.OutcomeDegraded:
				_, _ = color.New(color.FgYellow).Fprintf(os.Stderr, "! no extractor available, copied to %s\n", result.Destination)
			case model.OutcomeNotExtracted:
				_, _ = color.New(color.Faint).Fprintf(os.Stderr, "- %s is not a supported archive\n", result.Source)
			}
			return nil
		},
	}
}
