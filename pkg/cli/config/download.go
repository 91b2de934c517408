package config

import (
	"time"

	"github.com/urfave/cli/v3"
)

// Download holds download and extraction configuration
type Download struct {
	Dir              string
	UnrarPath        string
	SevenZipPath     string
	CopyFallback     bool
	Retention        time.Duration
	ProgressInterval time.Duration
	UserAgent        string
}

// Flags returns CLI flags for download configuration
func (c *Download) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "download-dir",
			Usage:       "Default destination directory of downloads",
			Value:       "downloads",
			Destination: &c.Dir,
			Sources:     cli.EnvVars("HANGAR_DOWNLOAD_DIR"),
		},
		&cli.StringFlag{
			Name:        "unrar-path",
			Usage:       "Path to the unrar executable",
			Value:       "unrar",
			Destination: &c.UnrarPath,
			Sources:     cli.EnvVars("HANGAR_UNRAR_PATH"),
		},
		&cli.StringFlag{
			Name:        "7z-path",
			Usage:       "Path to the 7z executable",
			Value:       "7z",
			Destination: &c.SevenZipPath,
			Sources:     cli.EnvVars("HANGAR_7Z_PATH"),
		},
		&cli.BoolFlag{
			Name:        "copy-fallback",
			Usage:       "Copy rar/7z archives as-is when no extractor succeeds",
			Value:       true,
			Destination: &c.CopyFallback,
			Sources:     cli.EnvVars("HANGAR_COPY_FALLBACK"),
		},
		&cli.DurationFlag{
			Name:        "download-retention",
			Usage:       "How long finished downloads stay queryable",
			Value:       5 * time.Minute,
			Destination: &c.Retention,
			Sources:     cli.EnvVars("HANGAR_DOWNLOAD_RETENTION"),
		},
		&cli.DurationFlag{
			Name:        "progress-interval",
			Usage:       "Minimum interval between progress events",
			Value:       200 * time.Millisecond,
			Destination: &c.ProgressInterval,
			Sources:     cli.EnvVars("HANGAR_PROGRESS_INTERVAL"),
		},
		&cli.StringFlag{
			Name:        "user-agent",
			Usage:       "User-Agent header of download requests",
			Value:       "hangar",
			Destination: &c.UserAgent,
			Sources:     cli.EnvVars("HANGAR_USER_AGENT"),
		},
	}
}
