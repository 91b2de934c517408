package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/infra/github"
	"github.com/urfave/cli/v3"
)

// GitHub holds GitHub API configuration. Anonymous access is used when neither a token nor an App is set.
type GitHub struct {
	Token          string `masq:"secret"`
	AppID          int64
	InstallationID int64
	PrivateKey     string `masq:"secret"`
	PrivateKeyFile string
	BaseURL        string
}

// Flags returns CLI flags for GitHub configuration
func (c *GitHub) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "github-token",
			Usage:       "GitHub token for release listing",
			Destination: &c.Token,
			Sources:     cli.EnvVars("HANGAR_GITHUB_TOKEN", "GITHUB_TOKEN"),
		},
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("HANGAR_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("HANGAR_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "GitHub App private key (PEM)",
			Destination: &c.PrivateKey,
			Sources:     cli.EnvVars("HANGAR_GITHUB_PRIVATE_KEY"),
		},
		&cli.StringFlag{
			Name:        "github-private-key-file",
			Usage:       "Path to GitHub App private key file",
			Destination: &c.PrivateKeyFile,
			Sources:     cli.EnvVars("HANGAR_GITHUB_PRIVATE_KEY_FILE"),
		},
		&cli.StringFlag{
			Name:        "github-base-url",
			Usage:       "GitHub API base URL (for GitHub Enterprise)",
			Destination: &c.BaseURL,
			Sources:     cli.EnvVars("HANGAR_GITHUB_BASE_URL"),
		},
	}
}

// NewClient builds the release listing client
func (c *GitHub) NewClient() (*github.Client, error) {
	var opts []github.Option

	if c.AppID != 0 {
		key := []byte(c.PrivateKey)
		if len(key) == 0 && c.PrivateKeyFile != "" {
			data, err := os.ReadFile(c.PrivateKeyFile)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to read GitHub App private key", goerr.V("path", c.PrivateKeyFile))
			}
			key = data
		}
		if len(key) == 0 || c.InstallationID == 0 {
			return nil, goerr.New("GitHub App requires installation ID and private key", goerr.V("app_id", c.AppID))
		}
		opts = append(opts, github.WithApp(c.AppID, c.InstallationID, key))
	} else if c.Token != "" {
		opts = append(opts, github.WithToken(c.Token))
	}

	if c.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.BaseURL))
	}

	return github.NewClient(opts...)
}
