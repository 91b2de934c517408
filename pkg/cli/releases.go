package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/cli/config"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/infra/github"
	"github.com/m-mizutani/hangar/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdReleases() *cli.Command {
	var (
		githubCfg  config.GitHub
		catalogCfg config.Catalog
		owner      string
		repo       string
		category   string
		asJSON     bool
	)

	flags := append(githubCfg.Flags(), catalogCfg.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "owner",
			Usage:       "Repository owner",
			Destination: &owner,
		},
		&cli.StringFlag{
			Name:        "repo",
			Usage:       "Repository name",
			Destination: &repo,
		},
		&cli.StringFlag{
			Name:        "category",
			Aliases:     []string{"c"},
			Usage:       "Catalog category to list instead of owner/repo",
			Destination: &category,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print releases as JSON",
			Destination: &asJSON,
		},
	)

	return &cli.Command{
		Name:    "releases",
		Aliases: []string{"r"},
		Usage:   "List every release of a repository",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			sources, err := catalogCfg.Load()
			if err != nil {
				return err
			}
			ghClient, err := githubCfg.NewClient()
			if err != nil {
				return goerr.Wrap(err, "failed to create GitHub client")
			}
			catalogUC := usecase.NewCatalog(ghClient, sources)

			var releases []*model.Release
			switch {
			case category != "":
				snapshot, err := catalogUC.Refresh(ctx, category)
				if err != nil {
					return withRateLimitHint(err)
				}
				releases = snapshot.Releases
			case owner != "" && repo != "":
				releases, err = catalogUC.FetchAllReleases(ctx, owner, repo)
				if err != nil {
					return withRateLimitHint(err)
				}
			default:
				return goerr.New("either --category or --owner and --repo is required", goerr.T(types.ErrTagInvalidRequest))
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(releases)
			}
			printReleases(os.Stdout, releases)
			return nil
		},
	}
}

// withRateLimitHint points anonymous users at the token flag when GitHub refuses the request
func withRateLimitHint(err error) error {
	switch github.StatusCode(err) {
	case http.StatusForbidden, http.StatusTooManyRequests:
		return goerr.Wrap(err, "GitHub refused the request, set --github-token to raise the rate limit")
	}
	return err
}

func printReleases(w io.Writer, releases []*model.Release) {
	tag := color.New(color.FgCyan, color.Bold)
	pre := color.New(color.FgYellow)
	dim := color.New(color.Faint)

	for _, r := range releases {
		_, _ = tag.Fprint(w, r.TagName)
		if r.Name != "" && r.Name != r.TagName {
			_, _ = fmt.Fprintf(w, "  %s", r.Name)
		}
		if r.Prerelease {
			_, _ = pre.Fprint(w, "  (prerelease)")
		}
		_, _ = dim.Fprintf(w, "  %s\n", r.PublishedAt.Format("2006-01-02"))

		for _, a := range r.Assets {
			_, _ = fmt.Fprintf(w, "    %s  %s\n", a.Name, humanBytes(a.Size))
		}
	}
	_, _ = dim.Fprintf(w, "%d releases\n", len(releases))
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
