package config

import (
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// Catalog holds the category to repository mapping
type Catalog struct {
	File    string
	Sources []string
}

// catalogFile is the TOML layout of the catalog file
//
//	[[source]]
//	category = "games"
//	owner = "acme"
//	repo = "games"
type catalogFile struct {
	Source []model.CatalogSource `toml:"source"`
}

// Flags returns CLI flags for catalog configuration
func (c *Catalog) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog-file",
			Usage:       "TOML file listing catalog sources",
			Destination: &c.File,
			Sources:     cli.EnvVars("HANGAR_CATALOG_FILE"),
		},
		&cli.StringSliceFlag{
			Name:        "catalog-source",
			Usage:       "Catalog source as category=owner/repo (repeatable)",
			Destination: &c.Sources,
			Sources:     cli.EnvVars("HANGAR_CATALOG_SOURCES"),
		},
	}
}

// Load reads the catalog file and the inline sources. Inline sources override the file per category.
func (c *Catalog) Load() ([]model.CatalogSource, error) {
	var sources []model.CatalogSource

	if c.File != "" {
		raw, err := os.ReadFile(c.File)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", c.File))
		}
		var file catalogFile
		if err := toml.Unmarshal(raw, &file); err != nil {
			return nil, goerr.Wrap(err, "failed to parse catalog file", goerr.V("path", c.File))
		}
		sources = append(sources, file.Source...)
	}

	for _, s := range c.Sources {
		src, err := parseCatalogSource(s)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	index := make(map[string]int, len(sources))
	var result []model.CatalogSource
	for _, src := range sources {
		if src.Category == "" || src.Owner == "" || src.Repo == "" {
			return nil, goerr.New("catalog source requires category, owner and repo",
				goerr.V("category", src.Category),
				goerr.V("owner", src.Owner),
				goerr.V("repo", src.Repo),
			)
		}
		if i, ok := index[src.Category]; ok {
			result[i] = src
			continue
		}
		index[src.Category] = len(result)
		result = append(result, src)
	}

	return result, nil
}

func parseCatalogSource(s string) (model.CatalogSource, error) {
	category, repoPath, ok := strings.Cut(s, "=")
	if !ok {
		return model.CatalogSource{}, goerr.New("catalog source must be category=owner/repo", goerr.V("source", s))
	}
	owner, repo, ok := strings.Cut(repoPath, "/")
	if !ok || strings.Contains(repo, "/") {
		return model.CatalogSource{}, goerr.New("catalog source must be category=owner/repo", goerr.V("source", s))
	}
	return model.CatalogSource{
		Category: strings.TrimSpace(category),
		Owner:    strings.TrimSpace(owner),
		Repo:     strings.TrimSpace(repo),
	}, nil
}
