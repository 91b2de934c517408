package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/hangar/pkg/cli/config"
)

func TestCatalog_Load(t *testing.T) {
	t.Run("file and inline sources", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.toml")
		gt.NoError(t, os.WriteFile(path, []byte(`
[[source]]
category = "games"
owner = "acme"
repo = "games"

[[source]]
category = "tools"
owner = "acme"
repo = "tools"
`), 0o644))

		cfg := &config.Catalog{
			File:    path,
			Sources: []string{"tools=other/toolbox", "music=acme/music"},
		}
		sources, err := cfg.Load()
		gt.NoError(t, err)
		gt.A(t, sources).Length(3)

		gt.Equal(t, sources[0].Category, "games")
		gt.Equal(t, sources[1].Category, "tools")
		gt.Equal(t, sources[1].Owner, "other")
		gt.Equal(t, sources[1].Repo, "toolbox")
		gt.Equal(t, sources[2].Category, "music")
	})

	t.Run("malformed inline source", func(t *testing.T) {
		for _, s := range []string{"games", "games=acme", "games=acme/a/b", "=acme/games"} {
			cfg := &config.Catalog{Sources: []string{s}}
			_, err := cfg.Load()
			gt.Error(t, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := &config.Catalog{File: filepath.Join(t.TempDir(), "missing.toml")}
		_, err := cfg.Load()
		gt.Error(t, err)
	})

	t.Run("broken toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.toml")
		gt.NoError(t, os.WriteFile(path, []byte("[[source]\ncategory ="), 0o644))
		_, err := (&config.Catalog{File: path}).Load()
		gt.Error(t, err)
	})

	t.Run("no sources", func(t *testing.T) {
		sources, err := (&config.Catalog{}).Load()
		gt.NoError(t, err)
		gt.A(t, sources).Length(0)
	})
}
