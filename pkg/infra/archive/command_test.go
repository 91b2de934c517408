package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/infra/archive"
)

// writeScript creates an executable shell script standing in for an extraction tool
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script tools are not available on windows")
	}
	path := filepath.Join(dir, name)
	gt.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestCommandExtractor_ToolUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	x := archive.NewUnrar(filepath.Join(dir, "no-such-unrar"))
	err := x.Extract(ctx, filepath.Join(dir, "a.rar"), dir)
	gt.Error(t, err)
	gt.True(t, goerr.HasTag(err, types.ErrTagToolUnavailable))
}

func TestCommandExtractor_NonZeroExit(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	bin := writeScript(t, dir, "fake7z", "echo broken >&2; exit 2")

	x := archive.NewSevenZip(bin)
	gt.Equal(t, x.Name(), "7z")
	err := x.Extract(ctx, filepath.Join(dir, "a.7z"), dir)
	gt.Error(t, err)
	gt.False(t, goerr.HasTag(err, types.ErrTagToolUnavailable))
}

func TestCommandExtractor_Arguments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	record := filepath.Join(dir, "args.txt")

	t.Run("unrar", func(t *testing.T) {
		bin := writeScript(t, dir, "fakeunrar", `echo "$@" > `+record)
		gt.NoError(t, archive.NewUnrar(bin).Extract(ctx, "/src/a.rar", "/dst"))

		got, err := os.ReadFile(record)
		gt.NoError(t, err)
		gt.Equal(t, string(got), "x -o+ /src/a.rar /dst/\n")
	})

	t.Run("7z", func(t *testing.T) {
		bin := writeScript(t, dir, "fake7z", `echo "$@" > `+record)
		gt.NoError(t, archive.NewSevenZip(bin).Extract(ctx, "/src/a.7z", "/dst"))

		got, err := os.ReadFile(record)
		gt.NoError(t, err)
		gt.Equal(t, string(got), "x -aoa /src/a.7z -o/dst\n")
	})
}
