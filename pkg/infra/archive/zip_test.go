package archive_test

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/hangar/pkg/infra/archive"
)

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	gt.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		gt.NoError(t, err)
		_, err = fw.Write([]byte(content))
		gt.NoError(t, err)
	}
	gt.NoError(t, w.Close())
}

func TestZipExtractor_Extract(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "pack.zip")
	writeZip(t, src, map[string]string{
		"pack/README.md":     "# pack",
		"pack/bin/launcher":  "binary",
		"pack/data/level.db": "levels",
	})

	dst := filepath.Join(dir, "out")
	gt.NoError(t, os.MkdirAll(dst, 0o755))

	x := archive.NewZipExtractor()
	gt.Equal(t, x.Name(), "zip")
	gt.NoError(t, x.Extract(ctx, src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "pack", "bin", "launcher"))
	gt.NoError(t, err)
	gt.Equal(t, string(content), "binary")
}

func TestZipExtractor_CurrentDirEntry(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "dotted.zip")

	f, err := os.Create(src)
	gt.NoError(t, err)
	w := zip.NewWriter(f)
	_, err = w.CreateHeader(&zip.FileHeader{Name: "./"})
	gt.NoError(t, err)
	fw, err := w.Create("./game.exe")
	gt.NoError(t, err)
	_, err = fw.Write([]byte("MZ"))
	gt.NoError(t, err)
	gt.NoError(t, w.Close())
	gt.NoError(t, f.Close())

	dst := filepath.Join(dir, "out")
	gt.NoError(t, os.MkdirAll(dst, 0o755))
	gt.NoError(t, archive.NewZipExtractor().Extract(ctx, src, dst))

	content, err := os.ReadFile(filepath.Join(dst, "game.exe"))
	gt.NoError(t, err)
	gt.Equal(t, string(content), "MZ")
}

func TestZipExtractor_PathTraversal(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.zip")
	writeZip(t, src, map[string]string{
		"../escape.txt": "nope",
	})

	dst := filepath.Join(dir, "out")
	gt.NoError(t, os.MkdirAll(dst, 0o755))

	err := archive.NewZipExtractor().Extract(ctx, src, dst)
	gt.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "escape.txt"))
	gt.True(t, os.IsNotExist(statErr))
}

func TestZipExtractor_Corrupt(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.zip")
	gt.NoError(t, os.WriteFile(src, []byte("this is not a zip"), 0o644))

	err := archive.NewZipExtractor().Extract(ctx, src, dir)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("failed to open zip archive")
}
