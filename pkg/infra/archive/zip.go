package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ZipExtractor decompresses zip archives in-process
type ZipExtractor struct{}

// NewZipExtractor creates a builtin zip extractor
func NewZipExtractor() *ZipExtractor {
	return &ZipExtractor{}
}

// Name returns the strategy name
func (x *ZipExtractor) Name() string {
	return "zip"
}

// Extract decompresses every entry of archivePath into destDir
func (x *ZipExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return goerr.Wrap(err, "failed to open zip archive", goerr.V("path", archivePath))
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return goerr.Wrap(err, "zip extraction cancelled")
		}
		if err := extractFile(file, destDir); err != nil {
			return err
		}
	}

	return nil
}

// extractFile extracts a single entry, rejecting names that escape destDir
func extractFile(file *zip.File, destDir string) error {
	root := filepath.Clean(destDir)
	destPath := filepath.Join(destDir, file.Name)
	if destPath == root && file.FileInfo().IsDir() {
		// "./" entries name destDir itself
		return nil
	}
	if !strings.HasPrefix(destPath, root+string(os.PathSeparator)) {
		return goerr.New("invalid file path in archive", goerr.V("name", file.Name), goerr.V("dest", destDir))
	}

	if file.FileInfo().IsDir() {
		if err := os.MkdirAll(destPath, 0o755); err != nil {
			return goerr.Wrap(err, "failed to create directory", goerr.V("path", destPath))
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return goerr.Wrap(err, "failed to create parent directories", goerr.V("path", destPath))
	}

	rc, err := file.Open()
	if err != nil {
		return goerr.Wrap(err, "failed to open file in zip", goerr.V("name", file.Name))
	}
	defer rc.Close()

	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return goerr.Wrap(err, "failed to create destination file", goerr.V("path", destPath))
	}

	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return goerr.Wrap(err, "failed to write file content", goerr.V("path", destPath))
	}

	if err := out.Close(); err != nil {
		return goerr.Wrap(err, "failed to close destination file", goerr.V("path", destPath))
	}
	return nil
}
