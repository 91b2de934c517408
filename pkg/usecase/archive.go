package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/interfaces"
	"github.com/m-mizutani/hangar/pkg/domain/model"
	"github.com/m-mizutani/hangar/pkg/domain/types"
	"github.com/m-mizutani/hangar/pkg/infra/archive"
)

type archiveUseCase struct {
	zip          interfaces.Extractor
	unrar        interfaces.Extractor
	sevenZip     interfaces.Extractor
	copyFallback bool
}

// ArchiveOption configures the archive use case
type ArchiveOption func(*archiveUseCase)

// WithZipExtractor replaces the builtin zip extractor
func WithZipExtractor(x interfaces.Extractor) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.zip = x
	}
}

// WithUnrarExtractor replaces the unrar strategy
func WithUnrarExtractor(x interfaces.Extractor) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.unrar = x
	}
}

// WithSevenZipExtractor replaces the 7z strategy
func WithSevenZipExtractor(x interfaces.Extractor) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.sevenZip = x
	}
}

// WithCopyFallback enables or disables copying rar/7z archives as-is when no tool can extract them
func WithCopyFallback(enabled bool) ArchiveOption {
	return func(uc *archiveUseCase) {
		uc.copyFallback = enabled
	}
}

// NewArchive creates a new instance of ArchiveUseCase
func NewArchive(opts ...ArchiveOption) interfaces.ArchiveUseCase {
	uc := &archiveUseCase{
		zip:          archive.NewZipExtractor(),
		unrar:        archive.NewUnrar(""),
		sevenZip:     archive.NewSevenZip(""),
		copyFallback: true,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// strategies returns the extractors to try, in order, for kind
func (uc *archiveUseCase) strategies(kind model.ArchiveKind) []interfaces.Extractor {
	switch kind {
	case model.ArchiveZip:
		return []interfaces.Extractor{uc.zip}
	case model.ArchiveRar:
		return []interfaces.Extractor{uc.unrar, uc.sevenZip}
	case model.ArchiveSevenZip:
		return []interfaces.Extractor{uc.sevenZip}
	default:
		return nil
	}
}

// Extract decompresses archivePath into destDir
func (uc *archiveUseCase) Extract(ctx context.Context, archivePath, destDir string) (*model.ExtractionResult, error) {
	logger := ctxlog.From(ctx)

	info, err := os.Stat(archivePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, goerr.Wrap(err, "archive not found", goerr.T(types.ErrTagNotFound), goerr.V("path", archivePath))
		}
		return nil, goerr.Wrap(err, "failed to stat archive", goerr.V("path", archivePath))
	}
	if info.IsDir() {
		return nil, goerr.New("archive path is a directory", goerr.T(types.ErrTagNotAFile), goerr.V("path", archivePath))
	}

	kind := model.DetectArchiveKind(archivePath)
	result := &model.ExtractionResult{
		Kind:        kind.String(),
		Source:      archivePath,
		Destination: destDir,
	}

	if kind == model.ArchiveUnsupported {
		logger.Debug("Not an archive, leaving file as-is", "path", archivePath)
		result.Outcome = model.OutcomeNotExtracted
		return result, nil
	}

	created, err := ensureDir(destDir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create destination", goerr.T(types.ErrTagExtractionFailed), goerr.V("dest", destDir))
	}

	logger.Info("Extracting archive",
		"path", archivePath,
		"kind", kind.String(),
		"dest", destDir,
	)

	var lastErr error
	fallback := kind != model.ArchiveZip && uc.copyFallback
	for _, x := range uc.strategies(kind) {
		if err := x.Extract(ctx, archivePath, destDir); err != nil {
			if goerr.HasTag(err, types.ErrTagToolUnavailable) {
				logger.Info("Extraction tool unavailable, trying next", "tool", x.Name(), "error", err)
			} else {
				logger.Warn("Extraction strategy failed", "tool", x.Name(), "error", err)
			}
			lastErr = err
			continue
		}

		if err := Flatten(destDir); err != nil {
			lastErr = goerr.Wrap(err, "failed to flatten destination", goerr.V("dest", destDir))
			fallback = false
			break
		}

		result.Outcome = model.OutcomeExtracted
		result.Tool = x.Name()
		uc.removeSource(ctx, archivePath)

		logger.Info("Extracted archive", "path", archivePath, "dest", destDir, "tool", x.Name())
		return result, nil
	}

	if fallback {
		copied := filepath.Join(destDir, filepath.Base(archivePath))
		err := copyFile(archivePath, copied)
		if err == nil {
			logger.Warn("No tool could extract archive, copied it unmodified",
				"path", archivePath,
				"copy", copied,
				"error", lastErr,
			)
			result.Outcome = model.OutcomeDegraded
			result.Tool = "copy"
			uc.removeSource(ctx, archivePath)
			return result, nil
		}
		lastErr = goerr.Wrap(err, "fallback copy failed", goerr.V("cause", lastErr))
	}

	if created {
		_ = os.RemoveAll(destDir) // best effort
	}

	return nil, goerr.Wrap(lastErr, "failed to extract archive",
		goerr.T(types.ErrTagExtractionFailed),
		goerr.V("path", archivePath),
		goerr.V("kind", kind.String()),
	)
}

func (uc *archiveUseCase) removeSource(ctx context.Context, path string) {
	if err := os.Remove(path); err != nil {
		ctxlog.From(ctx).Warn("Failed to remove archive after extraction", "path", path, "error", err)
	}
}

// Flatten collapses a single top-level wrapper directory of dir into dir itself. It does
// nothing unless dir has exactly one child and that child is a directory.
func Flatten(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	// Move the wrapper aside so an inner entry with the same name can take its place.
	wrapper := filepath.Join(dir, ".flatten-"+uuid.NewString())
	if err := os.Rename(filepath.Join(dir, entries[0].Name()), wrapper); err != nil {
		return err
	}

	children, err := os.ReadDir(wrapper)
	if err != nil {
		return err
	}

	for _, child := range children {
		target := filepath.Join(dir, child.Name())
		if err := os.RemoveAll(target); err != nil {
			return err
		}
		if err := os.Rename(filepath.Join(wrapper, child.Name()), target); err != nil {
			return err
		}
	}

	if err := os.Remove(wrapper); err != nil {
		return err
	}
	return nil
}

// ensureDir creates dir if needed and reports whether it did
func ensureDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, err
	}
	return true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
