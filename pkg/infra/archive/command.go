package archive

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/hangar/pkg/domain/types"
)

// CommandExtractor runs an external extraction tool
type CommandExtractor struct {
	name string
	bin  string
	args func(src, dst string) []string
}

// NewUnrar creates an extractor running `unrar x -o+ <src> <dst>/`. Empty bin means "unrar".
func NewUnrar(bin string) *CommandExtractor {
	if bin == "" {
		bin = "unrar"
	}
	return &CommandExtractor{
		name: "unrar",
		bin:  bin,
		args: func(src, dst string) []string {
			return []string{"x", "-o+", src, withTrailingSeparator(dst)}
		},
	}
}

// NewSevenZip creates an extractor running `7z x -aoa <src> -o<dst>`. Empty bin means "7z".
func NewSevenZip(bin string) *CommandExtractor {
	if bin == "" {
		bin = "7z"
	}
	return &CommandExtractor{
		name: "7z",
		bin:  bin,
		args: func(src, dst string) []string {
			return []string{"x", "-aoa", src, "-o" + dst}
		},
	}
}

// Name returns the strategy name
func (x *CommandExtractor) Name() string {
	return x.name
}

// Extract runs the tool and waits for it. A tool that cannot be started is tagged
// ErrTagToolUnavailable; a non-zero exit is a plain failure.
func (x *CommandExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	cmd := exec.CommandContext(ctx, x.bin, x.args(archivePath, destDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return goerr.Wrap(err, "failed to start extraction tool",
			goerr.T(types.ErrTagToolUnavailable),
			goerr.V("tool", x.name),
			goerr.V("bin", x.bin),
		)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return goerr.Wrap(err, "extraction tool failed",
				goerr.V("tool", x.name),
				goerr.V("exit_code", exitErr.ExitCode()),
				goerr.V("stderr", strings.TrimSpace(stderr.String())),
			)
		}
		return goerr.Wrap(err, "extraction tool failed", goerr.V("tool", x.name))
	}

	return nil
}

func withTrailingSeparator(dir string) string {
	if strings.HasSuffix(dir, string(filepath.Separator)) {
		return dir
	}
	return dir + string(filepath.Separator)
}
