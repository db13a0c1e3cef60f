package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"beatbrowser/pkg/models"
)

// FileFetcher reads locators as paths relative to a library directory
type FileFetcher struct {
	baseDir  string
	maxBytes int64
}

// NewFileFetcher serves files under baseDir. maxBytes <= 0 means unlimited.
func NewFileFetcher(baseDir string, maxBytes int64) *FileFetcher {
	return &FileFetcher{baseDir: baseDir, maxBytes: maxBytes}
}

// Resolve maps locator to a path inside the library, rejecting traversal
func (f *FileFetcher) Resolve(locator string) (string, error) {
	clean := filepath.Clean("/" + strings.TrimPrefix(locator, "file://"))
	base, err := filepath.Abs(f.baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve library dir: %w", err)
	}
	path := filepath.Join(base, clean)
	if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: outside library: %w", locator, models.ErrSourceUnreachable)
	}
	return path, nil
}

// Fetch reads the whole file
func (f *FileFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	path, err := f.Resolve(locator)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%s: not found: %w", locator, models.ErrSourceUnreachable)
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%s: permission denied: %w", locator, models.ErrCrossOriginBlocked)
		}
		return nil, fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	defer file.Close()

	return readLimited(file, f.maxBytes, locator)
}
