// Package source fetches track bytes by locator from the local library, an
// HTTP origin or an S3-compatible bucket, mapping failures onto the shared
// error taxonomy.
package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"beatbrowser/pkg/models"

	"github.com/sirupsen/logrus"
)

// Fetcher returns the full bytes behind a locator
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

// Router picks a fetcher by locator scheme. Bare locators go to the HTTP
// origin when one is configured, otherwise to the local library.
type Router struct {
	files  *FileFetcher
	http   *HTTPFetcher
	r2     *R2Fetcher
	logger *logrus.Logger
}

// NewRouter combines fetchers; any of them may be nil
func NewRouter(files *FileFetcher, http *HTTPFetcher, r2 *R2Fetcher, logger *logrus.Logger) *Router {
	if logger == nil {
		logger = logrus.New()
	}
	return &Router{files: files, http: http, r2: r2, logger: logger}
}

// Fetch dispatches locator to the matching fetcher
func (r *Router) Fetch(ctx context.Context, locator string) ([]byte, error) {
	fetcher, err := r.route(locator)
	if err != nil {
		return nil, err
	}
	return fetcher.Fetch(ctx, locator)
}

func (r *Router) route(locator string) (Fetcher, error) {
	switch {
	case locator == "":
		return nil, fmt.Errorf("empty locator: %w", models.ErrSourceUnreachable)
	case strings.HasPrefix(locator, "r2://") || strings.HasPrefix(locator, "s3://"):
		if r.r2 == nil {
			return nil, fmt.Errorf("%s: no bucket configured: %w", locator, models.ErrSourceUnreachable)
		}
		return r.r2, nil
	case strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://"):
		if r.http == nil {
			return nil, fmt.Errorf("%s: remote sources disabled: %w", locator, models.ErrSourceUnreachable)
		}
		return r.http, nil
	case r.http != nil && r.http.baseURL != "":
		return r.http, nil
	case r.files != nil:
		return r.files, nil
	}
	return nil, fmt.Errorf("%s: no fetcher for locator: %w", locator, models.ErrSourceUnreachable)
}

// LocalPath resolves a locator to a file in the local library, for streaming.
// ok is false for remote locators.
func (r *Router) LocalPath(locator string) (string, bool) {
	fetcher, err := r.route(locator)
	if err != nil || fetcher != Fetcher(r.files) || r.files == nil {
		return "", false
	}
	path, err := r.files.Resolve(locator)
	if err != nil {
		return "", false
	}
	return path, true
}

// readLimited reads all of body, failing when it exceeds limit bytes
func readLimited(body io.Reader, limit int64, locator string) ([]byte, error) {
	if limit <= 0 {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%s: read: %v: %w", locator, err, models.ErrSourceUnreachable)
		}
		return data, nil
	}
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%s: read: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%s: larger than %d bytes: %w", locator, limit, models.ErrDecodeUnsupported)
	}
	return data, nil
}
