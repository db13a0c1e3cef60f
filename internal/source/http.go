package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"beatbrowser/pkg/models"
)

// HTTPFetcher downloads locators from an origin. A 401/403 is how a CDN
// refuses sample access, so it maps to ErrCrossOriginBlocked.
type HTTPFetcher struct {
	client   *http.Client
	baseURL  string
	maxBytes int64
}

// NewHTTPFetcher resolves bare locators against baseURL (may be empty)
func NewHTTPFetcher(baseURL string, timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		client:   &http.Client{Timeout: timeout},
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxBytes: maxBytes,
	}
}

// URL returns the absolute address of locator
func (f *HTTPFetcher) URL(locator string) (string, error) {
	if strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://") {
		return locator, nil
	}
	if f.baseURL == "" {
		return "", fmt.Errorf("%s: relative locator without base url: %w", locator, models.ErrSourceUnreachable)
	}
	base, err := url.Parse(f.baseURL + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base url: %v: %w", err, models.ErrSourceUnreachable)
	}
	ref, err := url.Parse(strings.TrimLeft(locator, "/"))
	if err != nil {
		return "", fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	return base.ResolveReference(ref).String(), nil
}

// Fetch downloads the full body
func (f *HTTPFetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	target, err := f.URL(locator)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", locator, err, models.ErrSourceUnreachable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s: %s: %w", locator, resp.Status, models.ErrCrossOriginBlocked)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: %s: %w", locator, resp.Status, models.ErrSourceUnreachable)
	}

	return readLimited(resp.Body, f.maxBytes, locator)
}
