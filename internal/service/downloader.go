package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Fetcher downloads the raw bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherConfig holds configuration for the HTTP image fetcher.
type FetcherConfig struct {
	Timeout   time.Duration
	UserAgent string
	MaxBytes  int // response bodies larger than this fail without being buffered; 0 uses the default
}

// HTTPFetcher downloads images over HTTP(S), following redirects.
type HTTPFetcher struct {
	client *resty.Client
}

const (
	maxRedirects         = 10
	defaultDownloadLimit = 64 << 20
)

// NewHTTPFetcher creates an image fetcher.
// Parameters:
//   - cfg: timeout, user agent and body size cap.
//
// Returns:
//   - *HTTPFetcher: fetcher that reads at most cfg.MaxBytes per response.
func NewHTTPFetcher(cfg *FetcherConfig) *HTTPFetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := cfg.MaxBytes
	if limit <= 0 {
		limit = defaultDownloadLimit
	}

	client := resty.New().
		SetTimeout(timeout).
		SetResponseBodyLimit(limit).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects)).
		SetHeader("Accept", "image/*,*/*")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &HTTPFetcher{client: client}
}

// Fetch downloads url. Any non-200 final status is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}
