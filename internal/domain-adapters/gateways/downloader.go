package gateways

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Downloader fetches package tarballs over HTTP
type Downloader struct {
	httpClient *http.Client
	userAgent  string
}

// NewDownloader creates a new downloader
func NewDownloader() *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // Long timeout for large tarballs
		},
		userAgent: "frontpack/1.0",
	}
}

// NewDownloaderWithClient creates a downloader using the given HTTP client
func NewDownloaderWithClient(client *http.Client) *Downloader {
	d := NewDownloader()
	d.httpClient = client
	return d
}

// Fetch streams the body behind url into w and returns the number of bytes written
func (d *Downloader) Fetch(ctx context.Context, url string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("HTTP request failed: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("GET %s: HTTP %d: %s", url, resp.StatusCode, resp.Status)
	}

	written, err := io.Copy(w, resp.Body)
	if err != nil {
		return written, fmt.Errorf("failed to read %s: %w", url, err)
	}
	return written, nil
}
