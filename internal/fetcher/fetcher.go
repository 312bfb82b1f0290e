// Package fetcher downloads boundary assets and score payloads over HTTP with
// per-host rate limiting and retry on transient failures.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Fetch GETs the URL and returns the full response body.
	Fetch(ctx context.Context, url string, header http.Header) ([]byte, error)

	// DownloadToFile GETs the URL into path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// StatusError is returned for a non-2xx response that was not retried.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}
