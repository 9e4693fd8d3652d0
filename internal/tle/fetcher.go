package tle

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes bounds how much of a remote response is read.
const maxBodyBytes = 50 << 20

// Fetcher retrieves a raw TLE record from a remote source, e.g.
// https://celestrak.org/NORAD/elements/gp.php?CATNR=25544&FORMAT=tle
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL.
func NewFetcher(sourceURL string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Fetch performs an HTTP GET to retrieve raw TLE data.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching TLE data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("response from %s exceeds %d byte limit", f.sourceURL, maxBodyBytes)
	}

	f.logger.Info("fetched TLE data",
		"source_url", f.sourceURL,
		"bytes", len(body),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return body, nil
}

// FetchElementSet fetches and decodes the record at the source URL.
func (f *Fetcher) FetchElementSet(ctx context.Context, g Gravity) (*ElementSet, error) {
	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ReadElementSet(bytes.NewReader(data), g)
}
