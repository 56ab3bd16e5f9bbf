// Package registry implements the npm-compatible package registry: resolving
// semver ranges against registry metadata, and fetching package manifests
// and files from a chain of CDN providers with automatic fallback.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Fetcher abstracts HTTP retrieval so the registry works unmodified whether
// compiled natively or to WASM (where the browser Fetch API backs the same
// net/http surface).
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher implements Fetcher with net/http.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher using http.DefaultClient's transport.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{}}
}

// NewHTTPFetcherWithClient returns a fetcher using a caller-supplied client.
func NewHTTPFetcherWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{client: client}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Message: err.Error()}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Message: err.Error()}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Message: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Message: err.Error()}
	}
	return body, nil
}

// FetchError carries the HTTP status, when known, of a failed fetch.
type FetchError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d: %s", e.URL, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Message)
}

// IsNotFound reports whether the fetch failed with a 404.
func (e *FetchError) IsNotFound() bool {
	return e.StatusCode == 404
}
