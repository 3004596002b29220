package imaging

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"caseflow/internal/services"
)

// Fetcher retrieves source image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// maxSourceImageBytes caps downloads; scraped pages occasionally link to
// full-resolution originals.
const maxSourceImageBytes = 32 << 20

// HTTPFetcher downloads source images over HTTP.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher builds a fetcher with a sensible timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch downloads one image. A 404 or 410 from the source is a permanent
// not-found; other failures are transient.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", "invalid source url "+url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imaging", "fetch", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil, services.Wrap(services.ErrNotFound, "imaging", "fetch", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, services.Wrap(services.ErrTransient, "imaging", "fetch", fmt.Sprintf("%s returned %d", url, resp.StatusCode), nil)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceImageBytes+1))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "imaging", "fetch", "reading "+url, err)
	}
	if len(data) > maxSourceImageBytes {
		return nil, services.Wrap(services.ErrValidation, "imaging", "fetch", url+" exceeds size limit", nil)
	}
	return data, nil
}
