package feedcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/stackseed/pkg/cache"
	"github.com/matzehuels/stackseed/pkg/observability"
)

// maxFeedSize bounds a single feed download.
const maxFeedSize = 16 << 20

// Fetcher downloads the raw bytes of a remote feed.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// HTTPFetcher fetches feeds over HTTP(S), retrying transient failures.
type HTTPFetcher struct {
	Client  *http.Client
	Backoff cache.Backoff
	// UserAgent is sent with every request when set.
	UserAgent string
}

// NewHTTPFetcher returns a fetcher with a 30 second request timeout and the
// default backoff.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:  &http.Client{Timeout: 30 * time.Second},
		Backoff: cache.DefaultBackoff,
	}
}

// Fetch downloads uri. A 404 yields an error wrapping [cache.ErrNotFound];
// transport failures and 5xx responses wrap [cache.ErrNetwork] and are
// retried.
func (f *HTTPFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	var body []byte
	err := f.Backoff.Retry(ctx, func() error {
		var err error
		body, err = f.get(ctx, uri)
		return err
	})
	return body, err
}

func (f *HTTPFetcher) get(ctx context.Context, uri string) ([]byte, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()

	resp, err := f.Client.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, cache.Retryable(fmt.Errorf("%w: %v", cache.ErrNetwork, err))
	}
	return data, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: status %d", cache.ErrNotFound, code)
	case code >= 500:
		return cache.Retryable(fmt.Errorf("%w: status %d", cache.ErrNetwork, code))
	default:
		return fmt.Errorf("%w: status %d", cache.ErrNetwork, code)
	}
}
