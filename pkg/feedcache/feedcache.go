// Package feedcache loads feeds and tracks when they were last checked.
//
// Remote feeds are downloaded only when the caller forces a refresh; a
// normal lookup is served from the persistent [cache.Cache] and fails with
// FEED_NOT_CACHED when the feed has never been downloaded. Local feed files
// are read from disk and are never stale.
//
// Within one process the cache hands out the same *feed.Feed for a URI
// until the feed is refreshed, and refreshes each URI at most once.
package feedcache

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/cache"
	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feed"
	"github.com/matzehuels/stackseed/pkg/observability"
)

// DefaultFreshness is how long a downloaded feed is trusted.
const DefaultFreshness = 7 * 24 * time.Hour

// MinCheckInterval is the minimum time between two download attempts of the
// same feed. A feed whose last attempt is more recent is never stale, even
// when that attempt failed.
const MinCheckInterval = time.Hour

// record is the persisted form of a downloaded feed.
type record struct {
	Data        []byte    `json:"data,omitempty"`
	Checked     time.Time `json:"checked,omitzero"`
	LastAttempt time.Time `json:"last_attempt"`
}

// Options configures a Cache.
type Options struct {
	// Store persists downloaded feeds. Nil keeps nothing between runs.
	Store cache.Cache
	// Fetcher downloads remote feeds. Nil uses [NewHTTPFetcher].
	Fetcher Fetcher
	Logger  *log.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Cache loads feeds by URI.
type Cache struct {
	store   cache.Cache
	fetcher Fetcher
	logger  *log.Logger
	now     func() time.Time

	mu        sync.Mutex
	feeds     map[string]*feed.Feed
	refreshed map[string]bool
}

// New creates a feed cache.
func New(opts Options) *Cache {
	if opts.Store == nil {
		opts.Store = cache.NewNullCache()
	}
	if opts.Fetcher == nil {
		opts.Fetcher = NewHTTPFetcher()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Cache{
		store:     cache.NewScopedCache(opts.Store, "feed:"),
		fetcher:   opts.Fetcher,
		logger:    opts.Logger,
		now:       opts.Now,
		feeds:     make(map[string]*feed.Feed),
		refreshed: make(map[string]bool),
	}
}

// IsLocal reports whether uri names a feed file on disk.
func IsLocal(uri string) bool {
	return !strings.Contains(uri, "://") && !feed.IsDistribution(uri)
}

// GetFeed returns the feed for uri. With force set, remote feeds are
// downloaded (once per process); otherwise only the persistent store is
// consulted.
func (c *Cache) GetFeed(ctx context.Context, uri string, force bool) (*feed.Feed, error) {
	if feed.IsDistribution(uri) {
		return nil, errors.New(errors.ErrCodeUnsupported, "distribution feed %s", uri)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.feeds[uri]; ok && (!force || c.refreshed[uri] || IsLocal(uri)) {
		return f, nil
	}

	var (
		f   *feed.Feed
		err error
	)
	switch {
	case IsLocal(uri):
		f, err = c.loadLocal(uri)
	case force:
		f, err = c.refresh(ctx, uri)
	default:
		f, err = c.loadStored(ctx, uri)
	}
	if err != nil {
		return nil, err
	}
	c.feeds[uri] = f
	return f, nil
}

// IsStale reports whether uri should be downloaded again. Local and
// distribution feeds are never stale. A freshness of zero or less disables
// staleness checks.
func (c *Cache) IsStale(ctx context.Context, uri string, freshness time.Duration) bool {
	if IsLocal(uri) || feed.IsDistribution(uri) {
		return false
	}
	c.mu.Lock()
	refreshed := c.refreshed[uri]
	c.mu.Unlock()
	if refreshed {
		return false
	}

	rec, ok := c.record(ctx, uri)
	if !ok || rec.Checked.IsZero() {
		return true
	}
	now := c.now()
	if now.Sub(rec.LastAttempt) < MinCheckInterval {
		return false
	}
	if freshness <= 0 {
		return false
	}
	return now.Sub(rec.Checked) > freshness
}

// LastChecked returns when uri was last downloaded successfully.
func (c *Cache) LastChecked(ctx context.Context, uri string) (time.Time, bool) {
	rec, ok := c.record(ctx, uri)
	if !ok || rec.Checked.IsZero() {
		return time.Time{}, false
	}
	return rec.Checked, true
}

func (c *Cache) loadLocal(path string) (*feed.Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFeedNotFound, err, "read feed %s", path)
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidFeed, err, "read feed %s", path)
	}
	return feed.Parse(path, bytes.NewReader(data))
}

func (c *Cache) loadStored(ctx context.Context, uri string) (*feed.Feed, error) {
	rec, ok := c.record(ctx, uri)
	if !ok || len(rec.Data) == 0 {
		return nil, errors.New(errors.ErrCodeFeedNotCached, "feed %s is not cached", uri)
	}
	return feed.Parse(uri, bytes.NewReader(rec.Data))
}

func (c *Cache) refresh(ctx context.Context, uri string) (*feed.Feed, error) {
	c.logger.Info("Downloading feed", "uri", uri)
	rec, _ := c.record(ctx, uri)
	rec.LastAttempt = c.now()

	data, fetchErr := c.fetcher.Fetch(ctx, uri)
	if fetchErr == nil {
		f, err := feed.Parse(uri, bytes.NewReader(data))
		if err != nil {
			fetchErr = err
		} else {
			rec.Data = data
			rec.Checked = rec.LastAttempt
			c.save(ctx, uri, rec)
			c.refreshed[uri] = true
			return f, nil
		}
	}

	c.save(ctx, uri, rec)
	if len(rec.Data) > 0 {
		c.logger.Warn("Feed refresh failed, using cached copy", "uri", uri, "err", fetchErr)
		c.refreshed[uri] = true
		return feed.Parse(uri, bytes.NewReader(rec.Data))
	}
	switch {
	case errors.GetCode(fetchErr) != "":
		return nil, fetchErr
	case stderrors.Is(fetchErr, cache.ErrNotFound):
		return nil, errors.Wrap(errors.ErrCodeFeedNotFound, fetchErr, "download feed %s", uri)
	}
	return nil, errors.Wrap(errors.ErrCodeNetwork, fetchErr, "download feed %s", uri)
}

func (c *Cache) record(ctx context.Context, uri string) (record, bool) {
	raw, hit, err := c.store.Get(ctx, uri)
	if err != nil {
		c.logger.Warn("Feed cache read failed", "uri", uri, "err", err)
		return record{}, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, "feed")
		return record{}, false
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, false
	}
	observability.Cache().OnCacheHit(ctx, "feed")
	return rec, true
}

func (c *Cache) save(ctx context.Context, uri string, rec record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, uri, raw, 0); err != nil {
		c.logger.Warn("Feed cache write failed", "uri", uri, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, "feed", len(raw))
}
