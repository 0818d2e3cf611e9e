package feedcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/stackseed/pkg/cache"
	"github.com/matzehuels/stackseed/pkg/errors"
)

const libFeed = `<interface xmlns="http://zero-install.sourceforge.net/2004/injector/interface">
  <name>lib</name>
  <implementation id="a" version="1.0"/>
</interface>`

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newServer(t *testing.T, status *atomic.Int32, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if code := int(status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		w.Write([]byte(libFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newCache(t *testing.T, store cache.Cache, clk *clock) *Cache {
	t.Helper()
	fetcher := NewHTTPFetcher()
	fetcher.Backoff = cache.Backoff{Attempts: 2, Delay: time.Millisecond}
	return New(Options{Store: store, Fetcher: fetcher, Now: clk.now})
}

func TestGetFeedOfflineNotCached(t *testing.T) {
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newServer(t, &status, &hits)
	c := newCache(t, nil, &clock{t: time.Now()})

	_, err := c.GetFeed(context.Background(), srv.URL+"/lib.xml", false)
	if !errors.Is(err, errors.ErrCodeFeedNotCached) {
		t.Errorf("err = %v, want FEED_NOT_CACHED", err)
	}
	if hits.Load() != 0 {
		t.Error("offline lookup must not touch the network")
	}
}

func TestGetFeedRefreshAndPersist(t *testing.T) {
	ctx := context.Background()
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newServer(t, &status, &hits)
	uri := srv.URL + "/lib.xml"

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	clk := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := newCache(t, store, clk)

	f, err := c.GetFeed(ctx, uri, true)
	if err != nil {
		t.Fatalf("GetFeed(force): %v", err)
	}
	if f.Name != "lib" {
		t.Errorf("Name = %q", f.Name)
	}

	again, err := c.GetFeed(ctx, uri, false)
	if err != nil || again != f {
		t.Errorf("offline lookup after refresh should return the same object (err %v)", err)
	}
	if forced, _ := c.GetFeed(ctx, uri, true); forced != f {
		t.Error("second forced lookup in the same process should not refetch")
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}

	// A fresh process sees the persisted copy.
	next := newCache(t, store, clk)
	stored, err := next.GetFeed(ctx, uri, false)
	if err != nil {
		t.Fatalf("GetFeed from store: %v", err)
	}
	if stored == f || stored.Name != "lib" {
		t.Error("stored feed should be a new object with the same content")
	}
	if checked, ok := next.LastChecked(ctx, uri); !ok || !checked.Equal(clk.t) {
		t.Errorf("LastChecked = %v, %v", checked, ok)
	}
}

func TestIsStale(t *testing.T) {
	ctx := context.Background()
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newServer(t, &status, &hits)
	uri := srv.URL + "/lib.xml"

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := &clock{t: start}
	c := newCache(t, store, clk)

	if !c.IsStale(ctx, uri, DefaultFreshness) {
		t.Error("never downloaded feed should be stale")
	}
	if _, err := c.GetFeed(ctx, uri, true); err != nil {
		t.Fatal(err)
	}
	if c.IsStale(ctx, uri, time.Second) {
		t.Error("feed refreshed in this process should not be stale")
	}

	tests := []struct {
		name      string
		elapsed   time.Duration
		freshness time.Duration
		want      bool
	}{
		{"within freshness", 24 * time.Hour, DefaultFreshness, false},
		{"past freshness", 8 * 24 * time.Hour, DefaultFreshness, true},
		{"tiny freshness inside check interval", 30 * time.Minute, time.Second, false},
		{"tiny freshness after check interval", 2 * time.Hour, time.Second, true},
		{"disabled", 365 * 24 * time.Hour, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			later := newCache(t, store, &clock{t: start.Add(tt.elapsed)})
			if got := later.IsStale(ctx, uri, tt.freshness); got != tt.want {
				t.Errorf("IsStale = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefreshFailures(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		status   int
		wantCode errors.Code
		wantHits int32
	}{
		{"not found", http.StatusNotFound, errors.ErrCodeFeedNotFound, 1},
		{"server error retried", http.StatusBadGateway, errors.ErrCodeNetwork, 2},
		{"forbidden", http.StatusForbidden, errors.ErrCodeNetwork, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var status, hits atomic.Int32
			status.Store(int32(tt.status))
			srv := newServer(t, &status, &hits)
			c := newCache(t, nil, &clock{t: time.Now()})

			_, err := c.GetFeed(ctx, srv.URL+"/lib.xml", true)
			if !errors.Is(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
			if hits.Load() != tt.wantHits {
				t.Errorf("hits = %d, want %d", hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestRefreshFailureFallsBackToCachedCopy(t *testing.T) {
	ctx := context.Background()
	var status, hits atomic.Int32
	status.Store(http.StatusOK)
	srv := newServer(t, &status, &hits)
	uri := srv.URL + "/lib.xml"

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if _, err := newCache(t, store, &clock{t: start}).GetFeed(ctx, uri, true); err != nil {
		t.Fatal(err)
	}

	status.Store(http.StatusServiceUnavailable)
	later := &clock{t: start.Add(10 * 24 * time.Hour)}
	c := newCache(t, store, later)
	f, err := c.GetFeed(ctx, uri, true)
	if err != nil {
		t.Fatalf("refresh with cached copy: %v", err)
	}
	if f.Name != "lib" {
		t.Errorf("Name = %q", f.Name)
	}

	// The failed attempt suppresses further checks for a while.
	if newCache(t, store, later).IsStale(ctx, uri, DefaultFreshness) {
		t.Error("feed with a recent failed attempt should not be stale")
	}
}

func TestLocalFeed(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lib.xml")
	if err := os.WriteFile(path, []byte(libFeed), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newCache(t, nil, &clock{t: time.Now()})

	f, err := c.GetFeed(ctx, path, false)
	if err != nil {
		t.Fatalf("GetFeed(local): %v", err)
	}
	if again, _ := c.GetFeed(ctx, path, true); again != f {
		t.Error("local feed should keep its identity even when forced")
	}
	if c.IsStale(ctx, path, time.Nanosecond) {
		t.Error("local feeds are never stale")
	}

	if _, err := c.GetFeed(ctx, path+".missing", false); !errors.Is(err, errors.ErrCodeFeedNotFound) {
		t.Errorf("missing local feed: err = %v", err)
	}
}

func TestDistributionFeed(t *testing.T) {
	c := newCache(t, nil, &clock{t: time.Now()})
	uri := "distribution:http://example.org/lib.xml"
	if c.IsStale(context.Background(), uri, time.Nanosecond) {
		t.Error("distribution feeds are never stale")
	}
	if _, err := c.GetFeed(context.Background(), uri, false); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("err = %v, want UNSUPPORTED", err)
	}
}
