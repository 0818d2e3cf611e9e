// Package augment decorates a feed source so that every implementation that
// declares an architecture gains a locally buildable placeholder twin.
//
// The solver is told placeholders are always available. Because their
// architecture ranks below every real machine, a real binary still wins when
// one is present; otherwise the placeholder lets the solver select a
// component that will be built from its checked-out sources.
package augment

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/feed"
)

// Source loads feeds. It is satisfied by *feedcache.Cache.
type Source interface {
	GetFeed(ctx context.Context, uri string, force bool) (*feed.Feed, error)
	IsStale(ctx context.Context, uri string, freshness time.Duration) bool
}

// Augmenter wraps a Source and augments each distinct feed object exactly
// once. It is safe for concurrent use.
type Augmenter struct {
	Source
	logger *log.Logger

	mu   sync.Mutex
	done map[*feed.Feed]struct{}
}

// New wraps src. A nil logger discards.
func New(src Source, logger *log.Logger) *Augmenter {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Augmenter{Source: src, logger: logger, done: make(map[*feed.Feed]struct{})}
}

// GetFeed loads uri from the underlying source and augments it on first
// sight. When the source fails, the feed is nil and the error is returned
// unchanged.
func (a *Augmenter) GetFeed(ctx context.Context, uri string, force bool) (*feed.Feed, error) {
	f, err := a.Source.GetFeed(ctx, uri, force)
	if err != nil || f == nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.done[f]; ok {
		return f, nil
	}
	a.done[f] = struct{}{}

	if n := Augment(f); n > 0 {
		a.logger.Debug("added placeholders", "feed", uri, "count", n)
	}
	return f, nil
}

// Augment adds a placeholder for every implementation of f that declares an
// architecture, unless one with the derived id already exists. It returns
// the number of placeholders added. Augment is not idempotent on its own;
// use [Augmenter] to apply it once per feed.
func Augment(f *feed.Feed) int {
	var added int
	// Sorted snapshot: placeholders must not derive further placeholders.
	for _, impl := range f.Sorted() {
		if impl.Arch == "" || impl.IsPlaceholder() {
			continue
		}
		id := feed.PlaceholderID(impl.ID)
		if _, exists := f.Implementations[id]; exists {
			continue
		}
		f.Add(feed.NewPlaceholder(impl))
		added++
	}
	return added
}
