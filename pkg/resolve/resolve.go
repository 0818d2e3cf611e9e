// Package resolve solves every requested feed and merges the results into
// one selection set.
//
// Feeds are processed in the order they were requested. Unless a refresh is
// forced, each requirement is first solved against cached feeds only; the
// network is used only when that solve consulted a stale (or uncached) feed.
package resolve

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feed"
	"github.com/matzehuels/stackseed/pkg/feedcache"
	"github.com/matzehuels/stackseed/pkg/observability"
	"github.com/matzehuels/stackseed/pkg/selection"
	"github.com/matzehuels/stackseed/pkg/solver"
)

// Solver solves one requirement.
type Solver interface {
	Solve(ctx context.Context, req solver.Requirement, refresh bool) (*solver.Result, error)
}

// StalenessChecker reports whether a cached feed should be downloaded again.
type StalenessChecker interface {
	IsStale(ctx context.Context, uri string, freshness time.Duration) bool
}

// Options configures a Resolver.
type Options struct {
	// Freshness is how long cached feeds are trusted. Zero uses
	// [feedcache.DefaultFreshness].
	Freshness time.Duration
	Logger    *log.Logger
}

// Resolver runs the multi-feed resolution.
type Resolver struct {
	solver    Solver
	stale     StalenessChecker
	freshness time.Duration
	logger    *log.Logger
}

// New creates a resolver.
func New(s Solver, stale StalenessChecker, opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if opts.Freshness == 0 {
		opts.Freshness = feedcache.DefaultFreshness
	}
	if opts.Freshness > 0 && opts.Freshness < feedcache.MinCheckInterval {
		opts.Logger.Warn("Freshness below the minimum check interval has no effect",
			"freshness", opts.Freshness, "minimum", feedcache.MinCheckInterval)
	}
	return &Resolver{solver: s, stale: stale, freshness: opts.Freshness, logger: opts.Logger}
}

// Resolve solves each of uris and merges the selections. With refresh set,
// every solve downloads its feeds.
func (r *Resolver) Resolve(ctx context.Context, uris []string, refresh bool) (*selection.Set, error) {
	merged := &selection.Set{}
	for _, uri := range uris {
		sels, err := r.solveOne(ctx, uri, refresh)
		if err != nil {
			return nil, err
		}
		if err := merged.Merge(sels); err != nil {
			return nil, fmt.Errorf("merge selections of %s: %w", uri, err)
		}
	}
	return merged, nil
}

func (r *Resolver) solveOne(ctx context.Context, uri string, force bool) (sels *selection.Set, err error) {
	req := solver.NewRequirement(uri)
	hooks := observability.Pipeline()
	start := time.Now()
	hooks.OnSolveStart(ctx, uri, force)
	defer func() {
		n := 0
		if sels != nil {
			n = sels.Len()
		}
		hooks.OnSolveComplete(ctx, uri, n, time.Since(start), err)
	}()

	var res *solver.Result
	refresh := force
	if !refresh {
		res, err = r.solver.Solve(ctx, req, false)
		if err != nil {
			return nil, err
		}
		refresh = r.needsRefresh(ctx, res.FeedsUsed)
	}
	if refresh {
		r.logger.Debug("refreshing feeds", "feed", uri)
		res, err = r.solver.Solve(ctx, req, true)
		if err != nil {
			return nil, err
		}
	}

	if !res.Ready {
		return nil, errors.Wrap(errors.ErrCodeResolution, res.Reason, "cannot select implementations for %s", uri)
	}
	return res.Selections, nil
}

// needsRefresh reports whether any non-distribution feed used is stale.
func (r *Resolver) needsRefresh(ctx context.Context, used []string) bool {
	for _, uri := range used {
		if feed.IsDistribution(uri) {
			continue
		}
		if r.stale.IsStale(ctx, uri, r.freshness) {
			r.logger.Debug("stale feed", "feed", uri)
			return true
		}
	}
	return false
}
