package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/stackseed/pkg/arch"
	"github.com/matzehuels/stackseed/pkg/augment"
	"github.com/matzehuels/stackseed/pkg/cache"
	"github.com/matzehuels/stackseed/pkg/cmake"
	"github.com/matzehuels/stackseed/pkg/feedcache"
	"github.com/matzehuels/stackseed/pkg/resolve"
	"github.com/matzehuels/stackseed/pkg/selection"
	"github.com/matzehuels/stackseed/pkg/solver"
	"github.com/matzehuels/stackseed/pkg/vcs"
	"github.com/matzehuels/stackseed/pkg/workspace"
)

// Runner executes pipeline runs.
//
// The Runner holds only long-lived collaborators. Every run builds its own
// feed cache and augmenter, so feed identity and the augmentation done-set
// are scoped to the run.
type Runner struct {
	Cache cache.Cache
	Git   vcs.Git
	// Fetcher downloads remote feeds; nil uses HTTP.
	Fetcher feedcache.Fetcher
	// Ranking orders architectures; nil uses the host's.
	Ranking *arch.Ranking
	Logger  *log.Logger
}

// NewRunner creates a runner. A nil cache keeps nothing between runs.
func NewRunner(c cache.Cache, git vcs.Git, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Runner{Cache: c, Git: git, Logger: logger}
}

// session is the per-run feed stack.
type session struct {
	feeds    *augment.Augmenter
	resolver *resolve.Resolver
}

func (r *Runner) newSession(opts Options, logger *log.Logger) *session {
	fc := feedcache.New(feedcache.Options{Store: r.Cache, Fetcher: r.Fetcher, Logger: logger})
	aug := augment.New(fc, logger)
	s := solver.New(aug, r.Ranking, logger)
	return &session{
		feeds:    aug,
		resolver: resolve.New(s, fc, resolve.Options{Freshness: opts.Freshness, Logger: logger}),
	}
}

// Resolve solves and merges the requested feeds without touching the
// filesystem.
func (r *Runner) Resolve(ctx context.Context, opts Options) (*selection.Set, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForResolve(); err != nil {
		return nil, err
	}
	logger := opts.Logger.With("run", uuid.NewString())
	return r.newSession(opts, logger).resolver.Resolve(ctx, opts.Feeds, opts.Refresh)
}

// Develop runs the full pipeline. Resolution and planning finish before the
// workspace is created, so their failures leave the filesystem untouched.
// When materialization fails, the descriptors are still written for the
// components that succeeded but the workspace is not committed; the
// partial result is returned with the error.
func (r *Runner) Develop(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	start := time.Now()
	result := &Result{RunID: uuid.NewString()}
	logger := opts.Logger.With("run", result.RunID)
	sess := r.newSession(opts, logger)

	// Stage 1: Resolve
	sels, err := sess.resolver.Resolve(ctx, opts.Feeds, opts.Refresh)
	if err != nil {
		return nil, err
	}
	result.Selections = sels
	result.Stats.ResolveTime = time.Since(start)
	logger.Info("resolved selections", "selections", sels.Len(), "duration", result.Stats.ResolveTime)

	// Stage 2: Plan
	comps, err := workspace.Plan(ctx, sess.feeds, sels, opts.Feeds, logger)
	if err != nil {
		return nil, err
	}
	result.Components = comps

	// Stage 3: Materialize
	ws := workspace.New(opts.Workspace)
	result.Workspace = ws
	fmt.Fprintln(opts.Out, "Setting up project workspace...")
	if err := ws.Create(ctx, r.Git); err != nil {
		return nil, err
	}
	matStart := time.Now()
	m := workspace.NewMaterializer(r.Git, opts.Workers, opts.Out, logger)
	records, matErr := m.Materialize(ctx, ws, comps)
	result.Records = records
	result.Stats.MaterializeTime = time.Since(matStart)
	logger.Info("materialized components", "components", len(records),
		"failed", len(result.Failed()), "duration", result.Stats.MaterializeTime)

	// Stage 4: Generate
	desc, err := cmake.Write(ctx, ws, records, opts.CMake)
	if err != nil {
		return result, err
	}
	result.Descriptors = desc
	if matErr != nil {
		result.Stats.Total = time.Since(start)
		return result, matErr
	}

	// Stage 5: Commit
	if err := ws.Commit(ctx, r.Git); err != nil {
		return result, err
	}
	result.Committed = true
	result.Stats.Total = time.Since(start)
	return result, nil
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
