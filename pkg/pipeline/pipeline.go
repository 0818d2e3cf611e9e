// Package pipeline runs the stackseed bootstrap pipeline.
//
// This package wires the stages together so the CLI commands share one
// implementation:
//
//  1. Resolve: solve every requested feed and merge the selections
//  2. Plan: map selections to working copies and repositories
//  3. Materialize: create the workspace and check out every component
//  4. Generate: write the two CMake build descriptors
//  5. Commit: record the workspace in its own repository
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, git, logger)
//	result, err := runner.Develop(ctx, pipeline.Options{
//	    Feeds:     []string{"http://ryppl.github.com/feeds/boost/config.xml"},
//	    Workspace: "boost-dev",
//	})
//
// Resolve only:
//
//	sels, err := runner.Resolve(ctx, pipeline.Options{Feeds: feeds})
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/cmake"
	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feedcache"
	"github.com/matzehuels/stackseed/pkg/selection"
	"github.com/matzehuels/stackseed/pkg/workspace"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultFreshness is how long a cached feed is trusted.
	DefaultFreshness = feedcache.DefaultFreshness

	// DefaultWorkers bounds concurrent checkouts.
	DefaultWorkers = workspace.DefaultWorkers
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one pipeline run.
type Options struct {
	// Feeds are the requested feed URIs or local feed paths.
	Feeds []string
	// Workspace is the directory to create.
	Workspace string
	// Refresh downloads every feed regardless of staleness.
	Refresh bool
	// Freshness is how long cached feeds are trusted; negative disables
	// staleness checks.
	Freshness time.Duration
	Workers   int
	CMake     cmake.Options

	// Out receives console progress lines.
	Out    io.Writer
	Logger *log.Logger

	validated bool
}

// ValidateForResolve checks the requested feeds and normalizes local paths
// to absolute form.
func (o *Options) ValidateForResolve() error {
	if len(o.Feeds) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "at least one feed is required")
	}
	seen := make(map[string]bool, len(o.Feeds))
	feeds := make([]string, 0, len(o.Feeds))
	for _, f := range o.Feeds {
		uri, err := errors.ValidateFeedURI(f)
		if err != nil {
			return err
		}
		if seen[uri] {
			continue
		}
		seen[uri] = true
		feeds = append(feeds, uri)
	}
	o.Feeds = feeds

	if o.Freshness == 0 {
		o.Freshness = DefaultFreshness
	}
	if o.Out == nil {
		o.Out = io.Discard
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// ValidateAndSetDefaults checks everything the develop pipeline needs.
// Calling it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForResolve(); err != nil {
		return err
	}
	ws, err := errors.ValidateWorkspacePath(o.Workspace)
	if err != nil {
		return err
	}
	o.Workspace = ws
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	o.validated = true
	return nil
}

// =============================================================================
// Result
// =============================================================================

// Result describes a develop run.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	Workspace   *workspace.Workspace
	Selections  *selection.Set
	Components  []workspace.Component
	Records     []*workspace.Record
	Descriptors *cmake.Descriptors

	// Committed is set once the workspace repository has its first commit.
	Committed bool

	Stats Stats
}

// Stats contains pipeline timings.
type Stats struct {
	ResolveTime     time.Duration
	MaterializeTime time.Duration
	Total           time.Duration
}

// Failed returns the records that could not be materialized.
func (r *Result) Failed() []*workspace.Record {
	var out []*workspace.Record
	for _, rec := range r.Records {
		if rec.Status != workspace.StatusDone {
			out = append(out, rec)
		}
	}
	return out
}
