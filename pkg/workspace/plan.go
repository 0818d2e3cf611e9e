package workspace

import (
	"context"
	"path"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feed"
	"github.com/matzehuels/stackseed/pkg/selection"
)

// FeedSource loads feeds. Materialization only reads feeds the resolver
// already loaded, so it never asks for a refresh.
type FeedSource interface {
	GetFeed(ctx context.Context, uri string, force bool) (*feed.Feed, error)
}

// Component is a selected implementation that will become a working copy.
type Component struct {
	Interface   string
	DisplayName string
	// Name is the working-copy directory name.
	Name       string
	Repository string
	Revision   string
	// Requested is set for components named on the command line; they are
	// placed at the workspace top level.
	Requested bool
}

// RelPath returns the working copy's path relative to the workspace root,
// slash-separated.
func (c Component) RelPath() string {
	if c.Requested {
		return c.Name
	}
	return path.Join(DependenciesDir, c.Name)
}

// Plan maps every selection to a component, in selection order. Selections
// whose implementation is unknown to the feed, or whose feed declares no
// repository, are skipped. A feed declaring more than one repository is an
// INTERNAL_ERROR; a repository whose URL does not end in a usable directory
// name is INVALID_FEED. Plan has no side effects, so every such error surfaces
// before the workspace is touched.
func Plan(ctx context.Context, feeds FeedSource, sels *selection.Set, requested []string, logger *log.Logger) ([]Component, error) {
	var comps []Component
	for _, sel := range sels.All() {
		f, err := feeds.GetFeed(ctx, sel.Interface, false)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "reload selected feed %s", sel.Interface)
		}
		if _, ok := f.Implementation(sel.ID); !ok {
			if logger != nil {
				logger.Debug("skipping selection without implementation", "feed", sel.Interface, "id", sel.ID)
			}
			continue
		}
		repo, ok, err := f.Repository()
		if err != nil {
			return nil, err
		}
		if !ok {
			if logger != nil {
				logger.Debug("skipping feed without repository", "feed", sel.Interface)
			}
			continue
		}
		name := repo.WorkingCopyName()
		if !usableName(name) {
			return nil, errors.New(errors.ErrCodeInvalidFeed,
				"feed %s: repository %q does not yield a working-copy name", sel.Interface, repo.Href)
		}
		comps = append(comps, Component{
			Interface:   sel.Interface,
			DisplayName: f.DisplayName(),
			Name:        name,
			Repository:  repo.Href,
			Revision:    sel.Revision(),
			Requested:   slices.Contains(requested, sel.Interface),
		})
	}
	return comps, nil
}

// usableName rejects working-copy names that would alias the parent
// directory or a git directory.
func usableName(name string) bool {
	return strings.Trim(name, ".") != "" && name != ".git"
}
