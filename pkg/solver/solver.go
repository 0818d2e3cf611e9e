// Package solver picks one implementation per component for a requirement.
//
// The solver is greedy: components are visited breadth-first from the
// requested feed, and each one is bound to its best candidate the first time
// it is reached. Candidates are ranked by
//
//  1. availability (locally present or placeholder) first
//  2. version, newest first
//  3. architecture rank for the host (real machines before the missing
//     placeholder machine)
//  4. id, for determinism
//
// A later dependent whose version restrictions exclude an already bound
// implementation makes the requirement unsatisfiable; the solver does not
// backtrack.
package solver

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/stackseed/pkg/arch"
	"github.com/matzehuels/stackseed/pkg/feed"
	"github.com/matzehuels/stackseed/pkg/selection"
)

// CommandDevelop is the command every requested feed is solved for.
const CommandDevelop = "develop"

// Requirement asks for a runnable selection rooted at one feed.
type Requirement struct {
	Interface string
	Command   string
}

// NewRequirement returns the develop requirement for uri.
func NewRequirement(uri string) Requirement {
	return Requirement{Interface: uri, Command: CommandDevelop}
}

// Result is the outcome of one solve.
type Result struct {
	// Ready is set when every reachable component has a selection.
	Ready bool
	// Reason explains why the solve is not ready.
	Reason error
	// Selections holds the chosen implementations, root first. It is
	// partial when the solve is not ready.
	Selections *selection.Set
	// FeedsUsed lists every feed consulted, in visiting order, including
	// feeds that failed to load.
	FeedsUsed []string
}

// FeedSource loads feeds; force requests a network refresh.
type FeedSource interface {
	GetFeed(ctx context.Context, uri string, force bool) (*feed.Feed, error)
}

// Solver is a greedy dependency solver.
type Solver struct {
	feeds   FeedSource
	ranking *arch.Ranking
	logger  *log.Logger
}

// New creates a solver ranking architectures with ranking. A nil ranking
// uses the host's.
func New(feeds FeedSource, ranking *arch.Ranking, logger *log.Logger) *Solver {
	if ranking == nil {
		ranking = arch.Host()
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Solver{feeds: feeds, ranking: ranking, logger: logger}
}

type pending struct {
	uri      string
	restrict []feed.Restriction
	command  string
	from     string
}

// Solve selects implementations for req. When refresh is set, feeds are
// loaded with a forced refresh. Failing to satisfy req is reported through
// Result.Reason; the returned error is reserved for cancellation.
func (s *Solver) Solve(ctx context.Context, req Requirement, refresh bool) (*Result, error) {
	res := &Result{Selections: &selection.Set{}}
	bound := make(map[string]*feed.Implementation)
	seen := make(map[string]bool)

	queue := []pending{{uri: req.Interface, command: req.Command}}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := queue[0]
		queue = queue[1:]

		if impl, ok := bound[p.uri]; ok {
			if !allows(p.restrict, impl.Version) {
				res.Reason = fmt.Errorf("%s requires %s %s, but version %s is already selected",
					p.from, p.uri, describe(p.restrict), impl.Version)
				return res, nil
			}
			continue
		}

		if !seen[p.uri] {
			seen[p.uri] = true
			res.FeedsUsed = append(res.FeedsUsed, p.uri)
		}
		f, err := s.feeds.GetFeed(ctx, p.uri, refresh)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			res.Reason = fmt.Errorf("load feed %s: %w", p.uri, err)
			return res, nil
		}

		impl, rejected := s.best(f, p)
		if impl == nil {
			res.Reason = fmt.Errorf("no usable implementation of %s%s", f.DisplayName(), rejected)
			return res, nil
		}
		s.logger.Debug("selected", "feed", p.uri, "id", impl.ID, "version", impl.Version)
		bound[p.uri] = impl
		res.Selections.Put(selection.FromImplementation(impl))

		for _, dep := range impl.Dependencies() {
			queue = append(queue, pending{uri: dep.Interface, restrict: dep.Restrictions, from: p.uri})
		}
	}
	res.Ready = true
	return res, nil
}

type candidate struct {
	impl *feed.Implementation
	rank int
}

// best returns the preferred usable implementation of f for p. When there is
// none, rejected summarizes why.
func (s *Solver) best(f *feed.Feed, p pending) (*feed.Implementation, string) {
	needCommand := p.command != "" && declaresCommands(f)

	var (
		cands   []candidate
		reasons []string
	)
	for _, impl := range f.Sorted() {
		a, err := impl.Architecture()
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("%s: %v", impl.ID, err))
			continue
		}
		rank, ok := s.ranking.Rank(a)
		if !ok {
			reasons = append(reasons, fmt.Sprintf("%s: incompatible architecture %s", impl.ID, a))
			continue
		}
		if !allows(p.restrict, impl.Version) {
			reasons = append(reasons, fmt.Sprintf("%s: version %s excluded", impl.ID, impl.Version))
			continue
		}
		if needCommand && !impl.HasCommand(p.command) {
			reasons = append(reasons, fmt.Sprintf("%s: no %q command", impl.ID, p.command))
			continue
		}
		cands = append(cands, candidate{impl: impl, rank: rank})
	}
	if len(cands) == 0 {
		if len(reasons) == 0 {
			return nil, ": feed has no implementations"
		}
		return nil, " (" + strings.Join(reasons, "; ") + ")"
	}

	slices.SortStableFunc(cands, func(a, b candidate) int {
		if av, bv := a.impl.Available(), b.impl.Available(); av != bv {
			if av {
				return -1
			}
			return 1
		}
		if c := feed.Compare(a.impl.Version, b.impl.Version); c != 0 {
			return -c
		}
		if a.rank != b.rank {
			return a.rank - b.rank
		}
		return strings.Compare(a.impl.ID, b.impl.ID)
	})
	return cands[0].impl, ""
}

func declaresCommands(f *feed.Feed) bool {
	for _, impl := range f.Implementations {
		if len(impl.Commands) > 0 {
			return true
		}
	}
	return false
}

func allows(rs []feed.Restriction, v feed.Version) bool {
	return feed.Dependency{Restrictions: rs}.Allows(v)
}

func describe(rs []feed.Restriction) string {
	var parts []string
	for _, r := range rs {
		var b strings.Builder
		if !r.NotBefore.IsZero() {
			b.WriteString(">=" + r.NotBefore.String())
		}
		if !r.Before.IsZero() {
			if b.Len() > 0 {
				b.WriteString(",")
			}
			b.WriteString("<" + r.Before.String())
		}
		if b.Len() > 0 {
			parts = append(parts, b.String())
		}
	}
	if len(parts) == 0 {
		return "(any version)"
	}
	return strings.Join(parts, " ")
}
