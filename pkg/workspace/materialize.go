package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/observability"
	"github.com/matzehuels/stackseed/pkg/vcs"
)

// DefaultWorkers bounds concurrent fetch-and-checkout tasks.
const DefaultWorkers = 8

// Status is the state of one working copy.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Record describes one working copy after materialization.
type Record struct {
	Component
	// Dir is the absolute working-copy directory.
	Dir string
	// Head is the commit checked out, read back after checkout.
	Head   string
	Status Status
	Err    error
}

// Materializer turns planned components into working copies.
type Materializer struct {
	Git     vcs.Git
	Workers int
	// Out receives human-readable progress lines.
	Out    io.Writer
	Logger *log.Logger
}

// NewMaterializer returns a materializer running at most workers checkouts
// at once.
func NewMaterializer(git vcs.Git, workers int, out io.Writer, logger *log.Logger) *Materializer {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Materializer{Git: git, Workers: workers, Out: out, Logger: logger}
}

// Materialize creates one working copy per component inside ws.
//
// Directory creation and submodule registration run in component order, so
// the workspace's submodule list does not depend on scheduling. Fetch and
// checkout run on a bounded pool. A failing task does not stop its
// siblings; every record is final when Materialize returns, and the first
// failure is returned.
func (m *Materializer) Materialize(ctx context.Context, ws *Workspace, comps []Component) ([]*Record, error) {
	records := make([]*Record, len(comps))
	var firstErr error
	fail := func(r *Record, err error) {
		r.Status = StatusFailed
		r.Err = err
		if firstErr == nil {
			firstErr = err
		}
	}

	var g errgroup.Group
	g.SetLimit(m.Workers)
	completed := make(chan *Record, len(comps))
	scheduled := 0

	if len(comps) > 0 {
		fmt.Fprintln(m.Out, "  Fetching components:")
	}
	for i, c := range comps {
		r := &Record{Component: c, Dir: filepath.Join(ws.Root, filepath.FromSlash(c.RelPath()))}
		records[i] = r
		fmt.Fprintf(m.Out, "    %s\n", c.DisplayName)

		if err := m.prepare(ctx, ws, r); err != nil {
			fail(r, err)
			continue
		}
		scheduled++
		g.Go(func() error {
			err := m.checkout(ctx, r)
			completed <- r
			return err
		})
	}

	if scheduled > 0 {
		fmt.Fprintln(m.Out, "Waiting for submodules...")
	}
	for range scheduled {
		r := <-completed
		if r.Status == StatusDone {
			fmt.Fprintf(m.Out, "  %s: done.\n", r.Name)
		} else {
			fmt.Fprintf(m.Out, "  %s: failed: %v\n", r.Name, r.Err)
		}
	}
	if err := g.Wait(); err != nil && firstErr == nil {
		firstErr = err
	}
	if scheduled > 0 {
		fmt.Fprintln(m.Out, "done.")
	}
	return records, firstErr
}

// prepare creates the working-copy repository and registers it with the
// workspace.
func (m *Materializer) prepare(ctx context.Context, ws *Workspace, r *Record) error {
	if err := os.Mkdir(r.Dir, 0o755); err != nil {
		if os.IsExist(err) {
			return errors.New(errors.ErrCodeMaterialization,
				"working copy %s for %s collides with another component", r.RelPath(), r.Interface)
		}
		return errors.Wrap(errors.ErrCodeMaterialization, err, "create %s", r.RelPath())
	}
	if err := m.Git.Init(ctx, r.Dir); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "initialize %s", r.RelPath())
	}
	if err := m.Git.SubmoduleAdd(ctx, ws.Root, r.Repository, r.RelPath()); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "register submodule %s", r.RelPath())
	}
	return nil
}

// checkout fetches the repository and checks out the selected revision. It
// sets the record's final status.
func (m *Materializer) checkout(ctx context.Context, r *Record) error {
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnCheckoutStart(ctx, r.Name, r.Revision)

	err := m.fetchAndCheckout(ctx, r)
	hooks.OnCheckoutComplete(ctx, r.Name, time.Since(start), err)
	if err != nil {
		m.Logger.Debug("checkout failed", "name", r.Name, "err", err)
		r.Status = StatusFailed
		r.Err = err
		return err
	}
	m.Logger.Debug("checked out", "name", r.Name, "head", r.Head)
	r.Status = StatusDone
	return nil
}

func (m *Materializer) fetchAndCheckout(ctx context.Context, r *Record) error {
	if r.Revision == "" {
		return errors.New(errors.ErrCodeMaterialization, "%s: selected implementation has no revision", r.Interface)
	}
	if err := m.Git.RemoteAdd(ctx, r.Dir, "origin", r.Repository); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "%s: add remote", r.Name)
	}
	if err := m.Git.Fetch(ctx, r.Dir, "origin"); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "%s: fetch %s", r.Name, r.Repository)
	}
	if err := m.Git.Checkout(ctx, r.Dir, r.Revision); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "%s: checkout %s", r.Name, r.Revision)
	}
	head, err := m.Git.Head(ctx, r.Dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "%s: read HEAD", r.Name)
	}
	r.Head = head
	return nil
}
