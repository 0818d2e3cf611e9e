// Package vcstest provides an in-memory git double for tests.
package vcstest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/matzehuels/stackseed/pkg/vcs"
)

// Call is one recorded operation.
type Call struct {
	Op   string
	Dir  string
	Args []string
}

func (c Call) String() string {
	return c.Op + " " + c.Dir + " " + strings.Join(c.Args, " ")
}

// Git records every operation and simulates repositories on disk: Init
// creates a .git directory and Checkout records the revision as HEAD.
type Git struct {
	// OnCheckout, when set, runs after a successful checkout, e.g. to drop
	// a CMakeLists.txt into the working copy.
	OnCheckout func(dir, revision string) error
	// Fail makes the named operation fail for directories whose base name
	// matches the key's suffix ("fetch:zlib").
	Fail map[string]error
	// FetchDelay, when set, holds each Fetch for the returned duration.
	FetchDelay func(dir string) time.Duration

	mu        sync.Mutex
	fetching  int
	peakFetch int
	calls     []Call
	heads     map[string]string
	remotes   map[string]map[string]string
}

// New returns an empty fake.
func New() *Git {
	return &Git{heads: make(map[string]string), remotes: make(map[string]map[string]string)}
}

func (g *Git) record(op, dir string, args ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Op: op, Dir: dir, Args: args})
	if err, ok := g.Fail[op+":"+filepath.Base(dir)]; ok {
		return err
	}
	return nil
}

// Calls returns the recorded operations in order.
func (g *Git) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.calls)
}

// CallsFor returns the operations recorded for dir.
func (g *Git) CallsFor(dir string) []Call {
	var out []Call
	for _, c := range g.Calls() {
		if c.Dir == dir {
			out = append(out, c)
		}
	}
	return out
}

// Count returns how many times op was called.
func (g *Git) Count(op string) int {
	n := 0
	for _, c := range g.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (g *Git) Init(_ context.Context, dir string) error {
	if err := g.record("init", dir); err != nil {
		return err
	}
	return os.MkdirAll(filepath.Join(dir, ".git"), 0o755)
}

func (g *Git) SubmoduleAdd(_ context.Context, super, url, path string) error {
	if err := g.record("submodule-add", super, url, path); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(super, ".gitmodules"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "[submodule %q]\n\tpath = %s\n\turl = %s\n", path, path, url)
	return err
}

func (g *Git) RemoteAdd(_ context.Context, dir, name, url string) error {
	if err := g.record("remote-add", dir, name, url); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.remotes[dir] == nil {
		g.remotes[dir] = make(map[string]string)
	}
	if _, dup := g.remotes[dir][name]; dup {
		return fmt.Errorf("remote %s already exists in %s", name, dir)
	}
	g.remotes[dir][name] = url
	return nil
}

func (g *Git) Fetch(ctx context.Context, dir, remote string) error {
	if err := g.record("fetch", dir, remote); err != nil {
		return err
	}
	g.mu.Lock()
	_, ok := g.remotes[dir][remote]
	g.fetching++
	g.peakFetch = max(g.peakFetch, g.fetching)
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.fetching--
		g.mu.Unlock()
	}()

	if g.FetchDelay != nil {
		select {
		case <-time.After(g.FetchDelay(dir)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if !ok {
		return fmt.Errorf("no remote %s in %s", remote, dir)
	}
	return nil
}

// PeakFetches returns the largest number of Fetch calls that were in
// progress at the same time.
func (g *Git) PeakFetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peakFetch
}

func (g *Git) Checkout(_ context.Context, dir, revision string) error {
	if err := g.record("checkout", dir, revision); err != nil {
		return err
	}
	if revision == "" {
		return fmt.Errorf("empty revision")
	}
	g.mu.Lock()
	g.heads[dir] = revision
	g.mu.Unlock()
	if g.OnCheckout != nil {
		return g.OnCheckout(dir, revision)
	}
	return nil
}

func (g *Git) Head(_ context.Context, dir string) (string, error) {
	if err := g.record("head", dir); err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	head, ok := g.heads[dir]
	if !ok {
		return "", fmt.Errorf("no commit checked out in %s", dir)
	}
	return head, nil
}

// Remote returns the URL of a remote added to dir.
func (g *Git) Remote(dir, name string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remotes[dir][name]
}

func (g *Git) AddAll(_ context.Context, dir string) error {
	return g.record("add", dir)
}

func (g *Git) Commit(_ context.Context, dir, message string) error {
	return g.record("commit", dir, message)
}

var _ vcs.Git = (*Git)(nil)
