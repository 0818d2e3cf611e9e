// Package vcs drives git for workspace materialization.
//
// Every operation names the directory it runs in; nothing depends on the
// process working directory, so operations on different working copies can
// run concurrently. Commands are run with an inactivity timeout and fail
// with a [*CommandError] carrying git's stderr.
package vcs

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/vcs"
	"github.com/charmbracelet/log"
)

// Git is the set of version-control operations the workspace needs.
type Git interface {
	// Init creates an empty repository in dir.
	Init(ctx context.Context, dir string) error
	// SubmoduleAdd registers the working copy at path (relative to super)
	// as a submodule of super tracking url.
	SubmoduleAdd(ctx context.Context, super, url, path string) error
	// RemoteAdd adds a named remote to the repository in dir.
	RemoteAdd(ctx context.Context, dir, name, url string) error
	// Fetch downloads all refs of remote into dir.
	Fetch(ctx context.Context, dir, remote string) error
	// Checkout detaches dir at revision.
	Checkout(ctx context.Context, dir, revision string) error
	// Head returns the commit id checked out in dir.
	Head(ctx context.Context, dir string) (string, error)
	// AddAll stages every change in dir.
	AddAll(ctx context.Context, dir string) error
	// Commit records the staged changes in dir.
	Commit(ctx context.Context, dir, message string) error
}

// CLI runs the git executable.
type CLI struct {
	// Executable is the git binary; empty means "git".
	Executable string
	// Timeout kills a command that produces no output for this long.
	Timeout time.Duration
	Logger  *log.Logger
}

// NewCLI returns a git driver using executable (empty means "git").
func NewCLI(executable string, logger *log.Logger) *CLI {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &CLI{Executable: executable, Timeout: DefaultInactivityTimeout, Logger: logger}
}

// Available reports whether the git executable can be found.
func (g *CLI) Available() error {
	_, err := exec.LookPath(g.exe())
	return err
}

func (g *CLI) exe() string {
	if g.Executable == "" {
		return "git"
	}
	return g.Executable
}

func (g *CLI) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.Command(g.exe(), args...)
	cmd.Dir = dir
	g.Logger.Debug("git", "dir", dir, "args", strings.Join(args, " "))
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return newMonitoredCmd(cmd, timeout).output(ctx)
}

// runIn runs git through a Masterminds/vcs handle so the command gets the
// handle's directory and environment.
func (g *CLI) runIn(ctx context.Context, repo vcs.Repo, args ...string) ([]byte, error) {
	g.Logger.Debug("git", "dir", repo.LocalPath(), "args", strings.Join(args, " "))
	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return newMonitoredCmd(repo.CmdFromDir(g.exe(), args...), timeout).output(ctx)
}

// open returns a handle on the repository in dir. The handle checks that the
// configured origin, if any, matches remote.
func (g *CLI) open(dir, remote string) (*vcs.GitRepo, error) {
	repo, err := vcs.NewGitRepo(remote, dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return repo, nil
}

func (g *CLI) Init(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "init", "-q")
	return err
}

// SubmoduleAdd records the submodule in super's .gitmodules and marks it
// initialized in super's own config, as "git submodule add" does. The
// gitlink itself is staged by AddAll once the working copy has a commit
// checked out.
func (g *CLI) SubmoduleAdd(ctx context.Context, super, url, path string) error {
	key := "submodule." + path
	for _, args := range [][]string{
		{"config", "-f", ".gitmodules", key + ".path", path},
		{"config", "-f", ".gitmodules", key + ".url", url},
		{"config", key + ".url", url},
		{"config", key + ".active", "true"},
	} {
		if _, err := g.run(ctx, super, args...); err != nil {
			return err
		}
	}
	return nil
}

func (g *CLI) RemoteAdd(ctx context.Context, dir, name, url string) error {
	_, err := g.run(ctx, dir, "remote", "add", name, url)
	return err
}

func (g *CLI) Fetch(ctx context.Context, dir, remote string) error {
	url, err := g.run(ctx, dir, "config", "--get", "remote."+remote+".url")
	if err != nil {
		return err
	}
	repo, err := g.open(dir, strings.TrimSpace(string(url)))
	if err != nil {
		return err
	}
	_, err = g.runIn(ctx, repo, "fetch", "-q", remote)
	return err
}

// Checkout verifies that revision names a commit known to dir before
// checking it out.
func (g *CLI) Checkout(ctx context.Context, dir, revision string) error {
	repo, err := g.open(dir, "")
	if err != nil {
		return err
	}
	if !repo.IsReference(revision) {
		return fmt.Errorf("revision %q not found in %s", revision, dir)
	}
	_, err = g.runIn(ctx, repo, "checkout", "-q", revision)
	return err
}

func (g *CLI) Head(ctx context.Context, dir string) (string, error) {
	repo, err := g.open(dir, "")
	if err != nil {
		return "", err
	}
	return repo.Version()
}

func (g *CLI) AddAll(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "add", "-A")
	return err
}

func (g *CLI) Commit(ctx context.Context, dir, message string) error {
	_, err := g.run(ctx, dir, "commit", "-q", "-m", message)
	return err
}

var _ Git = (*CLI)(nil)
