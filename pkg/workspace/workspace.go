// Package workspace materializes a selection set as git working copies.
//
// A workspace is a fresh git repository. Working copies of the requested
// components live at its top level; every other selected component lives
// under [DependenciesDir]. Each working copy is its own repository,
// registered as a submodule of the workspace and checked out at the
// revision recorded in its selected implementation.
package workspace

import (
	"context"
	"os"
	"path/filepath"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/vcs"
)

// DependenciesDir is the workspace subdirectory holding transitive
// dependencies.
const DependenciesDir = ".dependencies"

// DescriptorName is the build descriptor file name.
const DescriptorName = "CMakeLists.txt"

// CommitMessage is the message of the workspace's first commit.
const CommitMessage = "initial workspace setup"

// Workspace is the destination directory tree.
type Workspace struct {
	Root string
}

// New returns the workspace rooted at root.
func New(root string) *Workspace {
	return &Workspace{Root: filepath.Clean(root)}
}

// DependenciesPath returns the absolute dependencies directory.
func (w *Workspace) DependenciesPath() string {
	return filepath.Join(w.Root, DependenciesDir)
}

// TopDescriptor returns the path of the top-level build descriptor.
func (w *Workspace) TopDescriptor() string {
	return filepath.Join(w.Root, DescriptorName)
}

// DependenciesDescriptor returns the path of the dependencies build
// descriptor.
func (w *Workspace) DependenciesDescriptor() string {
	return filepath.Join(w.DependenciesPath(), DescriptorName)
}

// Create makes the workspace directory and its dependencies subdirectory and
// initializes the workspace repository. The root must not exist.
func (w *Workspace) Create(ctx context.Context, git vcs.Git) error {
	if err := os.Mkdir(w.Root, 0o755); err != nil {
		if os.IsExist(err) {
			return errors.New(errors.ErrCodeWorkspaceExists, "workspace %s already exists", w.Root)
		}
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create workspace %s", w.Root)
	}
	if err := os.Mkdir(w.DependenciesPath(), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "create %s", w.DependenciesPath())
	}
	if err := git.Init(ctx, w.Root); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "initialize workspace repository")
	}
	return nil
}

// Commit stages the whole workspace and records the initial commit.
func (w *Workspace) Commit(ctx context.Context, git vcs.Git) error {
	if err := git.AddAll(ctx, w.Root); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "stage workspace")
	}
	if err := git.Commit(ctx, w.Root, CommitMessage); err != nil {
		return errors.Wrap(errors.ErrCodeMaterialization, err, "commit workspace")
	}
	return nil
}
