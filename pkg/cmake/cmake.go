// Package cmake writes the workspace build descriptors.
//
// A workspace has two CMakeLists.txt files. The top-level one registers the
// requested working copies, descends into the dependencies directory and,
// on the first configure pass only, stops with an error asking the user to
// configure again so that modules provided by freshly checked-out
// components are visible. The dependencies one registers every other
// working copy with test, doc and example targets disabled.
package cmake

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/observability"
	"github.com/matzehuels/stackseed/pkg/workspace"
)

// Defaults for [Options].
const (
	DefaultMinimumVersion  = "2.8.8"
	DefaultModuleComponent = "ryppl"
	DefaultPrefix          = "STACKSEED"
)

// Options controls the generated text.
type Options struct {
	// MinimumVersion is the required CMake version.
	MinimumVersion string
	// ModuleComponent names the dependency whose cmake/Modules directory
	// is appended to CMAKE_MODULE_PATH.
	ModuleComponent string
	// Prefix is prepended to generated cache variables.
	Prefix string
}

func (o Options) withDefaults() Options {
	if o.MinimumVersion == "" {
		o.MinimumVersion = DefaultMinimumVersion
	}
	if o.ModuleComponent == "" {
		o.ModuleComponent = DefaultModuleComponent
	}
	if o.Prefix == "" {
		o.Prefix = DefaultPrefix
	}
	return o
}

// Descriptors holds the text of both build descriptors.
type Descriptors struct {
	Top          string
	Dependencies string
	// TopDirs and DepDirs list the registered subdirectories.
	TopDirs []string
	DepDirs []string
}

// Generate builds the descriptors for the successfully materialized
// records. Records are registered in name order; a record is registered only
// if its working copy contains a CMakeLists.txt.
func Generate(records []*workspace.Record, opts Options) (*Descriptors, error) {
	opts = opts.withDefaults()

	done := slices.DeleteFunc(slices.Clone(records), func(r *workspace.Record) bool {
		return r.Status != workspace.StatusDone
	})
	slices.SortStableFunc(done, func(a, b *workspace.Record) int {
		return strings.Compare(a.Name, b.Name)
	})

	d := &Descriptors{}
	for _, r := range done {
		_, err := os.Stat(filepath.Join(r.Dir, workspace.DescriptorName))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "inspect %s", r.Dir)
		}
		if r.Requested {
			d.TopDirs = append(d.TopDirs, r.Name)
		} else {
			d.DepDirs = append(d.DepDirs, r.Name)
		}
	}

	var top, deps strings.Builder
	writeHead(&top, opts)
	fmt.Fprintf(&top, "\nlist(APPEND CMAKE_MODULE_PATH \"${CMAKE_CURRENT_LIST_DIR}/%s/%s/cmake/Modules\")\n",
		workspace.DependenciesDir, opts.ModuleComponent)
	fmt.Fprintf(&top, "set(%s_INITIAL_PASS TRUE CACHE BOOL \"\")\n", opts.Prefix)
	writeSubdirs(&top, d.TopDirs)
	fmt.Fprintf(&top, `
add_subdirectory(%[2]s)

if(%[1]s_INITIAL_PASS)
  # report an error in order to inhibit the generation step
  message(SEND_ERROR
    "Initial pass successfully completed, now run again!"
    )
  set(%[1]s_INITIAL_PASS FALSE CACHE BOOL "" FORCE)
endif(%[1]s_INITIAL_PASS)
`, opts.Prefix, workspace.DependenciesDir)

	writeHead(&deps, opts)
	fmt.Fprintf(&deps, `
foreach(name TEST DOC EXAMPLE)
  set_property(DIRECTORY PROPERTY %[1]s_DISABLE_${name}S ${%[1]s_DISABLE_${name}S})
  set(%[1]s_DISABLE_${name}S true)
endforeach()
`, opts.Prefix)
	writeSubdirs(&deps, d.DepDirs)
	fmt.Fprintf(&deps, `
foreach(name TEST DOC EXAMPLE)
  get_property(%[1]s_DISABLE_${name}S DIRECTORY PROPERTY %[1]s_DISABLE_${name}S)
endforeach()
`, opts.Prefix)

	d.Top = top.String()
	d.Dependencies = deps.String()
	return d, nil
}

func writeHead(w io.Writer, opts Options) {
	fmt.Fprintln(w, "# Project file generated by stackseed")
	fmt.Fprintf(w, "cmake_minimum_required(VERSION %s FATAL_ERROR)\n", opts.MinimumVersion)
}

func writeSubdirs(w io.Writer, dirs []string) {
	for _, d := range dirs {
		fmt.Fprintf(w, "add_subdirectory(%s)\n", d)
	}
}

// Write generates both descriptors and writes them into ws.
func Write(ctx context.Context, ws *workspace.Workspace, records []*workspace.Record, opts Options) (*Descriptors, error) {
	d, err := Generate(records, opts)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(ws.TopDescriptor(), []byte(d.Top), 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", ws.TopDescriptor())
	}
	if err := os.WriteFile(ws.DependenciesDescriptor(), []byte(d.Dependencies), 0o644); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "write %s", ws.DependenciesDescriptor())
	}
	observability.Pipeline().OnDescriptorsWritten(ctx, len(d.TopDirs), len(d.DepDirs))
	return d, nil
}
