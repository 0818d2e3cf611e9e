package cmake

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackseed/pkg/vcs/vcstest"
	"github.com/matzehuels/stackseed/pkg/workspace"
)

// record creates a working copy directory, with a CMakeLists.txt when
// withDescriptor is set.
func record(t *testing.T, root, name string, requested, withDescriptor bool, status workspace.Status) *workspace.Record {
	t.Helper()
	c := workspace.Component{Name: name, Requested: requested}
	dir := filepath.Join(root, filepath.FromSlash(c.RelPath()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if withDescriptor {
		if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(x)\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return &workspace.Record{Component: c, Dir: dir, Status: status}
}

func TestGenerateRegistersSubdirectories(t *testing.T) {
	root := t.TempDir()
	records := []*workspace.Record{
		record(t, root, "zlib", false, true, workspace.StatusDone),
		record(t, root, "app", true, true, workspace.StatusDone),
		record(t, root, "boost", false, true, workspace.StatusDone),
		record(t, root, "headers", false, false, workspace.StatusDone),
		record(t, root, "broken", false, true, workspace.StatusFailed),
	}

	d, err := Generate(records, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(d.TopDirs, ","); got != "app" {
		t.Errorf("TopDirs = %s", got)
	}
	if got := strings.Join(d.DepDirs, ","); got != "boost,zlib" {
		t.Errorf("DepDirs = %s", got)
	}
	if !strings.Contains(d.Dependencies, "add_subdirectory(boost)\nadd_subdirectory(zlib)\n") {
		t.Errorf("dependencies descriptor:\n%s", d.Dependencies)
	}
	if strings.Contains(d.Dependencies, "broken") || strings.Contains(d.Dependencies, "headers") {
		t.Errorf("unexpected registration:\n%s", d.Dependencies)
	}
}

func TestGeneratePreamble(t *testing.T) {
	d, err := Generate(nil, Options{MinimumVersion: "3.5", ModuleComponent: "cmake-modules"})
	if err != nil {
		t.Fatal(err)
	}
	for name, text := range map[string]string{"top": d.Top, "deps": d.Dependencies} {
		if !strings.HasPrefix(text, "# Project file generated by stackseed\ncmake_minimum_required(VERSION 3.5 FATAL_ERROR)\n") {
			t.Errorf("%s preamble:\n%s", name, text)
		}
	}
	want := `list(APPEND CMAKE_MODULE_PATH "${CMAKE_CURRENT_LIST_DIR}/.dependencies/cmake-modules/cmake/Modules")`
	if !strings.Contains(d.Top, want) {
		t.Errorf("top descriptor missing module path:\n%s", d.Top)
	}
	if !strings.Contains(d.Top, "add_subdirectory(.dependencies)\n") {
		t.Errorf("top descriptor does not descend into dependencies:\n%s", d.Top)
	}
}

func TestSuppressionBalancedWithoutComponents(t *testing.T) {
	d, err := Generate(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	deps := d.Dependencies
	push := strings.Count(deps, "set_property(DIRECTORY PROPERTY STACKSEED_DISABLE_${name}S ${STACKSEED_DISABLE_${name}S})")
	pop := strings.Count(deps, "get_property(STACKSEED_DISABLE_${name}S DIRECTORY PROPERTY STACKSEED_DISABLE_${name}S)")
	if push != 1 || pop != 1 {
		t.Errorf("push=%d pop=%d, want one each:\n%s", push, pop, deps)
	}
	if strings.Index(deps, "set_property") > strings.Index(deps, "get_property") {
		t.Error("pop precedes push")
	}
	if strings.Count(deps, "foreach(name TEST DOC EXAMPLE)") != 2 {
		t.Errorf("expected both loops over TEST DOC EXAMPLE:\n%s", deps)
	}
	if strings.Contains(deps, "add_subdirectory") {
		t.Errorf("unexpected subdirectory:\n%s", deps)
	}
}

// configure interprets the INITIAL_PASS statements of a top-level
// descriptor against a persistent cache and returns the number of errors
// reported.
func configure(t *testing.T, text string, cache map[string]bool) int {
	t.Helper()
	errs := 0
	inBlock, active := false, false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == `set(STACKSEED_INITIAL_PASS TRUE CACHE BOOL "")`:
			if _, ok := cache["STACKSEED_INITIAL_PASS"]; !ok {
				cache["STACKSEED_INITIAL_PASS"] = true
			}
		case line == "if(STACKSEED_INITIAL_PASS)":
			inBlock, active = true, cache["STACKSEED_INITIAL_PASS"]
		case strings.HasPrefix(line, "endif(STACKSEED_INITIAL_PASS)"):
			inBlock = false
		case inBlock && active && line == "message(SEND_ERROR":
			errs++
		case inBlock && active && line == `set(STACKSEED_INITIAL_PASS FALSE CACHE BOOL "" FORCE)`:
			cache["STACKSEED_INITIAL_PASS"] = false
		}
	}
	return errs
}

func TestInitialPassIsOneShot(t *testing.T) {
	d, err := Generate(nil, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(d.Top, `"Initial pass successfully completed, now run again!"`) {
		t.Fatalf("top descriptor missing rerun message:\n%s", d.Top)
	}
	cache := map[string]bool{}
	if n := configure(t, d.Top, cache); n != 1 {
		t.Errorf("first pass errors = %d, want 1", n)
	}
	if n := configure(t, d.Top, cache); n != 0 {
		t.Errorf("second pass errors = %d, want 0", n)
	}
}

func TestWrite(t *testing.T) {
	root := t.TempDir()
	ws := workspace.New(root)
	if err := os.Mkdir(ws.DependenciesPath(), 0o755); err != nil {
		t.Fatal(err)
	}
	records := []*workspace.Record{record(t, root, "app", true, true, workspace.StatusDone)}

	d, err := Write(context.Background(), ws, records, Options{})
	if err != nil {
		t.Fatal(err)
	}
	top, err := os.ReadFile(ws.TopDescriptor())
	if err != nil || string(top) != d.Top {
		t.Errorf("top descriptor on disk differs: %v", err)
	}
	deps, err := os.ReadFile(ws.DependenciesDescriptor())
	if err != nil || string(deps) != d.Dependencies {
		t.Errorf("dependencies descriptor on disk differs: %v", err)
	}
}

func TestGenerateIndependentOfCompletionOrder(t *testing.T) {
	names := []string{"app", "zlib", "boost", "png", "tool"}
	var comps []workspace.Component
	for i, name := range names {
		comps = append(comps, workspace.Component{
			Interface:   "http://feeds/" + name + ".xml",
			DisplayName: name,
			Name:        name,
			Repository:  "git://host/" + name + ".git",
			Revision:    "rev-" + name,
			Requested:   i == 0 || name == "tool",
		})
	}

	descriptors := func(t *testing.T, delay func(dir string) time.Duration) *Descriptors {
		t.Helper()
		git := vcstest.New()
		git.FetchDelay = delay
		git.OnCheckout = func(dir, _ string) error {
			return os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(x)\n"), 0o644)
		}
		ws := workspace.New(filepath.Join(t.TempDir(), "ws"))
		if err := ws.Create(context.Background(), git); err != nil {
			t.Fatal(err)
		}
		records, err := workspace.NewMaterializer(git, 2, nil, nil).Materialize(context.Background(), ws, comps)
		if err != nil {
			t.Fatal(err)
		}
		d, err := Generate(records, Options{})
		if err != nil {
			t.Fatal(err)
		}
		return d
	}

	first := func(dir string) time.Duration {
		return time.Duration(len(filepath.Base(dir))) * 2 * time.Millisecond
	}
	last := func(dir string) time.Duration {
		return time.Duration(10-len(filepath.Base(dir))) * 2 * time.Millisecond
	}
	a := descriptors(t, first)
	b := descriptors(t, last)
	if a.Top != b.Top || a.Dependencies != b.Dependencies {
		t.Errorf("descriptors depend on completion order:\n%s\n%s\nvs\n%s\n%s", a.Top, a.Dependencies, b.Top, b.Dependencies)
	}
	if got := strings.Join(a.TopDirs, ","); got != "app,tool" {
		t.Errorf("TopDirs = %s", got)
	}
	if got := strings.Join(a.DepDirs, ","); got != "boost,png,zlib" {
		t.Errorf("DepDirs = %s", got)
	}
}
