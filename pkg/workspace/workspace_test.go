package workspace

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feed"
	"github.com/matzehuels/stackseed/pkg/selection"
	"github.com/matzehuels/stackseed/pkg/vcs/vcstest"
)

type feedMap map[string]*feed.Feed

func (m feedMap) GetFeed(_ context.Context, uri string, force bool) (*feed.Feed, error) {
	if force {
		return nil, stderrors.New("materialization must not refresh feeds")
	}
	f, ok := m[uri]
	if !ok {
		return nil, errors.New(errors.ErrCodeFeedNotCached, "feed %s is not cached", uri)
	}
	return f, nil
}

func mkFeed(uri, name string, repos ...string) *feed.Feed {
	f := feed.New(uri)
	f.Name = name
	for _, href := range repos {
		var attrs feed.Metadata
		attrs.Set("", "href", href)
		f.Elements = append(f.Elements, feed.Element{Namespace: feed.Namespace, Name: feed.ElemRepository, Attrs: attrs})
	}
	f.Add(&feed.Implementation{ID: "src", Version: feed.ParseVersion("1.0")})
	return f
}

func mkSel(uri, revision string) *selection.Selection {
	s := &selection.Selection{Interface: uri, ID: "src", Version: "1.0"}
	if revision != "" {
		s.Attrs.Set(feed.Namespace, feed.AttrRevision, revision)
	}
	return s
}

func TestPlan(t *testing.T) {
	feeds := feedMap{
		"http://feeds/app.xml":   mkFeed("http://feeds/app.xml", "app", "git://host/app.git"),
		"http://feeds/zlib.xml":  mkFeed("http://feeds/zlib.xml", "zlib", "git://host/zlib.git"),
		"http://feeds/tools.xml": mkFeed("http://feeds/tools.xml", "tools"),
	}
	sels := selection.NewSet(
		mkSel("http://feeds/app.xml", "abc123"),
		mkSel("http://feeds/zlib.xml", "v1.2"),
		mkSel("http://feeds/tools.xml", "v3"),
	)

	comps, err := Plan(context.Background(), feeds, sels, []string{"http://feeds/app.xml"}, nil)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := []Component{
		{Interface: "http://feeds/app.xml", DisplayName: "app", Name: "app", Repository: "git://host/app.git", Revision: "abc123", Requested: true},
		{Interface: "http://feeds/zlib.xml", DisplayName: "zlib", Name: "zlib", Repository: "git://host/zlib.git", Revision: "v1.2"},
	}
	if !reflect.DeepEqual(comps, want) {
		t.Errorf("Plan =\n%+v\nwant\n%+v", comps, want)
	}
	if got := comps[1].RelPath(); got != ".dependencies/zlib" {
		t.Errorf("RelPath = %s", got)
	}
}

func TestPlanSkipsUnknownImplementation(t *testing.T) {
	feeds := feedMap{"u": mkFeed("u", "u", "git://host/u.git")}
	sels := selection.NewSet(&selection.Selection{Interface: "u", ID: "stackseed=bin"})

	comps, err := Plan(context.Background(), feeds, sels, []string{"u"}, nil)
	if err != nil || len(comps) != 0 {
		t.Errorf("Plan = %v, %v; want nothing", comps, err)
	}
}

func TestPlanMultipleRepositories(t *testing.T) {
	feeds := feedMap{"u": mkFeed("u", "u", "git://a/u.git", "git://b/u.git")}
	_, err := Plan(context.Background(), feeds, selection.NewSet(mkSel("u", "r")), nil, nil)
	if !errors.Is(err, errors.ErrCodeInternal) {
		t.Errorf("err = %v, want INTERNAL_ERROR", err)
	}
}

func TestPlanRejectsUnusableRepositoryName(t *testing.T) {
	for _, href := range []string{"", "git://host/.git", "git://host/repo/..", "git://host/.", "/"} {
		feeds := feedMap{"u": mkFeed("u", "u", href)}
		_, err := Plan(context.Background(), feeds, selection.NewSet(mkSel("u", "r")), []string{"u"}, nil)
		if !errors.Is(err, errors.ErrCodeInvalidFeed) {
			t.Errorf("href %q: err = %v, want INVALID_FEED", href, err)
			continue
		}
		if href != "" && !strings.Contains(err.Error(), href) {
			t.Errorf("href %q: error does not name it: %v", href, err)
		}
	}
}

func TestCreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "ws")
	git := vcstest.New()
	ws := New(root)

	if err := ws.Create(context.Background(), git); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if fi, err := os.Stat(ws.DependenciesPath()); err != nil || !fi.IsDir() {
		t.Errorf("dependencies dir missing: %v", err)
	}
	if git.Count("init") != 1 {
		t.Errorf("init calls = %d", git.Count("init"))
	}

	err := New(root).Create(context.Background(), git)
	if !errors.Is(err, errors.ErrCodeWorkspaceExists) {
		t.Errorf("second Create = %v, want WORKSPACE_EXISTS", err)
	}
	if git.Count("init") != 1 {
		t.Error("existing workspace must not be reinitialized")
	}
}

func newWorkspace(t *testing.T, git *vcstest.Git) *Workspace {
	t.Helper()
	ws := New(filepath.Join(t.TempDir(), "ws"))
	if err := ws.Create(context.Background(), git); err != nil {
		t.Fatal(err)
	}
	return ws
}

func comp(name string, requested bool) Component {
	return Component{
		Interface:   "http://feeds/" + name + ".xml",
		DisplayName: name,
		Name:        name,
		Repository:  "git://host/" + name + ".git",
		Revision:    "rev-" + name,
		Requested:   requested,
	}
}

func TestMaterialize(t *testing.T) {
	git := vcstest.New()
	ws := newWorkspace(t, git)
	var out bytes.Buffer
	m := NewMaterializer(git, 2, &out, nil)

	comps := []Component{comp("app", true), comp("zlib", false), comp("boost", false)}
	records, err := m.Materialize(context.Background(), ws, comps)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	for _, r := range records {
		if r.Status != StatusDone {
			t.Errorf("%s: status %s (%v)", r.Name, r.Status, r.Err)
		}
		if r.Head != r.Revision {
			t.Errorf("%s: head %s, want %s", r.Name, r.Head, r.Revision)
		}
		if got := git.Remote(r.Dir, "origin"); got != r.Repository {
			t.Errorf("%s: origin = %s", r.Name, got)
		}
	}
	if want := filepath.Join(ws.Root, "app"); records[0].Dir != want {
		t.Errorf("requested dir = %s, want %s", records[0].Dir, want)
	}
	if want := filepath.Join(ws.Root, ".dependencies", "zlib"); records[1].Dir != want {
		t.Errorf("dependency dir = %s, want %s", records[1].Dir, want)
	}

	var registered []string
	for _, c := range git.CallsFor(ws.Root) {
		if c.Op == "submodule-add" {
			registered = append(registered, c.Args[1])
		}
	}
	if want := []string{"app", ".dependencies/zlib", ".dependencies/boost"}; !reflect.DeepEqual(registered, want) {
		t.Errorf("submodules = %v, want %v", registered, want)
	}

	for _, c := range records {
		var ops []string
		for _, call := range git.CallsFor(c.Dir) {
			ops = append(ops, call.Op)
		}
		if want := []string{"init", "remote-add", "fetch", "checkout", "head"}; !reflect.DeepEqual(ops, want) {
			t.Errorf("%s: ops = %v, want %v", c.Name, ops, want)
		}
	}

	text := out.String()
	for _, want := range []string{"    app\n", "Waiting for submodules...\n", "  zlib: done.\n", "done.\n"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "    boost") > strings.Index(text, "Waiting") {
		t.Error("all components must be announced before waiting")
	}
}

// fetchOrder returns a delay function under which the fetch of the
// component ranked first by order finishes first.
func fetchOrder(order []int, names []string) func(dir string) time.Duration {
	rank := make(map[string]int, len(names))
	for pos, i := range order {
		rank[names[i]] = pos
	}
	return func(dir string) time.Duration {
		return time.Duration(rank[filepath.Base(dir)]+1) * 3 * time.Millisecond
	}
}

func TestMaterializeCompletionOrder(t *testing.T) {
	const workers = 3
	var names []string
	var comps []Component
	for i := range 12 {
		name := fmt.Sprintf("lib%02d", i)
		names = append(names, name)
		comps = append(comps, comp(name, i == 0))
	}
	forward := make([]int, len(names))
	for i := range forward {
		forward[i] = i
	}
	reversed := slices.Clone(forward)
	slices.Reverse(reversed)

	tests := []struct {
		name  string
		order []int
	}{
		{"scheduling order", forward},
		{"reversed", reversed},
		{"shuffled", rand.New(rand.NewPCG(1, 2)).Perm(len(names))},
	}

	type outcome struct {
		RelPath string
		Head    string
		Status  Status
	}
	var want []outcome
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			git := vcstest.New()
			git.FetchDelay = fetchOrder(tt.order, names)
			ws := newWorkspace(t, git)
			var out bytes.Buffer

			records, err := NewMaterializer(git, workers, &out, nil).Materialize(context.Background(), ws, comps)
			if err != nil {
				t.Fatalf("Materialize: %v", err)
			}
			var got []outcome
			for _, r := range records {
				got = append(got, outcome{r.RelPath(), r.Head, r.Status})
			}
			if want == nil {
				want = got
			} else if !reflect.DeepEqual(got, want) {
				t.Errorf("records =\n%v\nwant\n%v", got, want)
			}
			for _, o := range got {
				if o.Status != StatusDone || o.Head != "rev-"+path.Base(o.RelPath) {
					t.Errorf("%s: %s at %q", o.RelPath, o.Status, o.Head)
				}
			}
			if n := strings.Count(out.String(), ": done.\n"); n != len(comps) {
				t.Errorf("done lines = %d, want %d", n, len(comps))
			}

			peak := git.PeakFetches()
			if peak > workers {
				t.Errorf("peak concurrent fetches = %d, exceeds %d workers", peak, workers)
			}
			if peak < 2 {
				t.Errorf("peak concurrent fetches = %d, fetches did not overlap", peak)
			}
		})
	}
}

func TestMaterializeFailureFinalizesAll(t *testing.T) {
	git := vcstest.New()
	boom := stderrors.New("connection reset")
	git.Fail = map[string]error{"fetch:zlib": boom}
	ws := newWorkspace(t, git)

	records, err := NewMaterializer(git, 1, nil, nil).Materialize(context.Background(), ws,
		[]Component{comp("zlib", false), comp("boost", false)})
	if !errors.Is(err, errors.ErrCodeMaterialization) || !stderrors.Is(err, boom) {
		t.Fatalf("err = %v, want MATERIALIZATION_FAILED wrapping the fetch error", err)
	}
	if records[0].Status != StatusFailed {
		t.Errorf("zlib status = %s", records[0].Status)
	}
	if records[1].Status != StatusDone {
		t.Errorf("boost status = %s, siblings must complete", records[1].Status)
	}
}

func TestMaterializeCollision(t *testing.T) {
	git := vcstest.New()
	ws := newWorkspace(t, git)
	a := comp("zlib", false)
	b := comp("zlib", false)
	b.Interface = "http://mirror/zlib.xml"

	records, err := NewMaterializer(git, 4, nil, nil).Materialize(context.Background(), ws, []Component{a, b})
	if !errors.Is(err, errors.ErrCodeMaterialization) || !strings.Contains(err.Error(), "collides") {
		t.Fatalf("err = %v, want collision", err)
	}
	if records[0].Status != StatusDone || records[1].Status != StatusFailed {
		t.Errorf("statuses = %s, %s", records[0].Status, records[1].Status)
	}
}

func TestMaterializeMissingRevision(t *testing.T) {
	git := vcstest.New()
	ws := newWorkspace(t, git)
	c := comp("zlib", false)
	c.Revision = ""

	_, err := NewMaterializer(git, 1, nil, nil).Materialize(context.Background(), ws, []Component{c})
	if !errors.Is(err, errors.ErrCodeMaterialization) {
		t.Errorf("err = %v", err)
	}
	if git.Count("checkout") != 0 {
		t.Error("checkout must not run without a revision")
	}
}

func TestMaterializeNothing(t *testing.T) {
	git := vcstest.New()
	ws := newWorkspace(t, git)
	var out bytes.Buffer
	records, err := NewMaterializer(git, 1, &out, nil).Materialize(context.Background(), ws, nil)
	if err != nil || len(records) != 0 || out.Len() != 0 {
		t.Errorf("records=%v err=%v out=%q", records, err, out.String())
	}
}

func TestCommit(t *testing.T) {
	git := vcstest.New()
	ws := newWorkspace(t, git)
	if err := ws.Commit(context.Background(), git); err != nil {
		t.Fatal(err)
	}
	calls := git.CallsFor(ws.Root)
	last := calls[len(calls)-1]
	if last.Op != "commit" || last.Args[0] != CommitMessage {
		t.Errorf("last call = %v", last)
	}
	if calls[len(calls)-2].Op != "add" {
		t.Errorf("commit must follow add, got %v", calls)
	}
}
