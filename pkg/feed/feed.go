// Package feed is the in-memory model of 0install component feeds.
//
// A [Feed] is identified by its URI and owns the set of known
// [Implementation] values, keyed by id. Feeds are loaded by the feed cache
// and are otherwise read-only; the only mutation the bootstrap pipeline makes
// is registering placeholder implementations (see package augment).
//
// Feeds carry extra metadata in the [Namespace] XML namespace: a feed-level
// vcs-repository element naming the source repository, and a per
// implementation vcs-revision attribute naming the commit to check out.
package feed

import (
	"slices"
	"strings"

	"github.com/matzehuels/stackseed/pkg/arch"
	"github.com/matzehuels/stackseed/pkg/errors"
)

// XML namespaces and names understood by the model.
const (
	InterfaceNamespace = "http://zero-install.sourceforge.net/2004/injector/interface"
	Namespace          = "http://ryppl.org/2012"

	ElemRepository = "vcs-repository"
	AttrRevision   = "vcs-revision"
)

// PlaceholderPrefix is prepended to the id of the implementation a
// placeholder stands in for.
const PlaceholderPrefix = "stackseed="

// DistributionPrefix marks synthetic feeds describing distribution packages.
const DistributionPrefix = "distribution:"

// Feed is a component manifest.
type Feed struct {
	URI     string
	Name    string
	Summary string

	// Implementations maps implementation id to implementation.
	Implementations map[string]*Implementation

	// Elements are the feed-level elements in foreign namespaces.
	Elements []Element
}

// Element is a feed-level metadata element.
type Element struct {
	Namespace string
	Name      string
	Attrs     Metadata
}

// New creates an empty feed.
func New(uri string) *Feed {
	return &Feed{URI: uri, Implementations: make(map[string]*Implementation)}
}

// IsDistribution reports whether uri names a synthetic distribution feed.
func IsDistribution(uri string) bool {
	return strings.HasPrefix(uri, DistributionPrefix)
}

// Add registers impl on the feed, replacing any implementation with the
// same id.
func (f *Feed) Add(impl *Implementation) {
	if f.Implementations == nil {
		f.Implementations = make(map[string]*Implementation)
	}
	impl.Feed = f
	f.Implementations[impl.ID] = impl
}

// Implementation returns the implementation with the given id.
func (f *Feed) Implementation(id string) (*Implementation, bool) {
	impl, ok := f.Implementations[id]
	return impl, ok
}

// Sorted returns the implementations ordered by id.
func (f *Feed) Sorted() []*Implementation {
	out := make([]*Implementation, 0, len(f.Implementations))
	for _, impl := range f.Implementations {
		out = append(out, impl)
	}
	slices.SortFunc(out, func(a, b *Implementation) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// DisplayName returns the feed's name, or its URI when unnamed.
func (f *Feed) DisplayName() string {
	if f.Name != "" {
		return f.Name
	}
	return f.URI
}

// Repository is a declared source-control repository.
type Repository struct {
	Href string
}

// Repositories returns every vcs-repository element of the feed.
func (f *Feed) Repositories() []Repository {
	var out []Repository
	for _, e := range f.Elements {
		if e.Namespace == Namespace && e.Name == ElemRepository {
			out = append(out, Repository{Href: e.Attrs.Href()})
		}
	}
	return out
}

// Repository returns the feed's single declared repository. ok is false when
// the feed declares none. Declaring more than one is an internal
// consistency error.
func (f *Feed) Repository() (repo Repository, ok bool, err error) {
	repos := f.Repositories()
	switch len(repos) {
	case 0:
		return Repository{}, false, nil
	case 1:
		return repos[0], true, nil
	}
	return Repository{}, false, errors.New(errors.ErrCodeInternal,
		"feed %s declares %d repositories, expected at most one", f.URI, len(repos))
}

// WorkingCopyName derives a directory name from the repository URL: the
// final path segment with any trailing ".suffix" removed.
func (r Repository) WorkingCopyName() string {
	href := strings.TrimRight(r.Href, "/")
	name := href
	if i := strings.LastIndexAny(href, "/:"); i >= 0 {
		name = href[i+1:]
	}
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return name
}

// Implementation is one concrete, versioned variant of a component.
type Implementation struct {
	Feed *Feed

	ID        string
	Version   Version
	Arch      string
	Stability string

	// LocalPath is set for implementations that already exist on disk.
	LocalPath string
	// Downloadable is set when the feed lists a retrieval method.
	Downloadable bool

	Commands []string
	Requires []Dependency
	Metadata Metadata

	// origin is the implementation a placeholder was derived from.
	origin *Implementation
}

// NewPlaceholder derives the locally buildable stand-in for src. The result
// shares src's version, has a [PlaceholderID], the [arch.Missing]
// architecture and is always available. It is not registered on any feed.
func NewPlaceholder(src *Implementation) *Implementation {
	return &Implementation{
		ID:      PlaceholderID(src.ID),
		Version: src.Version,
		Arch:    arch.Missing.String(),
		origin:  src,
	}
}

// PlaceholderID returns the id of the placeholder derived from id.
func PlaceholderID(id string) string {
	return PlaceholderPrefix + id
}

// IsPlaceholder reports whether the implementation is a synthetic
// "build locally" stand-in.
func (i *Implementation) IsPlaceholder() bool { return i.origin != nil }

// Origin returns the implementation a placeholder was derived from, or nil.
func (i *Implementation) Origin() *Implementation { return i.origin }

// Available reports whether the implementation can be used without
// downloading anything. Placeholders are always available.
func (i *Implementation) Available() bool {
	return i.origin != nil || i.LocalPath != ""
}

// Architecture parses the implementation's declared architecture.
// Implementations without one run anywhere.
func (i *Implementation) Architecture() (arch.Arch, error) {
	return arch.Parse(i.Arch)
}

// HasCommand reports whether the implementation declares the named command.
// Placeholders answer for the implementation they stand in for.
func (i *Implementation) HasCommand(name string) bool {
	if i.origin != nil {
		return i.origin.HasCommand(name)
	}
	return slices.Contains(i.Commands, name)
}

// Dependencies returns the requirements of the implementation. A placeholder
// builds the same sources as its origin and so shares its dependencies.
func (i *Implementation) Dependencies() []Dependency {
	if i.origin != nil {
		return i.origin.Dependencies()
	}
	return i.Requires
}

// Revision returns the version-control revision to check out. Placeholders
// report the revision of the implementation they stand in for.
func (i *Implementation) Revision() string {
	if rev := i.Metadata.Revision(); rev != "" {
		return rev
	}
	if i.origin != nil {
		return i.origin.Revision()
	}
	return ""
}

// Dependency is a requirement on another feed.
type Dependency struct {
	Interface    string
	Restrictions []Restriction
}

// Allows reports whether v satisfies every restriction.
func (d Dependency) Allows(v Version) bool {
	for _, r := range d.Restrictions {
		if !r.Allows(v) {
			return false
		}
	}
	return true
}

// Restriction is a half-open version range [NotBefore, Before). Zero bounds
// are unbounded.
type Restriction struct {
	NotBefore Version
	Before    Version
}

// Allows reports whether v lies inside the range.
func (r Restriction) Allows(v Version) bool {
	if !r.NotBefore.IsZero() && Compare(v, r.NotBefore) < 0 {
		return false
	}
	if !r.Before.IsZero() && Compare(v, r.Before) >= 0 {
		return false
	}
	return true
}
