// Package selection holds solver results and merges them across
// requirements.
package selection

import (
	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/feed"
)

// Selection is the implementation chosen for one component.
type Selection struct {
	Interface string
	ID        string
	Version   string
	// Attrs carries the implementation metadata, including the resolved
	// revision.
	Attrs feed.Metadata
	// Requires lists the interfaces this implementation depends on.
	Requires []string
	// Placeholder is set when the solver picked a locally buildable
	// stand-in.
	Placeholder bool
}

// Revision returns the resolved version-control revision.
func (s *Selection) Revision() string { return s.Attrs.Revision() }

// FromImplementation records impl as the selection for its feed.
func FromImplementation(impl *feed.Implementation) *Selection {
	sel := &Selection{
		ID:          impl.ID,
		Version:     impl.Version.String(),
		Attrs:       impl.Metadata.Clone(),
		Placeholder: impl.IsPlaceholder(),
	}
	if impl.Feed != nil {
		sel.Interface = impl.Feed.URI
	}
	if rev := impl.Revision(); rev != "" && sel.Attrs.Revision() == "" {
		sel.Attrs.Set(feed.Namespace, feed.AttrRevision, rev)
	}
	for _, dep := range impl.Dependencies() {
		sel.Requires = append(sel.Requires, dep.Interface)
	}
	return sel
}

// Set maps component URIs to selections, remembering insertion order.
//
// The zero value is an empty set ready to use.
type Set struct {
	order []string
	byURI map[string]*Selection
}

// NewSet returns a set holding sels in order.
func NewSet(sels ...*Selection) *Set {
	s := &Set{}
	for _, sel := range sels {
		s.Put(sel)
	}
	return s
}

// Put inserts or overwrites the selection for sel.Interface.
func (s *Set) Put(sel *Selection) {
	if s.byURI == nil {
		s.byURI = make(map[string]*Selection)
	}
	if _, ok := s.byURI[sel.Interface]; !ok {
		s.order = append(s.order, sel.Interface)
	}
	s.byURI[sel.Interface] = sel
}

// Get returns the selection for uri.
func (s *Set) Get(uri string) (*Selection, bool) {
	sel, ok := s.byURI[uri]
	return sel, ok
}

// Len returns the number of selected components.
func (s *Set) Len() int { return len(s.order) }

// URIs returns the component URIs in insertion order.
func (s *Set) URIs() []string {
	return append([]string(nil), s.order...)
}

// All returns the selections in insertion order.
func (s *Set) All() []*Selection {
	out := make([]*Selection, 0, len(s.order))
	for _, uri := range s.order {
		out = append(out, s.byURI[uri])
	}
	return out
}

// Merge adds every selection of other to s. A component already present
// with a different version is a VERSION_CONFLICT; reconciling versions is
// not supported. On conflict s is left unchanged.
func (s *Set) Merge(other *Set) error {
	for _, sel := range other.All() {
		prev, ok := s.Get(sel.Interface)
		if ok && prev.Version != sel.Version {
			return errors.New(errors.ErrCodeVersionConflict,
				"%s: selected version %s conflicts with previously selected %s",
				sel.Interface, sel.Version, prev.Version)
		}
	}
	for _, sel := range other.All() {
		s.Put(sel)
	}
	return nil
}
