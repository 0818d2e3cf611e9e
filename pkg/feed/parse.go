package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/matzehuels/stackseed/pkg/errors"
)

// node is a namespace-resolved XML element.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
	Text     string     `xml:",chardata"`
}

func (n *node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Space == "" && a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func (n *node) isCore(local string) bool {
	return n.XMLName.Local == local && (n.XMLName.Space == InterfaceNamespace || n.XMLName.Space == "")
}

// foreignAttrs returns the namespaced attributes of n, skipping namespace
// declarations.
func (n *node) foreignAttrs() []xml.Attr {
	var out []xml.Attr
	for _, a := range n.Attrs {
		if a.Name.Space == "" || a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// scope is the set of values a <group> passes down to its children.
type scope struct {
	version   string
	arch      string
	stability string
	localPath string
	commands  []string
	requires  []Dependency
	metadata  Metadata
}

func (s scope) child(n *node) (scope, error) {
	c := scope{
		version:   s.version,
		arch:      s.arch,
		stability: s.stability,
		localPath: s.localPath,
		commands:  append([]string(nil), s.commands...),
		requires:  append([]Dependency(nil), s.requires...),
		metadata:  s.metadata.Clone(),
	}
	if v := n.attr("version"); v != "" {
		c.version = v
	}
	if v := n.attr("arch"); v != "" {
		c.arch = v
	}
	if v := n.attr("stability"); v != "" {
		c.stability = v
	}
	if v := n.attr("local-path"); v != "" {
		c.localPath = v
	}
	for _, a := range n.foreignAttrs() {
		c.metadata.Set(a.Name.Space, a.Name.Local, a.Value)
	}
	for i := range n.Children {
		ch := &n.Children[i]
		switch {
		case ch.isCore("requires"), ch.isCore("runner"):
			dep, err := parseDependency(ch)
			if err != nil {
				return scope{}, err
			}
			c.requires = append(c.requires, dep)
		case ch.isCore("command"):
			if name := ch.attr("name"); name != "" {
				c.commands = append(c.commands, name)
			}
		}
	}
	return c, nil
}

// Parse reads a 0install feed document. uri is the identity the feed is
// registered under; for local feeds, relative local-path attributes are
// resolved against its directory.
func Parse(uri string, r io.Reader) (*Feed, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidFeed, err, "parse feed %s", uri)
	}
	if !root.isCore("interface") && !root.isCore("feed") {
		return nil, errors.New(errors.ErrCodeInvalidFeed,
			"feed %s: unexpected root element <%s>", uri, root.XMLName.Local)
	}

	f := New(uri)
	for i := range root.Children {
		ch := &root.Children[i]
		switch {
		case ch.isCore("name"):
			f.Name = strings.TrimSpace(ch.Text)
		case ch.isCore("summary"):
			f.Summary = strings.TrimSpace(ch.Text)
		case ch.XMLName.Space != "" && ch.XMLName.Space != InterfaceNamespace:
			e := Element{Namespace: ch.XMLName.Space, Name: ch.XMLName.Local}
			for _, a := range ch.Attrs {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				e.Attrs.Set(a.Name.Space, a.Name.Local, a.Value)
			}
			f.Elements = append(f.Elements, e)
		}
	}

	base := ""
	if !strings.Contains(uri, "://") {
		base = filepath.Dir(uri)
	}
	if err := walkGroup(f, &root, scope{}, base); err != nil {
		return nil, err
	}
	return f, nil
}

func walkGroup(f *Feed, n *node, parent scope, base string) error {
	for i := range n.Children {
		ch := &n.Children[i]
		switch {
		case ch.isCore("group"):
			s, err := parent.child(ch)
			if err != nil {
				return err
			}
			if err := walkGroup(f, ch, s, base); err != nil {
				return err
			}
		case ch.isCore("implementation"):
			impl, err := parseImplementation(ch, parent, base)
			if err != nil {
				return errors.Wrap(errors.ErrCodeInvalidFeed, err, "feed %s", f.URI)
			}
			if _, dup := f.Implementations[impl.ID]; dup {
				return errors.New(errors.ErrCodeInvalidFeed,
					"feed %s: duplicate implementation id %q", f.URI, impl.ID)
			}
			f.Add(impl)
		}
	}
	return nil
}

func parseImplementation(n *node, parent scope, base string) (*Implementation, error) {
	s, err := parent.child(n)
	if err != nil {
		return nil, err
	}
	id := n.attr("id")
	if id == "" {
		return nil, fmt.Errorf("implementation without id")
	}
	if s.version == "" {
		return nil, fmt.Errorf("implementation %q has no version", id)
	}
	impl := &Implementation{
		ID:        id,
		Version:   ParseVersion(s.version),
		Arch:      s.arch,
		Stability: s.stability,
		Commands:  s.commands,
		Requires:  s.requires,
		Metadata:  s.metadata,
	}
	if _, err := impl.Architecture(); err != nil {
		return nil, err
	}

	localPath := s.localPath
	if localPath == "" && (strings.HasPrefix(id, "/") || strings.HasPrefix(id, ".")) {
		localPath = id
	}
	if localPath != "" && base != "" && !filepath.IsAbs(localPath) {
		localPath = filepath.Join(base, localPath)
	}
	impl.LocalPath = localPath

	for i := range n.Children {
		ch := &n.Children[i]
		if ch.isCore("archive") || ch.isCore("recipe") || ch.isCore("file") {
			impl.Downloadable = true
		}
	}
	return impl, nil
}

func parseDependency(n *node) (Dependency, error) {
	dep := Dependency{Interface: n.attr("interface")}
	if dep.Interface == "" {
		return Dependency{}, errors.New(errors.ErrCodeInvalidFeed, "<%s> without interface", n.XMLName.Local)
	}
	if expr := n.attr("version"); expr != "" {
		r, err := ParseRange(expr)
		if err != nil {
			return Dependency{}, err
		}
		dep.Restrictions = append(dep.Restrictions, r)
	}
	for i := range n.Children {
		ch := &n.Children[i]
		if !ch.isCore("version") {
			continue
		}
		dep.Restrictions = append(dep.Restrictions, Restriction{
			NotBefore: ParseVersion(ch.attr("not-before")),
			Before:    ParseVersion(ch.attr("before")),
		})
	}
	return dep, nil
}

// ParseRange parses a version range expression of the form "A..!B", where
// either bound may be omitted. A bare version "A" means at least A.
func ParseRange(expr string) (Restriction, error) {
	expr = strings.TrimSpace(expr)
	lo, hi, ranged := strings.Cut(expr, "..")
	if !ranged {
		return Restriction{NotBefore: ParseVersion(expr)}, nil
	}
	r := Restriction{NotBefore: ParseVersion(lo)}
	if hi != "" {
		if !strings.HasPrefix(hi, "!") {
			return Restriction{}, errors.New(errors.ErrCodeInvalidFeed,
				"invalid version range %q: upper bound must be exclusive (..!V)", expr)
		}
		r.Before = ParseVersion(hi[1:])
	}
	return r, nil
}
