// Package depgraph renders the dependency graph of a selection set.
//
// Requested components are drawn as bold boxes, placeholder selections
// with dashed outlines. Edges point from a component to the components
// its selected implementation requires.
package depgraph

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/stackseed/pkg/errors"
	"github.com/matzehuels/stackseed/pkg/selection"
)

// Output formats.
const (
	FormatDOT = "dot"
	FormatSVG = "svg"
)

// Node is one selected component.
type Node struct {
	ID          string
	Label       string
	Version     string
	Requested   bool
	Placeholder bool
}

// Edge is a requirement between two selected components.
type Edge struct {
	From, To string
}

// Graph is the selection dependency graph.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Build creates the graph for sels. Nodes keep selection order; requires
// pointing outside the set are dropped.
func Build(sels *selection.Set, requested []string) *Graph {
	req := make(map[string]bool, len(requested))
	for _, uri := range requested {
		req[uri] = true
	}
	g := &Graph{}
	for _, s := range sels.All() {
		g.Nodes = append(g.Nodes, Node{
			ID:          s.Interface,
			Label:       Label(s.Interface),
			Version:     s.Version,
			Requested:   req[s.Interface],
			Placeholder: s.Placeholder,
		})
		for _, dep := range s.Requires {
			if _, ok := sels.Get(dep); ok {
				g.Edges = append(g.Edges, Edge{From: s.Interface, To: dep})
			}
		}
	}
	return g
}

// Label returns a short display name for a feed URI: its last path element
// without the .xml suffix.
func Label(uri string) string {
	base := path.Base(strings.TrimRight(strings.ReplaceAll(uri, "\\", "/"), "/"))
	if base == "." || base == "/" {
		return uri
	}
	return strings.TrimSuffix(base, ".xml")
}

// ToDOT converts g to Graphviz DOT.
func ToDOT(g *Graph) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", n.ID, strings.Join(nodeAttrs(n), ", "))
	}

	buf.WriteString("\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeAttrs(n Node) []string {
	label := n.Label
	if n.Version != "" {
		label += "\n" + n.Version
	}
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Placeholder && n.Requested:
		attrs = append(attrs, "style=\"rounded,filled,dashed,bold\"", "fillcolor=lightgrey")
	case n.Placeholder:
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	case n.Requested:
		attrs = append(attrs, "style=\"rounded,filled,bold\"", "penwidth=2")
	}
	return attrs
}

// Render returns g in format.
func Render(ctx context.Context, g *Graph, format string) ([]byte, error) {
	dot := ToDOT(g)
	switch format {
	case FormatDOT, "":
		return []byte(dot), nil
	case FormatSVG:
		return RenderSVG(ctx, dot)
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "invalid format: %q (must be one of: dot, svg)", format)
	}
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// sized from its viewBox.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
