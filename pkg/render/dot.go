package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/classpath/pkg/resolve"
)

// Options configures diagram generation.
type Options struct {
	// Detailed adds scope, depth and file name to node labels.
	Detailed bool
}

// ToDOT converts a resolved graph to Graphviz DOT source.
func ToDOT(g *resolve.Graph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	nodes := g.Nodes()
	for _, n := range nodes {
		fmt.Fprintf(&buf, "  %q [%s];\n", id(n), strings.Join(fmtAttrs(n, fmtLabel(n, opts.Detailed)), ", "))
	}

	buf.WriteString("\n")
	for _, n := range nodes {
		for _, d := range n.Deps() {
			fmt.Fprintf(&buf, "  %q -> %q;\n", id(n), id(d))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func id(n *resolve.Node) string { return n.Coordinate.Key().String() }

func fmtLabel(n *resolve.Node, detailed bool) string {
	label := n.Coordinate.Display()
	if !detailed {
		return label
	}
	parts := []string{
		fmt.Sprintf("scope: %s", n.Scope),
		fmt.Sprintf("depth: %d", n.Depth),
	}
	if n.Path != "" {
		parts = append(parts, n.Coordinate.FileName())
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func fmtAttrs(n *resolve.Node, label string) []string {
	attrs := []string{fmt.Sprintf("label=%q", label)}
	switch {
	case n.Err != nil:
		attrs = append(attrs, "fillcolor=\"#f4cccc\"", "color=\"#cc0000\"")
	case !n.Scope.Classpath():
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	return attrs
}

// RenderSVG lays out DOT source and returns SVG.
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

// normalizeViewBox replaces graphviz's point-based svg header with one that
// scales in a browser.
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

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}
