// Package render draws resolved dependency graphs as node-link diagrams.
//
// [ToDOT] produces Graphviz DOT source, one box per artifact and one arrow
// per declared dependency, including edges to artifacts that won a version
// conflict elsewhere in the tree. [RenderSVG] lays the DOT out in-process
// with [github.com/goccy/go-graphviz]:
//
//	dot := render.ToDOT(g, render.Options{Detailed: true})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Artifacts that failed to resolve are filled red; artifacts outside the
// runtime classpath (provided, test, system) are drawn dashed.
package render
