package resolve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	cperrors "github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/observability"
)

// Node is one artifact in a dependency graph.
type Node struct {
	// Coordinate has a concrete version once resolved. Its exclusions are
	// the set inherited by the node's subtree.
	Coordinate maven.Coordinate
	// Declared is the dependency as written by the importer.
	Declared maven.Dependency
	// Scope is the effective scope.
	Scope    maven.Scope
	Depth    int
	Parent   *Node
	Children []*Node
	// Path is the local file, set for artifacts on the classpath.
	Path string
	Err  error

	// edges point at the winners of every dependency n declares, including
	// those placed elsewhere in the tree.
	edges []*Node
}

// Deps returns the nodes n depends on, including winners placed elsewhere in
// the tree.
func (n *Node) Deps() []*Node { return slices.Clone(n.edges) }

// excludes reports whether d is excluded from n's subtree.
func (n *Node) excludes(d maven.Dependency) bool {
	return n.Coordinate.Excludes(d.GroupID, d.ArtifactID)
}

// reaches reports whether n or one of its ancestors has the key k.
func (n *Node) reaches(k maven.Key) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur.Coordinate.Key() == k {
			return true
		}
	}
	return false
}

// Graph is a conflict-resolved dependency graph. Every key appears once.
type Graph struct {
	Roots []*Node

	order   []*Node // winners in breadth-first order
	winners map[maven.Key]*Node
	seen    map[maven.Key][]*Node // every occurrence, winners included
}

func newGraph() *Graph {
	return &Graph{winners: make(map[maven.Key]*Node), seen: make(map[maven.Key][]*Node)}
}

// claim records an occurrence and reports whether it wins its key.
func (g *Graph) claim(n *Node) bool {
	k := n.Coordinate.Key()
	g.seen[k] = append(g.seen[k], n)
	if _, ok := g.winners[k]; ok {
		return false
	}
	g.winners[k] = n
	g.order = append(g.order, n)
	return true
}

// Nodes returns every node in breadth-first order.
func (g *Graph) Nodes() []*Node { return slices.Clone(g.order) }

// Lookup returns the node that won key k.
func (g *Graph) Lookup(k maven.Key) (*Node, bool) {
	n, ok := g.winners[k]
	return n, ok
}

// Files returns the classpath: every resolved file in depth-first order,
// without duplicates.
func (g *Graph) Files() []string {
	var out []string
	seen := make(map[string]bool)
	for _, root := range g.Roots {
		walk(root, func(n *Node) {
			if n.Path != "" && !seen[n.Path] {
				seen[n.Path] = true
				out = append(out, n.Path)
			}
		})
	}
	return out
}

// ByRoot maps each root, as declared, to the files placed under it in the
// tree. A dependency shared between roots belongs to the first root that
// reached it, the same placement Print shows.
func (g *Graph) ByRoot() map[string][]string {
	out := make(map[string][]string, len(g.Roots))
	for _, root := range g.Roots {
		var files []string
		walk(root, func(n *Node) {
			if n.Path != "" && !slices.Contains(files, n.Path) {
				files = append(files, n.Path)
			}
		})
		out[root.Declared.String()] = files
	}
	return out
}

// Print writes the tree, one "groupId:artifactId:version[:classifier]" line
// per node, indented two spaces per level.
func (g *Graph) Print(w io.Writer) error {
	var err error
	for _, root := range g.Roots {
		walk(root, func(n *Node) {
			if err == nil {
				_, err = fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", n.Depth), n.Coordinate.Display())
			}
		})
	}
	return err
}

// Err joins the errors of every failed node.
func (g *Graph) Err() error {
	var errs []error
	for _, n := range g.order {
		if n.Err != nil {
			errs = append(errs, n.Err)
		}
	}
	return errors.Join(errs...)
}

func walk(n *Node, fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		walk(c, fn)
	}
}

// Resolve expands deps into a graph and fetches every artifact on the
// classpath. The graph is returned even when some artifacts failed; the
// error then joins the failures.
func (r *Resolver) Resolve(ctx context.Context, deps []maven.Dependency) (*Graph, error) {
	start := time.Now()
	hooks := observability.Resolve()
	hooks.OnResolveStart(ctx, r.id, len(deps))

	g, err := r.collect(ctx, deps)
	if err == nil {
		err = r.materialize(ctx, g)
	}

	artifacts := 0
	if g != nil {
		artifacts = len(g.Files())
	}
	hooks.OnResolveComplete(ctx, r.id, artifacts, time.Since(start), err)
	if err != nil {
		r.logger.Debug("resolution failed", "roots", len(deps), "err", err)
	} else {
		r.logger.Debug("resolution complete", "roots", len(deps), "artifacts", artifacts, "duration", time.Since(start))
	}
	return g, err
}

// ResolveFiles resolves deps and returns the classpath.
func (r *Resolver) ResolveFiles(ctx context.Context, deps []maven.Dependency) ([]string, error) {
	g, err := r.Resolve(ctx, deps)
	if err != nil {
		return nil, err
	}
	return g.Files(), nil
}

// ResolveDependency returns the files of a single coordinate string and its
// dependencies. The overlays get the first chance to supply them.
func (r *Resolver) ResolveDependency(ctx context.Context, coords, typ string) ([]string, error) {
	if len(r.opts.Overlays) > 0 {
		files, err := r.opts.Overlays.ResolveDependency(ctx, coords, typ)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			return files, nil
		}
	}
	d, err := maven.ParseDependency(coords, typ)
	if err != nil {
		return nil, err
	}
	return r.ResolveFiles(ctx, []maven.Dependency{d})
}

// collect builds the graph without fetching artifacts other than
// descriptors.
func (r *Resolver) collect(ctx context.Context, deps []maven.Dependency) (*Graph, error) {
	g := newGraph()
	var level []*Node
	for _, d := range deps {
		scope := d.Scope
		if scope == "" {
			scope = maven.ScopeCompile
		}
		n := &Node{Coordinate: d.Coordinate, Declared: d, Scope: scope}
		if g.claim(n) {
			g.Roots = append(g.Roots, n)
			level = append(level, n)
		}
	}

	for len(level) > 0 {
		children := make([][]maven.Dependency, len(level))
		eg := new(errgroup.Group)
		eg.SetLimit(r.opts.Concurrency)
		for i, n := range level {
			eg.Go(func() error {
				children[i], n.Err = r.expand(ctx, n)
				return nil
			})
		}
		eg.Wait()
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var next []*Node
		for i, n := range level {
			for _, d := range children[i] {
				if n.excludes(d) {
					r.logger.Debug("excluded", "coord", d.Display(), "by", n.Coordinate.Display())
					continue
				}
				if n.reaches(d.Key()) {
					r.logger.Debug("dependency cycle cut", "coord", d.Display(), "from", n.Coordinate.Display())
					continue
				}
				child := &Node{
					Coordinate: d.Coordinate.WithExclusions(n.Coordinate.Exclusions...),
					Declared:   d,
					Scope:      d.Scope.Derive(n.Scope),
					Depth:      n.Depth + 1,
					Parent:     n,
				}
				if !g.claim(child) {
					n.edges = append(n.edges, g.winners[child.Coordinate.Key()])
					continue
				}
				n.edges = append(n.edges, child)
				n.Children = append(n.Children, child)
				next = append(next, child)
			}
		}
		level = next
	}

	g.widenScopes()
	return g, nil
}

// expand resolves n's version and returns its declared dependencies. A
// missing descriptor leaves n without dependencies.
func (r *Resolver) expand(ctx context.Context, n *Node) ([]maven.Dependency, error) {
	c, err := r.ResolveVersion(ctx, n.Coordinate)
	if err != nil {
		return nil, err
	}
	n.Coordinate = c

	m, err := r.LoadPOM(ctx, c)
	if cperrors.Is(err, cperrors.ErrCodeNotFound) {
		r.logger.Warn("descriptor missing, no dependency information available", "coord", c.Display())
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.Dependencies(ctx, maven.DefaultType)
}

// widenScopes gives every transitive winner the widest scope among its
// occurrences. Direct dependencies keep their declared scope.
func (g *Graph) widenScopes() {
	for changed := true; changed; {
		changed = false
		for _, w := range g.order {
			if w.Depth == 0 {
				continue
			}
			best := w.Scope
			for _, o := range g.seen[w.Coordinate.Key()] {
				if s := o.Declared.Scope.Derive(o.Parent.Scope); s.Wider(best) {
					best = s
				}
			}
			if best != w.Scope {
				w.Scope = best
				changed = true
			}
		}
	}
}

// materialize fetches every classpath artifact of g in parallel.
func (r *Resolver) materialize(ctx context.Context, g *Graph) error {
	eg := new(errgroup.Group)
	eg.SetLimit(r.opts.Concurrency)
	for _, n := range g.order {
		if n.Err != nil || !n.Scope.Classpath() {
			continue
		}
		eg.Go(func() error {
			n.Path, n.Err = r.artifact(ctx, n.Coordinate)
			return nil
		})
	}
	eg.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.Err()
}
