package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/maven"
	"github.com/matzehuels/classpath/pkg/resolve"
)

// rootOpts select what to resolve: coordinates or a project descriptor.
type rootOpts struct {
	pom string
	typ string
}

func (o *rootOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.pom, "pom", "p", "", "resolve the dependencies of a pom.xml")
	cmd.Flags().StringVarP(&o.typ, "type", "t", maven.DefaultType, "artifact type of the coordinates")
}

// openRoots opens a session and parses the root dependencies.
func (c *CLI) openRoots(ctx context.Context, o *rootOpts, args []string) (*session, []maven.Dependency, error) {
	if o.pom != "" {
		if len(args) > 0 {
			return nil, nil, errors.New(errors.ErrCodeInvalidInput, "use either coordinates or --pom, not both")
		}
		sess, m, err := c.openProject(ctx, o.pom)
		if err != nil {
			return nil, nil, err
		}
		deps, err := m.Dependencies(ctx, maven.DefaultType)
		if err != nil {
			sess.Close()
			return nil, nil, err
		}
		name, version := m.AppID()
		loggerFromContext(ctx).Debug("project", "name", name, "version", version, "dependencies", len(deps))
		return sess, deps, nil
	}

	if len(args) == 0 {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "no coordinates given (or use --pom)")
	}
	deps, err := maven.ParseDependencies(args, o.typ)
	if err != nil {
		return nil, nil, err
	}
	sess, err := c.newSession(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	return sess, deps, nil
}

// resolveGraph resolves deps with a spinner on stderr and reports failed
// artifacts. The graph is returned even when some artifacts failed.
func (c *CLI) resolveGraph(cmd *cobra.Command, sess *session, deps []maven.Dependency) (*resolve.Graph, error) {
	ctx := cmd.Context()
	var spin *Spinner
	if !c.flags.verbose {
		spin = newSpinnerWithContext(ctx, stderr(cmd), fmt.Sprintf("Resolving %d dependencies...", len(deps)))
		spin.Start()
	}
	prog := newProgress(loggerFromContext(ctx), "resolve")

	g, err := sess.Resolve(ctx, deps)
	if spin != nil {
		spin.Stop()
		if spin.Cancelled() {
			printWarning(stderr(cmd), "Interrupted")
		}
	}
	if g == nil {
		prog.fail(err)
		return nil, err
	}
	failed := reportFailures(stderr(cmd), g)
	if err != nil {
		prog.fail(err)
	}
	switch {
	case spin != nil:
		printStats(stderr(cmd), len(g.Files()), failed, prog.elapsed())
	case err == nil:
		prog.done("resolved", "roots", len(deps), "artifacts", len(g.Files()))
	}
	return g, err
}

// reportFailures prints one line per artifact that could not be resolved
// and returns their number.
func reportFailures(w io.Writer, g *resolve.Graph) int {
	failed := 0
	for _, n := range g.Nodes() {
		if n.Err != nil {
			failed++
			printError(w, "%s: %s", n.Coordinate.Display(), errors.UserMessage(n.Err))
		}
	}
	return failed
}

// =============================================================================
// resolve
// =============================================================================

type resolveOpts struct {
	rootOpts
	output    string
	separator string
	byRoot    bool
	embedded  string
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	opts := resolveOpts{separator: string(os.PathListSeparator)}

	cmd := &cobra.Command{
		Use:   "resolve [coordinates...]",
		Short: "Print the classpath of coordinates or a pom.xml",
		Long: `Resolve coordinates of the form groupId:artifactId[:version][:classifier]
and their transitive dependencies, download every artifact into the local
repository and print the resulting classpath.

Versions may be exact, ranges such as [1.0,2.0), or RELEASE / LATEST.
Exclusions follow in parentheses: g:a:1.0(org.unwanted:lib,org.other:*).

Examples:
  classpath resolve com.google.guava:guava:33.0.0-jre
  classpath resolve 'org.slf4j:slf4j-api:[2.0,)' -r central
  classpath resolve --pom pom.xml --by-root`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, &opts, args)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the classpath to a file")
	cmd.Flags().StringVarP(&opts.separator, "separator", "s", opts.separator, "classpath separator")
	cmd.Flags().BoolVar(&opts.byRoot, "by-root", false, "list the files placed under each root")
	cmd.Flags().StringVar(&opts.embedded, "embedded", "", "directory of embedded artifacts consulted before repositories")
	return cmd
}

func (c *CLI) runResolve(cmd *cobra.Command, opts *resolveOpts, args []string) error {
	ctx := cmd.Context()
	if opts.embedded != "" {
		return c.runResolveEmbedded(cmd, opts, args)
	}

	sess, deps, err := c.openRoots(ctx, &opts.rootOpts, args)
	if err != nil {
		return err
	}
	defer sess.Close()

	g, err := c.resolveGraph(cmd, sess, deps)
	if err != nil {
		return err
	}

	var b strings.Builder
	if opts.byRoot {
		byRoot := g.ByRoot()
		for _, root := range g.Roots {
			key := root.Declared.String()
			fmt.Fprintln(&b, key)
			for _, f := range byRoot[key] {
				fmt.Fprintln(&b, "  "+f)
			}
		}
	} else {
		fmt.Fprintln(&b, strings.Join(g.Files(), opts.separator))
	}
	return writeOutput(stdout(cmd), opts.output, []byte(b.String()))
}

// runResolveEmbedded resolves each coordinate separately, letting the
// embedded directory supply artifacts ahead of the repositories.
func (c *CLI) runResolveEmbedded(cmd *cobra.Command, opts *resolveOpts, args []string) error {
	ctx := cmd.Context()
	if opts.pom != "" || len(args) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "--embedded needs coordinates")
	}
	sess, err := c.newSession(ctx, nil, resolve.NewDirOverlay(opts.embedded))
	if err != nil {
		return err
	}
	defer sess.Close()

	var files []string
	seen := make(map[string]bool)
	for _, coords := range args {
		fs, err := sess.ResolveDependency(ctx, coords, opts.typ)
		if err != nil {
			return err
		}
		for _, f := range fs {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}
	return writeOutput(stdout(cmd), opts.output, []byte(strings.Join(files, opts.separator)+"\n"))
}

// =============================================================================
// tree
// =============================================================================

type treeOpts struct {
	rootOpts
	interactive bool
}

// treeCommand creates the tree command.
func (c *CLI) treeCommand() *cobra.Command {
	var opts treeOpts

	cmd := &cobra.Command{
		Use:   "tree [coordinates...]",
		Short: "Print the dependency tree",
		Long: `Resolve coordinates or a pom.xml and print the dependency tree, one
artifact per line, indented by depth. Artifacts that lost a version conflict
appear only under the winner's position.

With --interactive the tree opens in a browser where subtrees can be
folded and artifact details inspected.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, deps, err := c.openRoots(ctx, &opts.rootOpts, args)
			if err != nil {
				return err
			}
			defer sess.Close()

			g, err := c.resolveGraph(cmd, sess, deps)
			if g == nil {
				return err
			}
			if opts.interactive {
				p := tea.NewProgram(newTreeModel(g), tea.WithContext(ctx), tea.WithOutput(stdout(cmd)))
				if _, perr := p.Run(); perr != nil {
					return perr
				}
				return err
			}
			if perr := g.Print(stdout(cmd)); perr != nil {
				return perr
			}
			return err
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "browse the tree interactively")
	return cmd
}

// =============================================================================
// latest
// =============================================================================

// latestCommand creates the latest command.
func (c *CLI) latestCommand() *cobra.Command {
	var typ string

	cmd := &cobra.Command{
		Use:   "latest <coordinates>...",
		Short: "Print the newest version matching each coordinate",
		Long: `Print groupId:artifactId:version[:classifier] for the newest version of
each coordinate. A missing version means any version; ranges restrict the
candidates. Snapshots are considered only with --allow-snapshots.

Examples:
  classpath latest junit:junit
  classpath latest 'org.slf4j:slf4j-api:[1.7,2.0)'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, err := c.newSession(ctx, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			for _, coords := range args {
				v, err := sess.LatestVersion(ctx, coords, typ)
				if err != nil {
					return err
				}
				fmt.Fprintln(stdout(cmd), v)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", maven.DefaultType, "artifact type")
	return cmd
}
