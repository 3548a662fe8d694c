package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/render"
)

const (
	formatDOT = "dot"
	formatSVG = "svg"
)

type graphOpts struct {
	rootOpts
	format   string
	output   string
	detailed bool
}

// graphCommand creates the graph command.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatDOT}

	cmd := &cobra.Command{
		Use:   "graph [coordinates...]",
		Short: "Export the dependency graph as DOT or SVG",
		Long: `Resolve coordinates or a pom.xml and export the dependency graph as a
node-link diagram. Every declared dependency becomes an arrow, including
those that point at an artifact placed elsewhere by conflict resolution.

Examples:
  classpath graph org.apache.kafka:kafka-clients:3.7.0 > kafka.dot
  classpath graph --pom pom.xml -f svg -o deps.svg --detailed`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != formatDOT && opts.format != formatSVG {
				return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want dot or svg)", opts.format)
			}
			ctx := cmd.Context()
			sess, deps, err := c.openRoots(ctx, &opts.rootOpts, args)
			if err != nil {
				return err
			}
			defer sess.Close()

			g, resolveErr := c.resolveGraph(cmd, sess, deps)
			if g == nil {
				return resolveErr
			}
			if resolveErr != nil {
				printWarning(stderr(cmd), "graph is incomplete")
			}

			dot := render.ToDOT(g, render.Options{Detailed: opts.detailed})
			data := []byte(dot)
			if opts.format == formatSVG {
				if data, err = render.RenderSVG(ctx, dot); err != nil {
					return err
				}
			}
			if err := writeOutput(stdout(cmd), opts.output, data); err != nil {
				return err
			}
			if opts.output != "" {
				printSuccess(stderr(cmd), "Wrote %s", opts.output)
			}
			return resolveErr
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: dot or svg")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "include scope, depth and file in labels")
	return cmd
}
