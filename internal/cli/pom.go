package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/maven"
)

type pomOpts struct {
	typ     string
	deps    bool
	managed bool
}

// pomCommand creates the pom command.
func (c *CLI) pomCommand() *cobra.Command {
	var opts pomOpts

	cmd := &cobra.Command{
		Use:   "pom [pom.xml]",
		Short: "Show a project descriptor",
		Long: `Show the identity, repositories, properties and dependencies of a
pom.xml. Parent descriptors are fetched as needed, so inherited group IDs,
versions and managed dependency versions are filled in.

With --deps the dependency coordinates are printed one per line, ready to be
passed to "classpath resolve".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "pom.xml"
			if len(args) == 1 {
				path = args[0]
			}
			ctx := cmd.Context()
			sess, m, err := c.openProject(ctx, path)
			if err != nil {
				return err
			}
			defer sess.Close()

			w := stdout(cmd)
			deps, err := m.DependencyStrings(ctx, opts.typ)
			if err != nil {
				return err
			}
			if opts.deps {
				for _, d := range deps {
					fmt.Fprintln(w, d)
				}
				return nil
			}
			if opts.managed {
				managed, err := m.ManagedDependencies(ctx)
				if err != nil {
					return err
				}
				for _, d := range managed {
					fmt.Fprintln(w, d)
				}
				return nil
			}

			name, version := m.AppID()
			fmt.Fprintln(w, StyleTitle.Render(name+" "+version))
			printKeyValue(w, "id", m.ID())
			if n := m.Name(); n != "" {
				printKeyValue(w, "name", n)
			}
			if p := m.ParentCoords(); p != "" {
				printKeyValue(w, "parent", p)
			}
			for _, r := range m.Repositories() {
				printKeyValue(w, "repository", r)
			}
			for _, p := range m.Properties() {
				printKeyValue(w, "property", p.Name+"="+p.Value)
			}
			if len(deps) == 0 {
				printInfo(w, "No %s dependencies", opts.typ)
				return nil
			}
			printInfo(w, "%d %s dependencies", len(deps), opts.typ)
			for _, d := range deps {
				printFile(w, d)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.typ, "type", "t", maven.DefaultType, "dependency type to list")
	cmd.Flags().BoolVar(&opts.deps, "deps", false, "print only the dependency coordinates")
	cmd.Flags().BoolVar(&opts.managed, "managed", false, "print the dependencyManagement table")
	return cmd
}
