package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/config"
)

// configCommand creates the settings command.
func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize settings",
		Long: `Settings are read from ` + config.DefaultPath() + ` (or --config),
then from CLASSPATH_* environment variables, then from flags.`,
	}
	cmd.AddCommand(c.configShowCommand())
	cmd.AddCommand(c.configInitCommand())
	return cmd
}

// configShowCommand prints the effective settings as TOML.
func (c *CLI) configShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.settingsPath != "" {
				printDetail(stderr(cmd), "Settings: %s", c.settingsPath)
			}
			return c.settings.Encode(stdout(cmd))
		},
	}
}

// configInitCommand writes the default settings file.
func (c *CLI) configInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a default settings file",
		Annotations: map[string]string{annotationSettings: settingsOptional},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.flags.config
			if path == "" {
				path = config.DefaultPath()
			}
			wrote, err := config.Init(path, force)
			if err != nil {
				return err
			}
			w := stdout(cmd)
			if !wrote {
				printWarning(w, "%s exists, use --force to overwrite", path)
				return nil
			}
			printSuccess(w, "Wrote %s", path)
			printNextStep(w, "Inspect the effective settings", appName+" config show")
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
