package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/classpath/pkg/buildinfo"
	"github.com/matzehuels/classpath/pkg/config"
	"github.com/matzehuels/classpath/pkg/errors"
	"github.com/matzehuels/classpath/pkg/repository"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for display.
const appName = config.AppName

// Commands annotated with settingsOptional run without an existing settings
// file.
const (
	annotationSettings = "settings"
	settingsOptional   = "optional"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags        globalFlags
	settings     *config.Settings
	settingsPath string
}

// globalFlags are the persistent flags of the root command.
type globalFlags struct {
	verbose        bool
	config         string
	properties     []string
	local          string
	offline        bool
	reset          bool
	allowSnapshots bool
	repos          []string
	concurrency    int
	noCache        bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "classpath resolves Maven dependencies",
		Long: `classpath resolves Maven coordinates and project descriptors into a
classpath: it expands transitive dependencies, settles version conflicts
(nearest wins), honors scopes, exclusions and optional flags, and caches
every artifact in a local repository.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.flags.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.flags.config, "config", "", "settings file (default "+config.DefaultPath()+")")
	pf.StringArrayVarP(&c.flags.properties, "define", "D", nil, "set a property, e.g. -D http.proxyHost=proxy (repeatable)")
	pf.StringVar(&c.flags.local, "local", "", "local repository directory")
	pf.BoolVar(&c.flags.offline, "offline", false, "only use the local repository and file: repositories")
	pf.BoolVar(&c.flags.reset, "reset", false, "re-check remote metadata and refresh snapshots")
	pf.StringArrayVarP(&c.flags.repos, "repo", "r", nil, "repository id, id(url) or url, searched first (repeatable)")
	pf.BoolVar(&c.flags.allowSnapshots, "allow-snapshots", false, "allow snapshot versions")
	pf.IntVarP(&c.flags.concurrency, "concurrency", "j", 0, "parallel downloads (default 8)")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "do not cache repository metadata")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if c.flags.verbose {
			c.SetLogLevel(LogDebug)
		}
		cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		return c.loadSettings(cmd)
	}

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.treeCommand())
	root.AddCommand(c.latestCommand())
	root.AddCommand(c.pomCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Settings
// =============================================================================

// loadSettings layers the settings file, the environment and the global
// flags.
func (c *CLI) loadSettings(cmd *cobra.Command) error {
	pf := cmd.Root().PersistentFlags()
	s, used, err := config.Load(cmd.Context(), config.LoadOptions{
		Path:         c.flags.config,
		AllowMissing: cmd.Annotations[annotationSettings] == settingsOptional,
		Flags: map[string]*pflag.Flag{
			"local_repo":      pf.Lookup("local"),
			"offline":         pf.Lookup("offline"),
			"reset":           pf.Lookup("reset"),
			"allow_snapshots": pf.Lookup("allow-snapshots"),
			"concurrency":     pf.Lookup("concurrency"),
		},
	})
	if err != nil {
		return err
	}

	props, err := parseProperties(c.flags.properties)
	if err != nil {
		return err
	}
	for k, v := range props {
		s.Properties[k] = v
	}

	var flagRepos []string
	for _, r := range c.flags.repos {
		flagRepos = append(flagRepos, repository.SplitTokens(r)...)
	}
	s.EnvRepos = repository.MergeTokens(flagRepos, s.EnvRepos)

	if c.flags.noCache {
		s.Cache.Backend = config.CacheNone
	}

	c.settings, c.settingsPath = s, used
	if used != "" {
		c.Logger.Debug("loaded settings", "path", used)
	}
	return nil
}

// parseProperties parses "key=value" definitions. A bare key is set to
// "true".
func parseProperties(defs []string) (map[string]string, error) {
	props := make(map[string]string, len(defs))
	for _, d := range defs {
		k, v, ok := strings.Cut(d, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid property %q, want key=value", d)
		}
		if !ok {
			v = "true"
		}
		props[k] = v
	}
	return props, nil
}

// stdout returns the command's output stream.
func stdout(cmd *cobra.Command) io.Writer { return cmd.OutOrStdout() }

// stderr returns the command's diagnostic stream.
func stderr(cmd *cobra.Command) io.Writer { return cmd.ErrOrStderr() }

// writeOutput writes data to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
