package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/classpath/pkg/cache"
	"github.com/matzehuels/classpath/pkg/config"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the repository metadata cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear cached repository metadata",
		Long: `Remove every cached maven-metadata.xml entry from the file cache, so the
next resolution asks the repositories again. Downloaded artifacts in the
local repository are kept.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := stdout(cmd)
			if b := c.settings.Cache.Backend; b != config.CacheFile {
				printWarning(w, "Cache backend %q has no local files to clear", b)
				return nil
			}
			dir := c.settings.MetadataCacheDir()
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo(w, "Cache is empty")
				return nil
			}

			fc, err := cache.NewFileCache(dir)
			if err != nil {
				return fmt.Errorf("open cache: %w", err)
			}
			count, err := fc.Clear()
			if err != nil {
				return err
			}
			printSuccess(w, "Cleared %d cached entries", count)
			printDetail(w, "Directory: %s", dir)
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var artifacts bool
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the metadata cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if artifacts {
				fmt.Fprintln(stdout(cmd), c.settings.LocalRepoPath())
				return nil
			}
			fmt.Fprintln(stdout(cmd), c.settings.MetadataCacheDir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&artifacts, "artifacts", false, "print the local artifact repository instead")
	return cmd
}
