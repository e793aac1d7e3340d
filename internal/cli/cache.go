package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the PyPI response cache",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand. It purges the
// backend a conversion would actually use, so with PYDEB_REDIS_ADDR set it
// clears the shared Redis namespace rather than the local directory.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear all cached PyPI responses from the active backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := newCache(false)
			if err != nil {
				return fmt.Errorf("open cache backend: %w", err)
			}
			defer backend.Close()

			count, err := backend.Purge(cmd.Context())
			if err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}

			printSuccess("Cleared %d cached entries", count)
			if addr := os.Getenv(redisAddrEnv); addr != "" {
				printDetail("Backend: redis (%s)", addr)
			} else if dir, err := cacheDir(); err == nil {
				printDetail("Backend: %s", dir)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the local file cache directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}
