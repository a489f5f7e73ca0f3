// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/cache"
)

// newCacheCommand creates the `modforge cache` command tree.
func newCacheCommand(app *App) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the release archive cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached releases",
		RunE: func(_ *cobra.Command, _ []string) error {
			return listCache(app)
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Remove every cached archive",
		RunE: func(_ *cobra.Command, _ []string) error {
			return cleanCache(app)
		},
	})

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		RunE: func(_ *cobra.Command, _ []string) error {
			dir, err := app.cacheDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(app.stdout, dir)
			return nil
		},
	})

	return cacheCmd
}

// openCache returns a cache for local maintenance; it never fetches.
func (a *App) openCache() (*cache.Cache, error) {
	dir, err := a.cacheDir()
	if err != nil {
		return nil, err
	}
	return cache.New(dir, nil), nil
}

func listCache(app *App) error {
	c, err := app.openCache()
	if err != nil {
		return err
	}
	entries, err := c.Entries()
	if err != nil {
		return issue.WrapWithContext(err, "list cache", c.Dir())
	}
	if len(entries) == 0 {
		fmt.Fprintln(app.stdout, SubtitleStyle.Render("Cache is empty."))
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(app.stdout, "%s %s %s\n", CmdStyle.Render(e.Name.Slash()), e.Version.String(), VerboseStyle.Render(e.Path))
	}
	return nil
}

func cleanCache(app *App) error {
	c, err := app.openCache()
	if err != nil {
		return err
	}
	if err := c.Clean(); err != nil {
		return issue.WrapWithContext(err, "clean cache", c.Dir())
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ Cleaned"), CmdStyle.Render(c.Dir()))
	return nil
}
