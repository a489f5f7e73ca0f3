// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// rootFlags are the persistent flags shared by every command.
type rootFlags struct {
	verbose bool
	cfgFile string
}

// NewRootCommand builds the command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "modforge",
		Short: "Resolve, fetch and install versioned modules",
		Long: TitleStyle.Render("modforge") + SubtitleStyle.Render(" - a module package manager") + `

modforge reads a module descriptor (metadata.json, or a legacy Modulefile),
resolves its dependencies against a registry, caches release archives and
installs the resolved tree.

` + SubtitleStyle.Render("Examples:") + `
  modforge validate              Check the descriptor in the current directory
  modforge install --dry-run     Show what would be installed
  modforge install               Install dependencies into ./modules
  modforge graph                 Show the dependency tree
  modforge pack . dist/          Build a release archive
  modforge config show           Show current configuration`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd, flags)
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&flags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/modforge/config.cue)")

	rootCmd.AddCommand(
		newInstallCommand(app),
		newValidateCommand(app),
		newGraphCommand(app),
		newPackCommand(app),
		newUnpackCommand(app),
		newChecksumCommand(app),
		newCacheCommand(app),
		newConfigCommand(app),
	)
	return rootCmd
}

// prepare loads configuration and attaches the logger to the command context.
func (a *App) prepare(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := a.loadConfig(ctx, flags.cfgFile)
	if err != nil {
		return err
	}
	level, err := cfg.Log.Level.Level()
	if err != nil {
		return err
	}
	logger := newLogger(a.stderr, level, flags.verbose)
	if a.cfgPath != "" {
		logger.Debug("loaded configuration", "path", a.cfgPath)
	}
	cmd.SetContext(withVerbose(withLogger(ctx, logger), flags.verbose))
	return nil
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the command's status.
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			if msg := formatErrorForDisplay(err, verboseFromArgs(os.Args)); msg != "" {
				fmt.Fprintln(w, msg)
			}
		}),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// formatErrorForDisplay formats an error for user display. Actionable errors
// carry suggestions and, when verbose, the error chain.
func formatErrorForDisplay(err error, verbose bool) string {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return ""
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		out := ErrorStyle.Render("Error: ") + ae.Format(verbose)
		if verbose {
			if is := issue.Get(ae.Issue); is != nil {
				if md, rerr := is.Render("dark"); rerr == nil {
					out += "\n" + md
				}
			}
		}
		return out
	}
	return ErrorStyle.Render("Error: ") + err.Error()
}

// verboseFromArgs reports whether the verbose flag was given. The error
// handler runs after the command tree, outside any command context.
func verboseFromArgs(args []string) bool {
	return slices.ContainsFunc(args, func(a string) bool {
		return a == "-v" || a == "--verbose" || a == "--verbose=true"
	})
}
