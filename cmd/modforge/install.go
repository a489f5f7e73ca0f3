// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
)

type installFlags struct {
	dryRun      bool
	strict      bool
	installRoot string
}

// newInstallCommand creates the `modforge install` command.
func newInstallCommand(app *App) *cobra.Command {
	flags := &installFlags{}
	cmd := &cobra.Command{
		Use:   "install [dir]",
		Short: "Resolve and install the dependencies of a module",
		Long: `Resolve the dependencies declared by the module descriptor in dir (default:
the current directory), fetch every selected release through the cache and
install it under the install root.

Problems found along the way are reported as diagnostics. Unless --strict is
given, the command installs what it could resolve and exits successfully.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, app, dirArg(args), flags)
		},
	}
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "resolve only; print the plan without installing")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "fail when resolution reports errors")
	cmd.Flags().StringVar(&flags.installRoot, "install-root", "", "install directory (default from config, relative to dir)")
	return cmd
}

func runInstall(cmd *cobra.Command, app *App, dir string, flags *installFlags) error {
	ctx := cmd.Context()
	verbose := verboseFromContext(ctx)

	rootChain := &diag.Chain{}
	root, err := loadDescriptor(dir, rootChain)
	renderDiagnostics(app.stderr, rootChain, verbose)
	if err != nil {
		return err
	}

	sess, err := app.newSession(ctx, flags.strict)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	var res *resolver.Result
	if flags.dryRun {
		res, err = sess.resolver.Plan(ctx, root)
	} else {
		res, err = sess.resolver.Install(ctx, root, app.installRoot(dir, flags.installRoot))
	}
	if res != nil {
		renderDiagnostics(app.stderr, res.Diagnostics, verbose)
	}
	if err != nil {
		if errors.Is(err, resolver.ErrStrictFailure) {
			return issue.NewErrorContext().
				WithOperation("resolve dependencies").
				WithResource(root.Name.Slash()).
				WithSuggestion("Fix the errors reported above").
				WithSuggestion("Or run without --strict to install what can be resolved").
				Wrap(err).
				BuildError()
		}
		return issue.WrapWithContext(err, "install dependencies", dir)
	}

	renderReleases(app.stdout, res, !flags.dryRun)
	renderSummary(app.stderr, res.Diagnostics)
	if !flags.dryRun {
		fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ Install complete"))
	}
	return nil
}

// loadDescriptor reads the descriptor in dir. Diagnostics go to chain; only
// a missing or unreadable descriptor is an error.
func loadDescriptor(dir string, chain *diag.Chain) (*metadata.Metadata, error) {
	m, err := metadata.Load(dir, chain)
	if err != nil {
		return nil, issue.NewErrorContext().
			WithOperation("read module descriptor").
			WithResource(dir).
			WithSuggestion(fmt.Sprintf("Create %s or %s in the module root", metadata.JSONFile, metadata.LegacyFile)).
			Wrap(err).
			BuildError()
	}
	return m, nil
}

// dirArg returns the optional directory argument, defaulting to ".".
func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}
