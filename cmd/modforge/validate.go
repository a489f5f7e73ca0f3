// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/watch"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
)

type validateFlags struct {
	print bool
	watch bool
}

// newValidateCommand creates the `modforge validate` command.
func newValidateCommand(app *App) *cobra.Command {
	flags := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate [dir]",
		Short: "Check a module descriptor",
		Long: `Parse the module descriptor in dir (default: the current directory) and
report every diagnostic. Exits with status 1 when any error is reported.

With --print, the descriptor is written to stdout in canonical JSON form,
which also converts a legacy Modulefile to metadata.json. With --watch the
descriptor is checked again whenever it changes, until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := dirArg(args)
			if flags.watch {
				return watchValidate(cmd.Context(), app, dir, flags)
			}
			return runValidate(app, dir, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.print, "print", false, "print the descriptor as canonical JSON")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "re-validate whenever the descriptor changes")
	return cmd
}

func runValidate(app *App, dir string, flags *validateFlags) error {
	chain := &diag.Chain{}
	m, err := loadDescriptor(dir, chain)
	renderDiagnostics(app.stderr, chain, true)
	if err != nil {
		return err
	}

	if flags.print {
		if err := metadata.Write(app.stdout, m); err != nil {
			return err
		}
	}

	renderSummary(app.stderr, chain)
	if chain.HasErrors() {
		return &ExitError{Code: 1}
	}
	if !flags.print {
		fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render("✓"), CmdStyle.Render(m.ReleaseName()), SubtitleStyle.Render(m.PURL()))
	}
	return nil
}

// watchValidate validates once, then again on every descriptor change.
// Validation failures are reported and watching continues.
func watchValidate(ctx context.Context, app *App, dir string, flags *validateFlags) error {
	report := func() {
		if err := runValidate(app, dir, flags); err != nil {
			if msg := formatErrorForDisplay(err, verboseFromContext(ctx)); msg != "" {
				fmt.Fprintln(app.stderr, msg)
			}
		}
	}

	w, err := watch.New(watch.Config{
		Dir:      dir,
		Patterns: metadata.DescriptorFiles,
		Logger:   loggerFromContext(ctx),
		OnChange: func(_ context.Context, changed []string) error {
			fmt.Fprintln(app.stdout, SubtitleStyle.Render(fmt.Sprintf("changed: %v", changed)))
			report()
			return nil
		},
	})
	if err != nil {
		return err
	}
	report()
	fmt.Fprintln(app.stdout, SubtitleStyle.Render("Watching for descriptor changes (Ctrl+C to stop)"))
	return w.Run(ctx)
}
