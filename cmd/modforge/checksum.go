// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/checksum"
	"github.com/modforge/modforge/pkg/metadata"
)

type checksumFlags struct {
	algo   string
	write  bool
	verify bool
}

// newChecksumCommand creates the `modforge checksum` command.
func newChecksumCommand(app *App) *cobra.Command {
	flags := &checksumFlags{}
	cmd := &cobra.Command{
		Use:   "checksum [dir]",
		Short: "Compute or verify the file checksums of a module tree",
		Long: `Compute a digest for every regular file under dir (default: the current
directory) and print the manifest.

With --write the manifest is saved as checksums.json. With --verify the tree
is compared against an existing checksums.json and the command exits with
status 1 when any file changed, appeared or disappeared.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runChecksum(app, dirArg(args), flags)
		},
	}
	cmd.Flags().StringVar(&flags.algo, "algo", string(checksum.MD5), "digest algorithm (md5, xxh64)")
	cmd.Flags().BoolVar(&flags.write, "write", false, "write the manifest to checksums.json")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "compare the tree against checksums.json")
	cmd.MarkFlagsMutuallyExclusive("write", "verify")
	return cmd
}

func runChecksum(app *App, dir string, flags *checksumFlags) error {
	engine, err := checksum.New(checksum.Algorithm(flags.algo))
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("select checksum algorithm").
			WithResource(flags.algo).
			WithSuggestions("Use --algo md5", "Or use --algo xxh64 for fast local change detection").
			Wrap(err).
			BuildError()
	}
	exclude := checksum.ExcludeNames(append(app.skipNames(), checksum.ManifestFile, metadata.JSONFile)...)
	manifestPath := filepath.Join(dir, checksum.ManifestFile)

	if flags.verify {
		return verifyChecksums(app, engine, dir, manifestPath, exclude)
	}

	manifest, err := engine.Build(dir, exclude)
	if err != nil {
		return issue.WrapWithContext(err, "compute checksums", dir)
	}
	if flags.write {
		if err := checksum.WriteManifest(manifestPath, manifest); err != nil {
			return issue.WrapWithContext(err, "write checksum manifest", manifestPath)
		}
		fmt.Fprintf(app.stdout, "%s %d file(s) → %s\n", SuccessStyle.Render("✓ Recorded"), len(manifest), CmdStyle.Render(manifestPath))
		return nil
	}
	for _, p := range manifest.Paths() {
		fmt.Fprintf(app.stdout, "%s  %s\n", manifest[p], p)
	}
	return nil
}

// verifyChecksums reports every path whose content no longer matches the
// saved manifest, including added and removed files.
func verifyChecksums(app *App, engine *checksum.Engine, dir, manifestPath string, exclude checksum.Exclude) error {
	saved, err := checksum.ReadManifest(manifestPath)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("read checksum manifest").
			WithResource(manifestPath).
			WithSuggestion("Record one first with 'modforge checksum --write'").
			Wrap(err).
			BuildError()
	}
	changed, err := engine.Diff(saved, dir, exclude)
	if err != nil {
		return issue.WrapWithContext(err, "compare checksums", dir)
	}
	bad, err := engine.Verify(saved, dir)
	if err != nil {
		return issue.WrapWithContext(err, "compare checksums", dir)
	}
	changed = append(changed, bad...)
	slices.Sort(changed)
	changed = slices.Compact(changed)

	if len(changed) == 0 {
		fmt.Fprintln(app.stdout, SuccessStyle.Render("✓ All files match "+checksum.ManifestFile))
		return nil
	}
	for _, p := range changed {
		fmt.Fprintf(app.stdout, "%s %s\n", WarningStyle.Render("modified"), p)
	}
	fmt.Fprintln(app.stderr, ErrorStyle.Render(fmt.Sprintf("%d file(s) differ from %s", len(changed), checksum.ManifestFile)))
	return &ExitError{Code: 1}
}
