// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/modforge/modforge/internal/issue"
	"github.com/modforge/modforge/pkg/archive"
	"github.com/modforge/modforge/pkg/cache"
	"github.com/modforge/modforge/pkg/checksum"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
)

type (
	packFlags struct {
		checksums bool
		exclude   []string
	}

	unpackFlags struct {
		keepTopFolder bool
	}
)

// newPackCommand creates the `modforge pack` command.
func newPackCommand(app *App) *cobra.Command {
	flags := &packFlags{}
	cmd := &cobra.Command{
		Use:   "pack <dir> [output]",
		Short: "Build a release archive from a module directory",
		Long: `Pack the module rooted at dir into a gzip-compressed tar archive named
after the release (owner-name-version.tar.gz). Every entry sits under a
single top folder of the same name.

output may be a file path or an existing directory; the default is the
current directory. VCS metadata, the install root and the lock file are
left out, as is anything matching an --exclude glob (doublestar syntax,
relative to dir).`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(_ *cobra.Command, args []string) error {
			out := ""
			if len(args) > 1 {
				out = args[1]
			}
			return runPack(app, args[0], out, flags)
		},
	}
	cmd.Flags().BoolVar(&flags.checksums, "checksums", false, "record file checksums in metadata.json before packing")
	cmd.Flags().StringSliceVar(&flags.exclude, "exclude", nil, "glob of paths to leave out (repeatable, e.g. 'spec/**')")
	return cmd
}

// newUnpackCommand creates the `modforge unpack` command.
func newUnpackCommand(app *App) *cobra.Command {
	flags := &unpackFlags{}
	cmd := &cobra.Command{
		Use:   "unpack <archive> <dir>",
		Short: "Extract a release archive",
		Long: `Extract a release archive into dir. The top folder shared by every entry
is stripped unless --keep-top-folder is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runUnpack(app, args[0], args[1], flags)
		},
	}
	cmd.Flags().BoolVar(&flags.keepTopFolder, "keep-top-folder", false, "keep the archive's top folder")
	return cmd
}

func runPack(app *App, dir, out string, flags *packFlags) error {
	chain := &diag.Chain{}
	m, err := loadDescriptor(dir, chain)
	renderDiagnostics(app.stderr, chain, false)
	if err != nil {
		return err
	}
	if !m.IsValid() {
		return issue.NewErrorContext().
			WithOperation("pack module").
			WithResource(dir).
			WithSuggestion("Declare both name and version in the descriptor").
			WithIssue(issue.DescriptorParseErrorId).
			Wrap(fmt.Errorf("descriptor of %s has no valid name and version", dir)).
			BuildError()
	}

	if flags.checksums {
		if err := recordChecksums(app, dir, m); err != nil {
			return err
		}
	}

	for _, p := range flags.exclude {
		if !doublestar.ValidatePattern(p) {
			return issue.NewErrorContext().
				WithOperation("pack module").
				WithResource(p).
				WithSuggestion("Use doublestar glob syntax, e.g. 'spec/**' or '**/*.bak'").
				Wrap(fmt.Errorf("invalid exclude pattern %q", p)).
				BuildError()
		}
	}

	archivePath, err := releaseArchivePath(m, out)
	if err != nil {
		return err
	}
	skip := app.skipNames()
	absOut, _ := filepath.Abs(archivePath)
	absDir, _ := filepath.Abs(dir)
	filter := func(rel string, _ fs.FileInfo) bool {
		if slices.Contains(skip, rel) || excluded(flags.exclude, rel) {
			return false
		}
		return filepath.Join(absDir, filepath.FromSlash(rel)) != absOut
	}

	if err := archive.PackFile(dir, archivePath, archive.PackOptions{
		Filter:           filter,
		IncludeTopFolder: true,
		TopFolder:        m.ReleaseName(),
	}); err != nil {
		return issue.WrapWithContext(err, "pack module", dir)
	}
	fmt.Fprintf(app.stdout, "%s %s %s\n", SuccessStyle.Render("✓ Packed"), CmdStyle.Render(archivePath), SubtitleStyle.Render(m.PURL()))
	return nil
}

// recordChecksums stores the digests of the module files in metadata.json.
func recordChecksums(app *App, dir string, m *metadata.Metadata) (err error) {
	exclude := checksum.ExcludeNames(append(app.skipNames(), metadata.JSONFile, checksum.ManifestFile)...)
	manifest, err := checksum.Default().Build(dir, exclude)
	if err != nil {
		return issue.WrapWithContext(err, "compute checksums", dir)
	}
	m.Checksums = manifest

	f, err := os.Create(filepath.Join(dir, metadata.JSONFile))
	if err != nil {
		return issue.WrapWithContext(err, "write descriptor", dir)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return metadata.Write(f, m)
}

// releaseArchivePath places the archive of m at out. An empty out or an
// existing directory receives the conventional file name.
func releaseArchivePath(m *metadata.Metadata, out string) (string, error) {
	name := m.ReleaseName() + cache.ArchiveExt
	if out == "" {
		return name, nil
	}
	info, err := os.Stat(out)
	switch {
	case err == nil && info.IsDir():
		return filepath.Join(out, name), nil
	case err == nil, os.IsNotExist(err):
		return out, nil
	}
	return "", err
}

func runUnpack(app *App, archivePath, dir string, flags *unpackFlags) error {
	err := archive.UnpackFile(archivePath, dir, archive.UnpackOptions{SkipTopFolder: !flags.keepTopFolder})
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("unpack archive").
			WithResource(archivePath).
			WithSuggestion("Check that the file is a complete gzip or tar release archive").
			Wrap(err).
			BuildError()
	}
	fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("✓ Unpacked into"), CmdStyle.Render(dir))
	return nil
}

// excluded reports whether rel matches one of the user's exclude globs.
func excluded(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		// "dir/**" also drops the directory entry itself.
		if ok, _ := doublestar.Match(p, rel+"/"); ok {
			return true
		}
	}
	return false
}

// skipNames lists the top-level entries that are never packed or checksummed.
func (a *App) skipNames() []string {
	names := []string{".git", resolver.LockFile}
	if r := a.cfg.InstallRoot; r != "" && !filepath.IsAbs(r) {
		names = append(names, filepath.ToSlash(filepath.Clean(r)))
	}
	return names
}
