// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/modforge/modforge/pkg/platform"
)

// MaxChmodBatch caps the number of paths passed to one ChmodFunc call.
const MaxChmodBatch = 100

type (
	// FileCatcher receives regular file entries instead of having them
	// written to disk.
	FileCatcher interface {
		// Accept reports whether the entry (relative to the target, after
		// top-folder stripping) should be handed to Catch.
		Accept(name string) bool
		// Catch consumes the entry content. Returning stop ends the unpack.
		Catch(name string, r io.Reader) (stop bool, err error)
	}

	// ChmodFunc applies mode to every path in one call. Paths always share
	// a parent directory.
	ChmodFunc func(mode fs.FileMode, paths []string) error

	// UnpackOptions configures Unpack.
	UnpackOptions struct {
		// SkipTopFolder strips the single top folder shared by every entry.
		SkipTopFolder bool
		// Catcher switches Unpack to extraction mode: nothing is written to
		// disk and accepted files are streamed to the catcher.
		Catcher FileCatcher
		// Chmod overrides how batched permission changes are applied.
		Chmod ChmodFunc
		// SupportsSymlinks overrides platform detection; nil uses the running OS.
		SupportsSymlinks *bool
	}

	chmodKey struct {
		dir  string
		mode fs.FileMode
	}
)

// Unpack reads a tar stream into targetDir. Permission bits are collected
// during the pass and applied afterwards in batches grouped by directory and
// mode. With a Catcher, targetDir is not touched.
func Unpack(r io.Reader, targetDir string, opts UnpackOptions) error {
	u := &unpacker{
		opts:    opts,
		target:  targetDir,
		pending: map[chmodKey][]string{},
	}
	if opts.SupportsSymlinks != nil {
		u.symlinks = *opts.SupportsSymlinks
	} else {
		u.symlinks = platform.CurrentSupportsSymlinks()
	}
	if opts.Catcher == nil {
		abs, err := filepath.Abs(targetDir)
		if err != nil {
			return fmt.Errorf("failed to resolve target directory: %w", err)
		}
		u.target = abs
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("failed to create target directory: %w", err)
		}
	}

	stopped, err := u.run(tar.NewReader(r))
	if err != nil {
		return err
	}
	if stopped || opts.Catcher != nil {
		return nil
	}
	return u.applyModes()
}

type unpacker struct {
	opts     UnpackOptions
	target   string
	top      string
	symlinks bool
	pending  map[chmodKey][]string
}

func (u *unpacker) run(tr *tar.Reader) (stopped bool, err error) {
	entries := 0
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			if entries == 0 {
				return false, ErrArchiveTruncated
			}
			return false, nil
		}
		if err != nil {
			return false, truncation(fmt.Errorf("failed to read archive: %w", err))
		}
		entries++

		if isMetadataArtifact(hdr.Name) {
			continue
		}
		name, err := u.relativeName(hdr.Name)
		if err != nil {
			return false, err
		}
		if name == "" {
			continue
		}

		if u.opts.Catcher != nil {
			if hdr.Typeflag != tar.TypeReg || !u.opts.Catcher.Accept(name) {
				continue
			}
			stop, err := u.opts.Catcher.Catch(name, tr)
			if err != nil {
				return false, truncation(fmt.Errorf("failed to extract %s: %w", name, err))
			}
			if stop {
				return true, nil
			}
			continue
		}

		if err := u.materialize(hdr, name, tr); err != nil {
			return false, truncation(err)
		}
	}
}

// relativeName strips the top folder when requested and rejects names that
// would land outside the target.
func (u *unpacker) relativeName(raw string) (string, error) {
	name := strings.TrimPrefix(entryName(raw), "./")
	if name == "" || name == "." {
		return "", nil
	}
	if u.opts.SkipTopFolder {
		first, rest, _ := strings.Cut(name, "/")
		if u.top == "" {
			u.top = first
		}
		if first != u.top {
			return "", &LayoutError{Entry: raw, Expected: u.top}
		}
		name = rest
	}
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return "", nil
	}
	clean := path.Clean(name)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, raw)
	}
	return clean, nil
}

func (u *unpacker) materialize(hdr *tar.Header, name string, r io.Reader) error {
	dest := filepath.Join(u.target, filepath.FromSlash(name))
	mode := fs.FileMode(hdr.Mode).Perm()

	switch hdr.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(dest, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", name, err)
		}
		u.record(dest, mode)
	case tar.TypeSymlink:
		if !u.symlinks {
			return &UnsupportedLinkError{Name: name, Target: hdr.Linkname}
		}
		if err := u.checkLinkTarget(name, hdr.Linkname); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to replace %s: %w", name, err)
		}
		if err := os.Symlink(filepath.FromSlash(hdr.Linkname), dest); err != nil {
			return fmt.Errorf("failed to create symlink %s: %w", name, err)
		}
	case tar.TypeReg:
		if err := writeFile(dest, r); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		if err := os.Chtimes(dest, hdr.ModTime, hdr.ModTime); err != nil {
			return fmt.Errorf("failed to restore modification time of %s: %w", name, err)
		}
		u.record(dest, mode)
	}
	// Other entry types (hard links, devices, FIFOs) never occur in module releases.
	return nil
}

func (u *unpacker) checkLinkTarget(name, target string) error {
	if path.IsAbs(target) || filepath.IsAbs(target) {
		return fmt.Errorf("%w: symlink %s -> %s", ErrPathEscape, name, target)
	}
	resolved := path.Clean(path.Join(path.Dir(name), entryName(target)))
	if resolved == ".." || strings.HasPrefix(resolved, "../") {
		return fmt.Errorf("%w: symlink %s -> %s", ErrPathEscape, name, target)
	}
	return nil
}

func (u *unpacker) record(dest string, mode fs.FileMode) {
	key := chmodKey{dir: filepath.Dir(dest), mode: mode}
	u.pending[key] = append(u.pending[key], dest)
}

// applyModes issues one ChmodFunc call per (directory, mode) group, split into
// chunks of at most MaxChmodBatch paths. Deeper directories go first so a
// read-only parent never blocks its children.
func (u *unpacker) applyModes() error {
	chmod := u.opts.Chmod
	if chmod == nil {
		chmod = chmodEach
	}

	keys := make([]chmodKey, 0, len(u.pending))
	for k := range u.pending {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b chmodKey) int {
		if c := cmp.Compare(strings.Count(b.dir, string(filepath.Separator)), strings.Count(a.dir, string(filepath.Separator))); c != 0 {
			return c
		}
		if c := cmp.Compare(a.dir, b.dir); c != 0 {
			return c
		}
		return cmp.Compare(a.mode, b.mode)
	})

	for _, k := range keys {
		for batch := range slices.Chunk(u.pending[k], MaxChmodBatch) {
			if err := chmod(k.mode, batch); err != nil {
				return fmt.Errorf("failed to set permissions in %s: %w", k.dir, err)
			}
		}
	}
	return nil
}

func chmodEach(mode fs.FileMode, paths []string) error {
	for _, p := range paths {
		if err := os.Chmod(p, mode); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(dest string, r io.Reader) (err error) {
	if err = os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	// A previous unpack may have left a read-only file or a symlink here.
	if err = os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(f, r)
	return err
}

// truncation marks errors caused by a cut-off stream with ErrArchiveTruncated.
func truncation(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, ErrArchiveTruncated) {
		return fmt.Errorf("%w: %w", ErrArchiveTruncated, err)
	}
	return err
}

// isMetadataArtifact matches AppleDouble files ("._name") some archivers add.
func isMetadataArtifact(name string) bool {
	return strings.HasPrefix(name, "./._") || strings.HasPrefix(path.Base(entryName(name)), "._")
}
