// SPDX-License-Identifier: MPL-2.0

// Package archive packs module trees into tar streams and unpacks release
// archives, preserving symlinks, modification times and permission bits.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrArchiveLayout is returned when entries do not share the expected top folder.
	ErrArchiveLayout = errors.New("unexpected archive layout")
	// ErrArchiveTruncated is returned for an archive with no entries or a cut-off stream.
	ErrArchiveTruncated = errors.New("archive is truncated")
	// ErrUnsupportedLink is returned when a symlink entry cannot be created on this platform.
	ErrUnsupportedLink = errors.New("symbolic links are not supported on this platform")
	// ErrPathEscape is returned when an entry would be written outside the target directory.
	ErrPathEscape = errors.New("archive entry escapes target directory")
)

type (
	// Filter decides whether a path (slash-separated, relative to the source
	// directory) is packed. Rejecting a directory skips its subtree.
	Filter func(rel string, info fs.FileInfo) bool

	// PackOptions configures Pack.
	PackOptions struct {
		// Filter is optional; nil packs everything.
		Filter Filter
		// IncludeTopFolder roots every entry under a single top folder.
		IncludeTopFolder bool
		// TopFolder renames the top folder. Empty uses the source directory's base name.
		TopFolder string
	}

	// LayoutError reports an entry outside the shared top folder.
	LayoutError struct {
		Entry    string
		Expected string
	}

	// UnsupportedLinkError reports a symlink entry that could not be materialized.
	UnsupportedLinkError struct {
		Name   string
		Target string
	}
)

// Error implements the error interface.
func (e *LayoutError) Error() string {
	return fmt.Sprintf("archive entry %q is not under top folder %q", e.Entry, e.Expected)
}

// Unwrap returns ErrArchiveLayout so callers can use errors.Is for programmatic detection.
func (e *LayoutError) Unwrap() error { return ErrArchiveLayout }

// Error implements the error interface.
func (e *UnsupportedLinkError) Error() string {
	return fmt.Sprintf("cannot create symlink %q -> %q: symbolic links are not supported on this platform", e.Name, e.Target)
}

// Unwrap returns ErrUnsupportedLink so callers can use errors.Is for programmatic detection.
func (e *UnsupportedLinkError) Unwrap() error { return ErrUnsupportedLink }

// Pack writes sourceDir to w as a tar stream. Directory listings are sorted,
// so equal trees produce equal archives. Symlinks are stored as link entries
// and never followed. The writer selects PAX headers for long names.
func Pack(sourceDir string, w io.Writer, opts PackOptions) (err error) {
	info, err := os.Stat(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("source %s is not a directory", sourceDir)
	}

	tw := tar.NewWriter(w)
	defer func() {
		if closeErr := tw.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	prefix := ""
	if opts.IncludeTopFolder {
		prefix = opts.TopFolder
		if prefix == "" {
			abs, absErr := filepath.Abs(sourceDir)
			if absErr != nil {
				return fmt.Errorf("failed to resolve source directory: %w", absErr)
			}
			prefix = filepath.Base(abs)
		}
		prefix = entryName(prefix)
		if err = writeHeader(tw, info, prefix+"/", ""); err != nil {
			return err
		}
	}

	p := &packer{tw: tw, root: sourceDir, prefix: prefix, filter: opts.Filter}
	if err = p.packDir(""); err != nil {
		return fmt.Errorf("failed to pack %s: %w", sourceDir, err)
	}
	return nil
}

type packer struct {
	tw     *tar.Writer
	root   string
	prefix string
	filter Filter
}

func (p *packer) packDir(rel string) error {
	dir := filepath.Join(p.root, filepath.FromSlash(rel))
	// os.ReadDir returns entries sorted by filename.
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		childRel := entry.Name()
		if rel != "" {
			childRel = rel + "/" + entry.Name()
		}
		full := filepath.Join(dir, entry.Name())
		info, err := os.Lstat(full)
		if err != nil {
			return err
		}
		if p.filter != nil && !p.filter(childRel, info) {
			continue
		}

		name := entryName(path.Join(p.prefix, childRel))
		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(full)
			if err != nil {
				return err
			}
			if err := writeHeader(p.tw, info, name, entryName(target)); err != nil {
				return err
			}
		case info.IsDir():
			if err := writeHeader(p.tw, info, name+"/", ""); err != nil {
				return err
			}
			if err := p.packDir(childRel); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := writeHeader(p.tw, info, name, ""); err != nil {
				return err
			}
			if err := copyFile(p.tw, full); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeHeader(tw *tar.Writer, info fs.FileInfo, name, link string) error {
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("failed to create header for %s: %w", name, err)
	}
	hdr.Name = name
	hdr.Mode = int64(info.Mode().Perm())
	hdr.ModTime = info.ModTime().Truncate(time.Second)
	// Ownership and access times vary between machines; leave them out.
	hdr.Uid, hdr.Gid = 0, 0
	hdr.Uname, hdr.Gname = "", ""
	hdr.AccessTime, hdr.ChangeTime = time.Time{}, time.Time{}
	hdr.Format = tar.FormatUnknown
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", name, err)
	}
	return nil
}

func copyFile(w io.Writer, path string) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	_, err = io.Copy(w, f)
	return err
}

// entryName converts a path to portable archive form.
func entryName(name string) string {
	return strings.ReplaceAll(filepath.ToSlash(name), `\`, "/")
}
