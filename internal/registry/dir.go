// SPDX-License-Identifier: MPL-2.0

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
	"github.com/modforge/modforge/pkg/semver"
)

// ArchiveExt is the extension of release files.
const ArchiveExt = ".tar.gz"

// DirRegistry serves release files named <owner>-<name>-<version>.tar.gz
// from a single directory.
type DirRegistry struct {
	dir string
}

// NewDir returns a registry reading release files from dir.
func NewDir(dir string) *DirRegistry {
	return &DirRegistry{dir: dir}
}

// FileName returns the release file name of name at version.
func FileName(name metadata.ModuleName, version semver.Version) string {
	return name.String() + "-" + version.String() + ArchiveExt
}

// Versions implements resolver.Registry.
func (r *DirRegistry) Versions(_ context.Context, name metadata.ModuleName) ([]semver.Version, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry directory: %w", err)
	}
	prefix := name.String() + "-"
	var versions []semver.Version
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		base, ok := strings.CutSuffix(e.Name(), ArchiveExt)
		if !ok {
			continue
		}
		text, ok := strings.CutPrefix(base, prefix)
		if !ok {
			continue
		}
		// "acme-widget-extra-1.0.0" shares the prefix of acme-widget but
		// does not parse as a version.
		if v, err := semver.Parse(text); err == nil {
			versions = append(versions, v)
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", resolver.ErrUnknownModule, name, r.dir)
	}
	return versions, nil
}

// Fetch implements cache.Fetcher.
func (r *DirRegistry) Fetch(_ context.Context, name metadata.ModuleName, version semver.Version) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(r.dir, FileName(name, version)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, name, version)
	}
	return f, err
}
