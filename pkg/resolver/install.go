// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modforge/modforge/pkg/archive"
	"github.com/modforge/modforge/pkg/checksum"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
)

// Install resolves root and installs every selected release under
// installRoot/<short name>. A release whose installed tree already matches
// its recorded checksums is left alone. The lock file is written on success.
func (r *Resolver) Install(ctx context.Context, root *metadata.Metadata, installRoot string) (*Result, error) {
	rn := r.newRun(root)
	if err := rn.resolve(ctx); err != nil {
		return rn.result, err
	}

	rn.transition(StateFetching)
	if err := os.MkdirAll(installRoot, 0o755); err != nil {
		rn.transition(StateFailed)
		return rn.result, fmt.Errorf("create install root: %w", err)
	}
	for i := range rn.result.Releases {
		if err := ctx.Err(); err != nil {
			rn.transition(StateFailed)
			return rn.result, err
		}
		rn.install(ctx, &rn.result.Releases[i], installRoot)
	}

	if err := WriteLock(filepath.Join(installRoot, LockFile), NewLock(rn.result)); err != nil {
		rn.transition(StateFailed)
		return rn.result, err
	}
	rn.transition(StateInstalled)
	return rn.result, nil
}

// install materializes one release. Failures are recorded as diagnostics.
func (rn *run) install(ctx context.Context, rel *Release, installRoot string) {
	dir, err := installDir(installRoot, rel.Name.Name())
	if err != nil {
		rn.installFailed(rel, err)
		return
	}
	rel.Dir = dir
	logger := rn.logger.With("module", rel.Name.String(), "version", rel.Version.String(), "path", rel.Dir)

	if rn.upToDate(rel) {
		rel.Skipped = true
		logger.Info("already installed")
		return
	}

	// The archive was cached during resolution; this is normally a hit.
	archivePath, err := rn.r.cache.Retrieve(ctx, rel.Name, rel.Version)
	if err != nil {
		rn.result.Diagnostics.Add(diag.Diagnostic{
			Severity: diag.SeverityError,
			Code:     diag.CodeFetchFailed,
			Message:  fmt.Sprintf("could not obtain %s %s: %v", rel.Name, rel.Version, err),
			Cause:    err,
		})
		return
	}
	rel.Archive = archivePath

	if err := os.RemoveAll(rel.Dir); err != nil {
		rn.installFailed(rel, err)
		return
	}
	if err := archive.UnpackFile(archivePath, rel.Dir, archive.UnpackOptions{SkipTopFolder: true}); err != nil {
		rn.installFailed(rel, err)
		return
	}
	logger.Info("installed")
}

// installDir returns installRoot/short. short must be one plain path segment.
func installDir(installRoot, short string) (string, error) {
	dir := filepath.Join(installRoot, short)
	rel, err := filepath.Rel(installRoot, dir)
	if err != nil || rel == "." || rel == ".." || rel != filepath.Base(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeInstallDir, short)
	}
	return dir, nil
}

// upToDate reports whether rel.Dir already holds the files the release
// descriptor records checksums for.
func (rn *run) upToDate(rel *Release) bool {
	if rel.Metadata == nil || len(rel.Metadata.Checksums) == 0 {
		return false
	}
	if info, err := os.Stat(rel.Dir); err != nil || !info.IsDir() {
		return false
	}
	bad, err := rn.r.checksums.Verify(checksum.Manifest(rel.Metadata.Checksums), rel.Dir)
	return err == nil && len(bad) == 0
}

func (rn *run) installFailed(rel *Release, err error) {
	rn.logger.Error("install failed", "module", rel.Name.String(), "err", err)
	rn.result.Diagnostics.Add(diag.Diagnostic{
		Severity: diag.SeverityError,
		Code:     diag.CodeInstallFailed,
		Message:  fmt.Sprintf("installing %s %s into %s failed: %v", rel.Name, rel.Version, rel.Dir, err),
		Cause:    err,
	})
}
