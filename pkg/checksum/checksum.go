// SPDX-License-Identifier: MPL-2.0

// Package checksum fingerprints module file trees for staleness and tamper
// detection.
package checksum

import (
	"crypto/md5" //nolint:gosec // change detection only, matches published release checksums
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/cespare/xxhash/v2"
)

const (
	// MD5 is the default digest, matching the checksums published in descriptors.
	MD5 Algorithm = "md5"
	// XXHash64 is a fast non-cryptographic digest for local change detection.
	XXHash64 Algorithm = "xxh64"

	// ManifestFile is the conventional name of a persisted manifest.
	ManifestFile = "checksums.json"
)

// ErrUnknownAlgorithm is returned for an unsupported Algorithm value.
var ErrUnknownAlgorithm = errors.New("unknown checksum algorithm")

type (
	// Algorithm selects the digest function.
	Algorithm string

	// Manifest maps a slash-separated path relative to the tree root to a hex digest.
	Manifest map[string]string

	// Exclude reports whether a path (slash-separated, relative to the root)
	// must be left out of a manifest. For a directory, returning true skips
	// the whole subtree.
	Exclude func(rel string, isDir bool) bool

	// Engine computes manifests with a fixed algorithm.
	Engine struct {
		algo Algorithm
	}
)

// New returns an Engine for algo. An empty algo selects MD5.
func New(algo Algorithm) (*Engine, error) {
	if algo == "" {
		algo = MD5
	}
	if _, err := newHash(algo); err != nil {
		return nil, err
	}
	return &Engine{algo: algo}, nil
}

// Default returns an MD5 Engine.
func Default() *Engine { return &Engine{algo: MD5} }

// Algorithm returns the engine's digest algorithm.
func (e *Engine) Algorithm() Algorithm { return e.algo }

// DigestFile streams the file at path through the digest and returns it hex encoded.
func (e *Engine) DigestFile(path string) (sum string, err error) {
	h, err := newHash(e.algo)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err = io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Build walks root in lexical order and digests every regular file.
// Symlinks are not followed and produce no entry.
func (e *Engine) Build(root string, exclude Exclude) (Manifest, error) {
	m := Manifest{}
	err := e.walk(root, exclude, func(rel, path string) error {
		sum, err := e.DigestFile(path)
		if err != nil {
			return err
		}
		m[rel] = sum
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Diff returns, in lexical order, the files under root that are absent from
// old or whose digest differs. Files present in old but missing under root
// are not reported.
func (e *Engine) Diff(old Manifest, root string, exclude Exclude) ([]string, error) {
	var changed []string
	err := e.walk(root, exclude, func(rel, path string) error {
		want, ok := old[rel]
		if !ok {
			changed = append(changed, rel)
			return nil
		}
		sum, err := e.DigestFile(path)
		if err != nil {
			return err
		}
		if sum != want {
			changed = append(changed, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changed, nil
}

// Verify reports whether every entry of expected is present under root with a
// matching digest. It returns the mismatched or missing paths.
func (e *Engine) Verify(expected Manifest, root string) ([]string, error) {
	var bad []string
	for _, rel := range expected.Paths() {
		path := filepath.Join(root, filepath.FromSlash(rel))
		info, err := os.Lstat(path)
		if err != nil || !info.Mode().IsRegular() {
			bad = append(bad, rel)
			continue
		}
		sum, err := e.DigestFile(path)
		if err != nil {
			return nil, err
		}
		if sum != expected[rel] {
			bad = append(bad, rel)
		}
	}
	return bad, nil
}

// Paths returns the manifest keys in lexical order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Equal reports whether both manifests hold the same entries.
func (m Manifest) Equal(other Manifest) bool {
	if len(m) != len(other) {
		return false
	}
	for k, v := range m {
		if w, ok := other[k]; !ok || w != v {
			return false
		}
	}
	return true
}

// ExcludeNames returns an Exclude rejecting any path whose base name is in names.
func ExcludeNames(names ...string) Exclude {
	return func(rel string, _ bool) bool {
		return slices.Contains(names, filepath.Base(filepath.FromSlash(rel)))
	}
}

// walk visits every regular file under root not rejected by exclude.
// filepath.WalkDir reads directories in lexical order.
func (e *Engine) walk(root string, exclude Exclude, visit func(rel, path string) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path: %w", err)
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if exclude != nil && exclude(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return visit(rel, path)
	})
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil //nolint:gosec // see import
	case XXHash64:
		return xxhash.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
}
