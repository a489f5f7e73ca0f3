// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/modforge/modforge/pkg/metadata"
)

// LockFile is the name of the lock file written into the install root.
const LockFile = "modforge.lock.toml"

type (
	// Lock records the releases an install selected.
	Lock struct {
		Root     string          `toml:"root,omitempty"`
		Releases []LockedRelease `toml:"release"`
	}

	// LockedRelease is one entry of a Lock.
	LockedRelease struct {
		Name       string `toml:"name"`
		Version    string `toml:"version"`
		Range      string `toml:"range,omitempty"`
		PURL       string `toml:"purl"`
		RequiredBy string `toml:"required_by,omitempty"`
		Archive    string `toml:"archive,omitempty"`
	}
)

// NewLock describes the releases of res in resolution order.
func NewLock(res *Result) Lock {
	var l Lock
	if res.Root != nil && !res.Root.Name.IsZero() {
		l.Root = res.Root.PURL()
	}
	for _, rel := range res.Releases {
		v := rel.Version
		l.Releases = append(l.Releases, LockedRelease{
			Name:       rel.Name.String(),
			Version:    v.String(),
			Range:      rel.RangeText,
			PURL:       metadata.PURL(rel.Name, &v),
			RequiredBy: rel.RequiredBy.String(),
			Archive:    rel.Archive,
		})
	}
	return l
}

// WriteLock writes l to path.
func WriteLock(path string, l Lock) error {
	data, err := toml.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}
	return nil
}

// ReadLock reads a lock file written by WriteLock.
func ReadLock(path string) (Lock, error) {
	var l Lock
	data, err := os.ReadFile(path)
	if err != nil {
		return l, err
	}
	if err := toml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("decode lock file %s: %w", path, err)
	}
	return l, nil
}
