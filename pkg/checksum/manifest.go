// SPDX-License-Identifier: MPL-2.0

package checksum

import (
	"encoding/json"
	"fmt"
	"os"
)

// WriteManifest persists m as indented JSON with keys in lexical order.
func WriteManifest(path string, m Manifest) error {
	// encoding/json sorts map keys.
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checksum manifest: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write checksum manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checksum manifest: %w", err)
	}
	m := Manifest{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse checksum manifest %s: %w", path, err)
	}
	return m, nil
}
