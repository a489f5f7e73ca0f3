// SPDX-License-Identifier: MPL-2.0

package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/modforge/modforge/pkg/diag"
)

// ErrNoDescriptor is returned by Load when a directory holds neither descriptor form.
var ErrNoDescriptor = errors.New("no module descriptor found")

// DescriptorFiles lists the recognized descriptor names in lookup order.
var DescriptorFiles = []string{JSONFile, LegacyFile}

// Find returns the path of the descriptor in dir. The strict form wins when
// both are present.
func Find(dir string) (string, error) {
	for _, name := range DescriptorFiles {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%s: %w", dir, ErrNoDescriptor)
}

// Load reads the descriptor of the module rooted at dir.
func Load(dir string, chain *diag.Chain) (*Metadata, error) {
	path, err := Find(dir)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path, chain)
}

// Parse reads data with the reader matching the base name of file: the
// legacy form for a Modulefile, the strict form otherwise.
func Parse(data []byte, file string, chain *diag.Chain) (*Metadata, error) {
	if filepath.Base(file) == LegacyFile {
		return ParseModulefile(data, file, chain)
	}
	return ParseJSON(data, file, chain)
}
