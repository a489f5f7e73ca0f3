// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"path"

	"github.com/modforge/modforge/pkg/archive"
	"github.com/modforge/modforge/pkg/diag"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/semver"
)

// descriptor is a release descriptor read out of its archive, with the
// diagnostics produced while reading it.
type descriptor struct {
	meta  *metadata.Metadata
	diags []diag.Diagnostic
}

// readDescriptor extracts and parses the descriptor of the release archived
// at archivePath without unpacking the rest of the tree. A release without a
// descriptor yields a nil Metadata and a warning.
func (r *Resolver) readDescriptor(archivePath string, name metadata.ModuleName, version semver.Version) (descriptor, error) {
	key := name.String() + "@" + version.String()
	if d, ok := r.descriptors.Get(key); ok {
		return d, nil
	}

	catcher := archive.NewBufferCatcher(metadata.DescriptorFiles...)
	if err := archive.UnpackFile(archivePath, "", archive.UnpackOptions{SkipTopFolder: true, Catcher: catcher}); err != nil {
		return descriptor{}, err
	}

	var chain diag.Chain
	release := name.String() + "-" + version.String()
	file, data, ok := catcher.Best()
	if !ok {
		chain.Addf(diag.SeverityWarning, diag.CodeMalformedDescriptor, &diag.Position{File: release},
			"release %s %s has no descriptor; its dependencies are unknown", name, version)
		d := descriptor{diags: chain.Diagnostics()}
		r.descriptors.Add(key, d)
		return d, nil
	}

	// A malformed descriptor is already recorded in chain.
	meta, _ := metadata.Parse(data, path.Join(release, file), &chain)
	d := descriptor{meta: meta, diags: chain.Diagnostics()}
	r.descriptors.Add(key, d)
	return d, nil
}
