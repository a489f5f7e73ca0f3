// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"io/fs"

	"github.com/modforge/modforge/pkg/archive"
	"github.com/modforge/modforge/pkg/cache"
	"github.com/modforge/modforge/pkg/metadata"
	"github.com/modforge/modforge/pkg/resolver"
)

// Classify maps an error to the troubleshooting issue that explains it, or
// 0 when none applies.
func Classify(err error) Id {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, metadata.ErrNoDescriptor):
		return DescriptorNotFoundId
	case errors.Is(err, metadata.ErrMalformedDescriptor):
		return DescriptorParseErrorId
	case errors.Is(err, resolver.ErrStrictFailure):
		return StrictResolutionFailedId
	case errors.Is(err, resolver.ErrUnknownModule):
		return ModuleNotFoundId
	case errors.Is(err, archive.ErrArchiveTruncated),
		errors.Is(err, archive.ErrArchiveLayout),
		errors.Is(err, archive.ErrPathEscape),
		errors.Is(err, archive.ErrUnsupportedLink):
		return ArchiveCorruptId
	case errors.Is(err, fs.ErrPermission):
		return PermissionDeniedId
	case errors.Is(err, cache.ErrFetchFailed):
		return RegistryUnavailableId
	}
	return 0
}
