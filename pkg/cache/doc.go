// SPDX-License-Identifier: MPL-2.0

// Package cache stores downloaded release archives on local disk, keyed by
// module name and version.
//
// Each release lives at a deterministic path under the cache root:
//
//	<root>/<owner>/<name>/<owner>-<name>-<version>.tar.gz
//
// Retrieve fetches a missing release at most once per key, even under
// concurrent callers, and only registers an archive after it was completely
// written.
package cache
