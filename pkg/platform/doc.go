// SPDX-License-Identifier: MPL-2.0

// Package platform holds the operating-system facts the archive engine and
// installer depend on: symlink support and names a filesystem refuses.
package platform
