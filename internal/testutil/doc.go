// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers for tests that build module trees and
// release archives on disk, failing the test immediately on setup errors.
//
// Common helpers include tree construction (WriteTree, MustWriteFile,
// MustSymlink), release archives (ReleaseTarGz) and environment management
// (SetConfigHome).
package testutil
