// SPDX-License-Identifier: MPL-2.0

// Package registry provides the release sources used by the CLI: a local
// directory of release archives and a remote HTTP registry.
package registry
