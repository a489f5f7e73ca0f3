// SPDX-License-Identifier: MPL-2.0

// Package config handles modforge configuration using Viper with CUE as the file format.
//
// Configuration is loaded from ~/.config/modforge/config.cue (or XDG equivalent on Linux,
// ~/Library/Application Support/modforge/config.cue on macOS, %APPDATA%\modforge\config.cue
// on Windows), falling back to a project-local .modforge.cue. Files are validated against
// the embedded CUE schema (config_schema.cue). Every key can be overridden from the
// environment with the MODFORGE_ prefix, e.g. MODFORGE_CACHE_DIR or MODFORGE_RESOLVE_STRICT.
package config
