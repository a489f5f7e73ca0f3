// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for modforge.
//
// The command tree is built around an App, the composition root holding the
// configuration provider and output streams. Handlers load configuration
// once per invocation and share a logger through the command context.
package cmd
