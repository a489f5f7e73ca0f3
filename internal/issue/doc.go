// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and the Markdown troubleshooting
// pages the CLI renders for them.
package issue
