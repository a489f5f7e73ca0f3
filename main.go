// SPDX-License-Identifier: MPL-2.0

// modforge resolves, caches and installs versioned module releases.
package main

import cmd "github.com/modforge/modforge/cmd/modforge"

func main() {
	cmd.Execute()
}
