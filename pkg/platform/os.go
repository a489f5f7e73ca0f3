// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"runtime"
	"strings"
)

// OS name constants for runtime.GOOS comparisons.
const (
	Windows = "windows"
	Darwin  = "darwin"
	Linux   = "linux"
)

// reservedNames cannot be used as file or directory names on Windows,
// regardless of extension.
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true,
	"COM5": true, "COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true,
	"LPT5": true, "LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SupportsSymlinks reports whether unpacked symlink entries can be
// materialized on goos without elevated privileges.
func SupportsSymlinks(goos string) bool {
	return goos != Windows
}

// CurrentSupportsSymlinks is SupportsSymlinks for the running OS.
func CurrentSupportsSymlinks() bool {
	return SupportsSymlinks(runtime.GOOS)
}

// IsReservedName reports whether name (with or without extension) is a
// Windows device name. Install directories are checked on every OS so that
// an install tree stays portable.
func IsReservedName(name string) bool {
	upper := strings.ToUpper(name)
	if idx := strings.IndexByte(upper, '.'); idx != -1 {
		upper = upper[:idx]
	}
	return reservedNames[upper]
}
