// SPDX-License-Identifier: MPL-2.0

// Package resolver turns the declared dependencies of a root module into
// concrete releases and installs them.
//
// A run moves through the states Start, Collecting, Resolving, Fetching and
// ends Installed or Failed. Resolution walks the dependency graph depth
// first, choosing the highest available version that satisfies each declared
// range. Problems such as cycles, unsatisfiable ranges and unknown modules
// are reported as diagnostics and the walk continues; only strict mode turns
// an error diagnostic into a failed run.
package resolver
