// SPDX-License-Identifier: MPL-2.0

// Package semver parses and orders semantic versions and evaluates version
// range expressions against them.
//
// A [Version] follows semantic-versioning precedence: numeric major, minor and
// patch segments, then pre-release identifiers (a pre-release sorts before the
// release it precedes). Build metadata is preserved but ignored for ordering.
//
// A [Range] is a union of intervals built from an expression. Supported forms:
//
//	1.2.3            exact version
//	=1.2.3           exact version
//	>=1.2.0 <2.0.0   comparator conjunction (whitespace separated)
//	1.x, 1.2.x, 1.2  wildcard (inclusive lower, exclusive upper bound)
//	*, x             any version
//	^1.2.0, ~1.2.0   caret and tilde shorthands
//	1.0.0 - 2.0.0    inclusive hyphen range
//	<1.0.0 || >=2.0.0  disjunction
//
// All types are immutable values; no function in this package has side effects.
package semver
