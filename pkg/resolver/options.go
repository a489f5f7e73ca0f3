// SPDX-License-Identifier: MPL-2.0

package resolver

import (
	"github.com/charmbracelet/log"

	"github.com/modforge/modforge/pkg/checksum"
	"github.com/modforge/modforge/pkg/diag"
)

const (
	// DefaultWorkers bounds concurrent sibling prefetches.
	DefaultWorkers = 4
	// DefaultDescriptorCacheSize is the number of release descriptors kept in memory.
	DefaultDescriptorCacheSize = 256
)

type (
	// Severities sets how resolution problems are reported.
	Severities struct {
		Circular        diag.Severity
		VersionMismatch diag.Severity
		Unresolved      diag.Severity
	}

	// Option configures a Resolver.
	Option func(*Resolver)
)

// DefaultSeverities reports cycles and mismatches as warnings and unknown
// modules as errors.
func DefaultSeverities() Severities {
	return Severities{
		Circular:        diag.SeverityWarning,
		VersionMismatch: diag.SeverityWarning,
		Unresolved:      diag.SeverityError,
	}
}

// WithLogger sets the logger for state transitions and per-module activity.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithSeverities overrides the diagnostic severities.
func WithSeverities(s Severities) Option {
	return func(r *Resolver) { r.severities = s }
}

// WithStrict makes a run fail when resolution produced any error diagnostic.
func WithStrict(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// WithWorkers bounds concurrent prefetches. Values below one disable prefetching.
func WithWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// WithDescriptorCacheSize sets how many release descriptors stay in memory.
func WithDescriptorCacheSize(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.descriptorCacheSize = n
		}
	}
}

// WithChecksums sets the engine used to verify installed trees.
func WithChecksums(e *checksum.Engine) Option {
	return func(r *Resolver) {
		if e != nil {
			r.checksums = e
		}
	}
}
