// SPDX-License-Identifier: MPL-2.0

package resolver

const (
	// StateStart is a run that has not begun.
	StateStart State = iota
	// StateCollecting reads the root descriptor and seeds the seen set.
	StateCollecting
	// StateResolving walks the dependency graph and selects versions.
	StateResolving
	// StateFetching ensures archives are cached and unpacks them.
	StateFetching
	// StateInstalled is a completed run (terminal state).
	StateInstalled
	// StateFailed is a run aborted by cancellation or strict mode (terminal state).
	StateFailed
)

// State is the phase of a resolution run.
type State int

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateCollecting:
		return "collecting"
	case StateResolving:
		return "resolving"
	case StateFetching:
		return "fetching"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateInstalled || s == StateFailed
}
