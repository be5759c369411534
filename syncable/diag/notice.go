// Package diag holds the diagnostics value type used to report
// non-fatal decisions made during MergeCloudVersion, such as a
// conflict that was resolved by keeping the local edit.
//
// A diagnostics sink is observability, never control flow: no merge
// operation's outcome depends on whether the caller inspects the
// returned notices.
package diag

// Kind classifies the sort of decision a Notice reports.
type Kind string

const (
	// KindConflictLocalWins is reported when a location was modified
	// on both the local and remote sides during a cloud merge, and
	// the local edit was kept.
	KindConflictLocalWins Kind = "conflict_local_wins"
	// KindConflictRemoteApplied is reported when a location was
	// modified only on the remote side and the remote value was
	// applied.
	KindConflictRemoteApplied Kind = "remote_applied"
)

// Notice describes a single decision made while reconciling a local
// container against a remote ("cloud") version.
type Notice struct {
	Kind Kind
	// Location names the field, key or member the decision relates
	// to.
	Location string
	Message  string
}

// ConflictLocalWins creates a notice reporting that a conflicting
// field was resolved by keeping the local value.
func ConflictLocalWins(location string) Notice {
	return Notice{
		Kind:     KindConflictLocalWins,
		Location: location,
		Message:  "modified on both sides, local value kept",
	}
}

// RemoteApplied creates a notice reporting that a remote-only edit
// was applied.
func RemoteApplied(location string) Notice {
	return Notice{
		Kind:     KindConflictRemoteApplied,
		Location: location,
		Message:  "modified remotely only, remote value applied",
	}
}
