package syncable

import (
	"fmt"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// Set is an unordered collection of comparable members, tracking
// membership changes as two disjoint sets: members added since the
// last baseline and members removed since the last baseline. Adding a
// member that is currently in the removed set cancels the pending
// removal (zero-net); removing a member that is currently in the
// added set cancels the pending addition.
type Set[M comparable] struct {
	BaseObject

	members map[M]struct{}
	added   map[M]struct{}
	removed map[M]struct{}

	logger synclog.Logger
	idGen  IDGenerator
}

// SetOption configures a Set at construction time.
type SetOption[M comparable] func(*Set[M])

// WithSetLogger attaches a logger to the set.
func WithSetLogger[M comparable](logger synclog.Logger) SetOption[M] {
	return func(s *Set[M]) { s.logger = logger }
}

// WithSetIDGenerator attaches an IDGenerator used to tag changesets
// produced by the set.
func WithSetIDGenerator[M comparable](gen IDGenerator) SetOption[M] {
	return func(s *Set[M]) { s.idGen = gen }
}

// NewSet creates an empty set.
func NewSet[M comparable](opts ...SetOption[M]) *Set[M] {
	return NewSetFromMembers(nil, opts...)
}

// NewSetFromMembers creates a set populated with an initial list of
// members. The set starts with no tracking state (HasChanges is
// false).
func NewSetFromMembers[M comparable](members []M, opts ...SetOption[M]) *Set[M] {
	m := make(map[M]struct{}, len(members))
	for _, member := range members {
		m[member] = struct{}{}
	}

	s := &Set[M]{
		members: m,
		added:   map[M]struct{}{},
		removed: map[M]struct{}{},
		logger:  synclog.NewNopLogger(),
		idGen:   NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Contains reports whether member is currently in the set.
func (s *Set[M]) Contains(member M) bool {
	_, ok := s.members[member]
	return ok
}

// Enumerate returns a snapshot slice of the set's current members, in
// unspecified order.
func (s *Set[M]) Enumerate() []M {
	out := make([]M, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	return out
}

// Add inserts member into the set. A no-op if member is already
// present. Adding back a member that was removed since the last
// baseline cancels the pending removal.
func (s *Set[M]) Add(member M) error {
	if err := s.checkMutable(memberLocation(member)); err != nil {
		return err
	}
	if _, exists := s.members[member]; exists {
		return nil
	}

	s.members[member] = struct{}{}
	if _, wasRemoved := s.removed[member]; wasRemoved {
		delete(s.removed, member)
	} else {
		s.added[member] = struct{}{}
	}

	s.logger.Debug("set member added", synclog.StringField("member", memberLocation(member)))
	return nil
}

// Remove deletes member from the set. A no-op if member is already
// absent. Removing a member that was added since the last baseline
// cancels the pending addition.
func (s *Set[M]) Remove(member M) error {
	if err := s.checkMutable(memberLocation(member)); err != nil {
		return err
	}
	if _, exists := s.members[member]; !exists {
		return nil
	}

	delete(s.members, member)
	if _, wasAdded := s.added[member]; wasAdded {
		delete(s.added, member)
	} else {
		s.removed[member] = struct{}{}
	}

	s.logger.Debug("set member removed", synclog.StringField("member", memberLocation(member)))
	return nil
}

// HasChanges reports whether any member has been added or removed
// since the last baseline.
func (s *Set[M]) HasChanges() bool {
	return len(s.added) > 0 || len(s.removed) > 0
}

// ClearChangeTracking drops all tracking state, making the current
// membership the new baseline.
func (s *Set[M]) ClearChangeTracking() {
	s.added = map[M]struct{}{}
	s.removed = map[M]struct{}{}
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (s *Set[M]) Copy() Syncable {
	members := make(map[M]struct{}, len(s.members))
	for m := range s.members {
		members[m] = struct{}{}
	}
	added := make(map[M]struct{}, len(s.added))
	for m := range s.added {
		added[m] = struct{}{}
	}
	removed := make(map[M]struct{}, len(s.removed))
	for m := range s.removed {
		removed[m] = struct{}{}
	}

	return &Set[M]{
		members: members,
		added:   added,
		removed: removed,
		logger:  s.logger,
		idGen:   s.idGen,
	}
}

// ImmutableCopy returns a copy of the set that is immediately frozen.
func (s *Set[M]) ImmutableCopy() Syncable {
	c := s.Copy()
	c.MakeImmutable()
	return c
}

// SetChangeset is the changeset shape produced by Set: the members
// added and removed since baseline.
type SetChangeset[M comparable] struct {
	Tag     string
	Added   []M
	Removed []M
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *SetChangeset[M]) IsEmpty() bool {
	return c == nil || (len(c.Added) == 0 && len(c.Removed) == 0)
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (s *Set[M]) PeekChangeset() (Changeset, error) {
	if len(s.added) == 0 && len(s.removed) == 0 {
		return &SetChangeset[M]{}, nil
	}

	added := make([]M, 0, len(s.added))
	for m := range s.added {
		added = append(added, m)
	}
	removed := make([]M, 0, len(s.removed))
	for m := range s.removed {
		removed = append(removed, m)
	}
	return &SetChangeset[M]{Added: added, Removed: removed}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current membership becomes the new baseline.
func (s *Set[M]) Changeset() (Changeset, error) {
	cs, err := s.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := s.idGen.GenerateID()
	if tagErr != nil {
		s.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if sc, ok := cs.(*SetChangeset[M]); ok {
		sc.Tag = tag
	}

	s.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the set's own pending membership changes,
// restoring the baseline membership, and clears tracking.
func (s *Set[M]) Rollback() error {
	for m := range s.added {
		delete(s.members, m)
	}
	for m := range s.removed {
		s.members[m] = struct{}{}
	}
	s.ClearChangeTracking()
	return nil
}

// Undo restores the membership described by cs and returns the redo
// changeset.
//
// Undo requires the set to currently have no pending local edits; a
// caller with pending edits must Rollback first.
func (s *Set[M]) Undo(cs Changeset) (Changeset, error) {
	sc, ok := cs.(*SetChangeset[M])
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.SetChangeset", typeName(cs))
	}
	if sc.IsEmpty() {
		return &SetChangeset[M]{}, nil
	}
	if s.HasChanges() {
		return nil, syncerr.HasChanges()
	}

	snapshot := s.Copy().(*Set[M])

	for _, m := range sc.Added {
		if err := s.Remove(m); err != nil {
			*s = *snapshot
			return nil, err
		}
	}
	for _, m := range sc.Removed {
		if err := s.Add(m); err != nil {
			*s = *snapshot
			return nil, err
		}
	}

	redo, err := s.Changeset()
	if err != nil {
		*s = *snapshot
		return nil, err
	}
	return redo, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first)
// into a single equivalent changeset: the added-sets are unioned and
// the removed-sets are unioned, and a member whose net effect across
// the list is nil (its first mention and last mention imply the same
// before/after presence) is elided from the fused result.
func (s *Set[M]) MergeChangesets(list []Changeset) (Changeset, error) {
	type net struct {
		first, last bool // true = added, false = removed
	}
	nets := map[M]*net{}
	order := make([]M, 0)

	for _, cs := range list {
		sc, ok := cs.(*SetChangeset[M])
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.SetChangeset", typeName(cs))
		}
		if sc == nil {
			continue
		}
		for _, m := range sc.Added {
			n, seen := nets[m]
			if !seen {
				n = &net{first: true}
				nets[m] = n
				order = append(order, m)
			}
			n.last = true
		}
		for _, m := range sc.Removed {
			n, seen := nets[m]
			if !seen {
				n = &net{first: false}
				nets[m] = n
				order = append(order, m)
			}
			n.last = false
		}
	}

	var fusedAdded, fusedRemoved []M
	for _, m := range order {
		n := nets[m]
		// Baseline presence (before the first changeset in the list):
		// absent if the member's first mention was an add, present if
		// its first mention was a removal. Net changed iff that
		// baseline presence differs from the final (post-last-mention)
		// presence.
		baselinePresent := !n.first
		finalPresent := n.last
		if baselinePresent == finalPresent {
			continue
		}
		if finalPresent {
			fusedAdded = append(fusedAdded, m)
		} else {
			fusedRemoved = append(fusedRemoved, m)
		}
	}

	s.added = map[M]struct{}{}
	s.removed = map[M]struct{}{}
	for _, m := range fusedAdded {
		s.added[m] = struct{}{}
	}
	for _, m := range fusedRemoved {
		s.removed[m] = struct{}{}
	}

	if len(fusedAdded) == 0 && len(fusedRemoved) == 0 {
		return &SetChangeset[M]{}, nil
	}
	return &SetChangeset[M]{Added: fusedAdded, Removed: fusedRemoved}, nil
}

// MergeCloudVersion reconciles the set against a remote version using
// pending (the set's own not-yet-cleared edit log) as the local intent
// hint.
//
// Per member: if changed locally and not remotely, local is kept; if
// changed remotely and not locally, remote is taken; if changed on
// both sides, both changes necessarily land on the same final
// presence (a boolean has only one direction to change away from a
// given baseline), so this is treated as agreement rather than a
// conflict, and no notice is recorded; if unmodified on both, the
// baseline presence is kept.
func (s *Set[M]) MergeCloudVersion(remote *Set[M], pending Changeset) (Changeset, []diag.Notice, error) {
	sc, ok := pending.(*SetChangeset[M])
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.SetChangeset", typeName(pending))
	}
	if sc == nil {
		sc = &SetChangeset[M]{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.Set", "nil")
	}

	preMergeLocal := s.Copy().(*Set[M])
	baseline := s.Copy().(*Set[M])
	// The copy still carries the pending edits as live tracking, which
	// Undo would refuse; the pending changeset alone defines the baseline.
	baseline.ClearChangeTracking()
	if _, err := baseline.Undo(sc); err != nil {
		return nil, nil, err
	}

	candidates := map[M]struct{}{}
	for m := range s.members {
		candidates[m] = struct{}{}
	}
	for m := range remote.members {
		candidates[m] = struct{}{}
	}
	for m := range baseline.members {
		candidates[m] = struct{}{}
	}

	var notices []diag.Notice
	finalMembers := map[M]struct{}{}

	for m := range candidates {
		_, localPresent := s.members[m]
		_, baselinePresent := baseline.members[m]
		_, remotePresent := remote.members[m]

		localChanged := localPresent != baselinePresent
		remoteChanged := remotePresent != baselinePresent

		switch {
		case localChanged && !remoteChanged:
			if localPresent {
				finalMembers[m] = struct{}{}
			}
		case !localChanged && remoteChanged:
			if remotePresent {
				finalMembers[m] = struct{}{}
			}
			notices = append(notices, diag.RemoteApplied(memberLocation(m)))
		case localChanged && remoteChanged:
			// Both sides necessarily changed to the same final
			// presence (see doc comment); no conflict to flag.
			if localPresent {
				finalMembers[m] = struct{}{}
			}
		default:
			if baselinePresent {
				finalMembers[m] = struct{}{}
			}
		}
	}

	s.members = finalMembers
	s.added = map[M]struct{}{}
	s.removed = map[M]struct{}{}
	// Tracking is captured against preMergeLocal, not baseline: the
	// redo Undo(redo) must restore is the pre-merge local state, never
	// the (unrelated) baseline pending was computed against.
	for m := range finalMembers {
		if _, wasLocal := preMergeLocal.members[m]; !wasLocal {
			s.added[m] = struct{}{}
		}
	}
	for m := range preMergeLocal.members {
		if _, stillPresent := finalMembers[m]; !stillPresent {
			s.removed[m] = struct{}{}
		}
	}

	redo, err := s.Changeset()
	if err != nil {
		*s = *preMergeLocal
		return nil, nil, err
	}
	return redo, notices, nil
}

func memberLocation[M comparable](member M) string {
	return fmt.Sprintf("%v", member)
}
