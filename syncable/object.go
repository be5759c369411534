// Package syncable provides mutable data containers that record the
// edits applied to them so that those edits can be replayed in
// reverse (undo), consolidated across a sequence of edit logs
// (merge), or reconciled against a concurrently modified remote value
// (merge-cloud).
//
// Every container kind in this package is built from the same small
// set of primitives: an immutability latch shared by BaseObject, the
// Absent/NestedRef sentinels in sentinel.go, and the universal
// tracking-update rule each container applies on every mutation (seen
// in the matching cancelIfZeroNet-style helper on each type).
package syncable

import "github.com/newstack-cloud/syncable/syncerr"

// Changeset is the structured description of the edits applied to a
// syncable container between a baseline and the current state.
//
// Different container kinds produce different concrete changeset
// types (RecordChangeset, DictionaryChangeset, SetChangeset,
// OrderedDictionaryChangeset, OrderedSetChangeset); a changeset's own
// shape is deliberately not exposed through this interface beyond
// emptiness, the same way a blueprint's set of resource changes is
// checked at runtime rather than distinguished at compile time.
type Changeset interface {
	// IsEmpty reports whether the changeset carries no effective
	// edits, per the empty-equivalent elision rule: a changeset whose
	// every entry's net effect is nil is reported as no changes.
	IsEmpty() bool
}

// Syncable is the contract a container must satisfy to be nested
// inside another syncable container's field or value. A nested
// syncable's own changeset is homomorphic to its parent's: the
// parent never inspects the nested object's internals, only calls
// through this interface.
type Syncable interface {
	// IsImmutable reports whether the object has been frozen.
	IsImmutable() bool
	// MakeImmutable freezes the object and, recursively, any nested
	// syncables it holds.
	MakeImmutable()
	// HasChanges reports whether the object (or any nested syncable
	// it holds) has been touched since the last baseline.
	HasChanges() bool
	// ClearChangeTracking drops all tracking state, making the
	// current state the new baseline. Nested syncables are cleared
	// too.
	ClearChangeTracking()
	// Changeset returns the accumulated edits since baseline and
	// clears tracking (baseline becomes the current state).
	Changeset() (Changeset, error)
	// PeekChangeset returns the accumulated edits since baseline
	// without resetting tracking.
	PeekChangeset() (Changeset, error)
	// Undo restores the state described by cs and returns the redo
	// changeset: the changeset that would reapply the edits cs
	// undid.
	Undo(cs Changeset) (Changeset, error)
	// Rollback discards the object's own pending edits, restoring its
	// last baseline, and clears tracking. Unlike Undo, Rollback acts on
	// the object's own live tracking rather than a caller-supplied
	// changeset, so it carries no has-changes precondition.
	Rollback() error
	// Copy returns a deep, independent copy that starts mutable (even
	// if the source is immutable) and shares no tracking state with
	// the source.
	Copy() Syncable
}

// BaseObject is the immutability latch shared by every container in
// this package. It intentionally does not track a has-changes flag:
// each container derives HasChanges from the state of its own
// tracking maps, so that the zero-net cancellation rule (a location
// edited back to its baseline value) is automatically reflected
// without a separate flag to keep in sync.
type BaseObject struct {
	immutable bool
}

// IsImmutable reports whether the object has been frozen.
func (b *BaseObject) IsImmutable() bool {
	return b.immutable
}

// MakeImmutable freezes the object. Containers that hold nested
// syncables override this to freeze them recursively.
func (b *BaseObject) MakeImmutable() {
	b.immutable = true
}

// checkMutable returns an Immutable error if the object is frozen.
// location names the field/key/member a caller is about to mutate,
// for inclusion in the error.
func (b *BaseObject) checkMutable(location string) error {
	if b.immutable {
		return syncerr.Immutable(location)
	}
	return nil
}
