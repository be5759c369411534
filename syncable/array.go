package syncable

import (
	"reflect"
	"strconv"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// IndexedMember identifies a member by its position at the time it
// was added or removed. Unlike OrderedSet, Array permits duplicate
// values, so a member's identity across edits is its index rather
// than its value.
type IndexedMember[M comparable] struct {
	Index  int
	Member M
}

// Array is an ordered sequence that, unlike OrderedSet, permits
// duplicate members: a member's identity for tracking purposes is its
// baseline index, not its value. Edits are tracked by snapshotting the
// baseline sequence lazily on first mutation and diffing against it at
// changeset-emission time, rather than by incremental per-call
// bookkeeping: insert, remove and move together would need an
// index-shifting scheme that a single end-of-window diff avoids
// entirely.
type Array[M comparable] struct {
	BaseObject

	members []M

	original []M
	captured bool

	logger synclog.Logger
	idGen  IDGenerator
}

// ArrayOption configures an Array at construction time.
type ArrayOption[M comparable] func(*Array[M])

// WithArrayLogger attaches a logger to the array.
func WithArrayLogger[M comparable](logger synclog.Logger) ArrayOption[M] {
	return func(a *Array[M]) { a.logger = logger }
}

// WithArrayIDGenerator attaches an IDGenerator used to tag changesets
// produced by the array.
func WithArrayIDGenerator[M comparable](gen IDGenerator) ArrayOption[M] {
	return func(a *Array[M]) { a.idGen = gen }
}

// NewArray creates an empty array.
func NewArray[M comparable](opts ...ArrayOption[M]) *Array[M] {
	return NewArrayFromMembers[M](nil, opts...)
}

// NewArrayFromMembers creates an array populated with the given
// members, in the order given, duplicates allowed. The array starts
// with no tracking state (HasChanges is false).
func NewArrayFromMembers[M comparable](members []M, opts ...ArrayOption[M]) *Array[M] {
	a := &Array[M]{
		members: append([]M(nil), members...),
		logger:  synclog.NewNopLogger(),
		idGen:   NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Len returns the array's current length.
func (a *Array[M]) Len() int {
	return len(a.members)
}

// At returns the member at index and whether index is in range.
func (a *Array[M]) At(index int) (M, bool) {
	var zero M
	if index < 0 || index >= len(a.members) {
		return zero, false
	}
	return a.members[index], true
}

// Enumerate returns a snapshot copy of the array's current members.
func (a *Array[M]) Enumerate() []M {
	out := make([]M, len(a.members))
	copy(out, a.members)
	return out
}

func (a *Array[M]) captureIfNeeded() {
	if a.captured {
		return
	}
	a.original = append([]M(nil), a.members...)
	a.captured = true
}

func (a *Array[M]) cancelIfZeroNet() {
	if a.captured && reflect.DeepEqual(a.members, a.original) {
		a.captured = false
		a.original = nil
	}
}

// Append inserts member at the end of the sequence.
func (a *Array[M]) Append(member M) error {
	return a.Insert(len(a.members), member)
}

// Insert inserts member at index, shifting later members right.
// index is clamped into [0, len].
func (a *Array[M]) Insert(index int, member M) error {
	if err := a.checkMutable(indexLocation(index)); err != nil {
		return err
	}
	if index < 0 {
		index = 0
	}
	if index > len(a.members) {
		index = len(a.members)
	}

	a.captureIfNeeded()
	a.members = append(a.members, member)
	copy(a.members[index+1:], a.members[index:len(a.members)-1])
	a.members[index] = member
	a.cancelIfZeroNet()
	return nil
}

// RemoveAt deletes the member at index. A no-op if index is out of
// range.
func (a *Array[M]) RemoveAt(index int) error {
	if err := a.checkMutable(indexLocation(index)); err != nil {
		return err
	}
	if index < 0 || index >= len(a.members) {
		return nil
	}

	a.captureIfNeeded()
	a.members = append(a.members[:index], a.members[index+1:]...)
	a.cancelIfZeroNet()
	return nil
}

// Move relocates the member at from to index to, clamping to into
// range. A no-op if from equals to.
func (a *Array[M]) Move(from, to int) error {
	if err := a.checkMutable(indexLocation(from)); err != nil {
		return err
	}
	if from < 0 || from >= len(a.members) {
		return nil
	}
	if to < 0 {
		to = 0
	}
	if to > len(a.members)-1 {
		to = len(a.members) - 1
	}
	if from == to {
		return nil
	}

	a.captureIfNeeded()
	moveMemberInSlice(a.members, from, to)
	a.cancelIfZeroNet()
	return nil
}

// HasChanges reports whether the sequence has been touched since the
// last baseline.
func (a *Array[M]) HasChanges() bool {
	return a.captured
}

// ClearChangeTracking drops all tracking state, making the current
// sequence the new baseline.
func (a *Array[M]) ClearChangeTracking() {
	a.captured = false
	a.original = nil
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (a *Array[M]) Copy() Syncable {
	return &Array[M]{
		members:  append([]M(nil), a.members...),
		original: append([]M(nil), a.original...),
		captured: a.captured,
		logger:   a.logger,
		idGen:    a.idGen,
	}
}

// ImmutableCopy returns a copy of the array that is immediately
// frozen.
func (a *Array[M]) ImmutableCopy() Syncable {
	c := a.Copy()
	c.MakeImmutable()
	return c
}

// ArrayChangeset is the changeset shape produced by Array: the members
// added and removed since baseline, identified by index, plus the
// full baseline sequence used to restore both membership and order
// together on Undo.
type ArrayChangeset[M comparable] struct {
	Tag     string
	Added   []IndexedMember[M]
	Removed []IndexedMember[M]
	Order   []M
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *ArrayChangeset[M]) IsEmpty() bool {
	return c == nil || (len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Order) == 0)
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (a *Array[M]) PeekChangeset() (Changeset, error) {
	if !a.captured || reflect.DeepEqual(a.members, a.original) {
		return &ArrayChangeset[M]{}, nil
	}

	added, removed := diffByIndex(a.original, a.members)
	return &ArrayChangeset[M]{
		Added:   added,
		Removed: removed,
		Order:   append([]M(nil), a.original...),
	}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current sequence becomes the new baseline.
func (a *Array[M]) Changeset() (Changeset, error) {
	cs, err := a.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := a.idGen.GenerateID()
	if tagErr != nil {
		a.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if ac, ok := cs.(*ArrayChangeset[M]); ok {
		ac.Tag = tag
	}

	a.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the array's own pending edits, restoring the
// captured baseline sequence, and clears tracking.
func (a *Array[M]) Rollback() error {
	if a.captured {
		a.members = append([]M(nil), a.original...)
	}
	a.captured = false
	a.original = nil
	return nil
}

// Undo restores the sequence described by cs and returns the redo
// changeset.
func (a *Array[M]) Undo(cs Changeset) (Changeset, error) {
	ac, ok := cs.(*ArrayChangeset[M])
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.ArrayChangeset", typeName(cs))
	}
	if ac.IsEmpty() {
		return &ArrayChangeset[M]{}, nil
	}
	if a.HasChanges() {
		return nil, syncerr.HasChanges()
	}

	redoOrder := append([]M(nil), a.members...)
	a.members = append([]M(nil), ac.Order...)
	a.captured = false
	a.original = nil

	tag, tagErr := a.idGen.GenerateID()
	if tagErr != nil {
		a.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	added, removed := diffByIndex(ac.Order, redoOrder)
	redo := &ArrayChangeset[M]{Added: added, Removed: removed, Order: redoOrder, Tag: tag}
	if redo.IsEmpty() {
		return &ArrayChangeset[M]{}, nil
	}
	return redo, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first):
// the earliest known baseline Order is kept and diffed against the
// array's current members to recompute Added/Removed, elided if the
// baseline matches the array's current sequence.
func (a *Array[M]) MergeChangesets(list []Changeset) (Changeset, error) {
	var fusedOrder []M
	haveOrder := false

	for _, cs := range list {
		ac, ok := cs.(*ArrayChangeset[M])
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.ArrayChangeset", typeName(cs))
		}
		if ac == nil || ac.IsEmpty() {
			continue
		}
		if !haveOrder {
			fusedOrder = ac.Order
			haveOrder = true
		}
	}

	if haveOrder && reflect.DeepEqual(fusedOrder, a.members) {
		haveOrder = false
		fusedOrder = nil
	}

	a.captured = haveOrder
	if haveOrder {
		a.original = append([]M(nil), fusedOrder...)
	} else {
		a.original = nil
	}

	if !haveOrder {
		return &ArrayChangeset[M]{}, nil
	}

	added, removed := diffByIndex(fusedOrder, a.members)
	return &ArrayChangeset[M]{Added: added, Removed: removed, Order: fusedOrder}, nil
}

// MergeCloudVersion reconciles the array against a remote version
// using pending as the local intent hint.
//
// Because members are not individually addressable once duplicates
// are allowed, reconciliation works at the level of per-value
// multiset counts rather than per-index identity: for each distinct
// value, the baseline, local and remote occurrence counts are
// compared using the same local/remote/both-changed policy Set uses
// for presence, and the final count becomes the number of copies of
// that value in the result. The final sequence starts from the
// local order (the ordered-collection conflict policy: local order
// wins) and is then adjusted by appending or trimming trailing copies
// of any value whose final count differs from its current local
// count.
func (a *Array[M]) MergeCloudVersion(remote *Array[M], pending Changeset) (Changeset, []diag.Notice, error) {
	ac, ok := pending.(*ArrayChangeset[M])
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.ArrayChangeset", typeName(pending))
	}
	if ac == nil {
		ac = &ArrayChangeset[M]{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.Array", "nil")
	}

	preMergeLocal := append([]M(nil), a.members...)
	baseline := a.members
	if !ac.IsEmpty() {
		baseline = ac.Order
	}

	baselineCounts := countMembers(baseline)
	localCounts := countMembers(a.members)
	remoteCounts := countMembers(remote.members)

	distinct := map[M]struct{}{}
	for m := range baselineCounts {
		distinct[m] = struct{}{}
	}
	for m := range localCounts {
		distinct[m] = struct{}{}
	}
	for m := range remoteCounts {
		distinct[m] = struct{}{}
	}

	var notices []diag.Notice
	finalCounts := map[M]int{}
	for m := range distinct {
		b := baselineCounts[m]
		l := localCounts[m]
		r := remoteCounts[m]

		switch {
		case l != b && r == b:
			finalCounts[m] = l
		case l == b && r != b:
			finalCounts[m] = r
			notices = append(notices, diag.RemoteApplied(memberLocation(m)))
		case l != b && r != b && l != r:
			finalCounts[m] = l
			notices = append(notices, diag.ConflictLocalWins(memberLocation(m)))
		default:
			finalCounts[m] = l
		}
	}

	merged := append([]M(nil), a.members...)
	for m, final := range finalCounts {
		current := localCounts[m]
		if final == current {
			continue
		}
		if final > current {
			for i := 0; i < final-current; i++ {
				merged = append(merged, m)
			}
			continue
		}
		toRemove := current - final
		for i := len(merged) - 1; i >= 0 && toRemove > 0; i-- {
			if merged[i] == m {
				merged = append(merged[:i], merged[i+1:]...)
				toRemove--
			}
		}
	}

	a.members = merged
	a.captured = false
	a.original = nil

	tag, tagErr := a.idGen.GenerateID()
	if tagErr != nil {
		a.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	if reflect.DeepEqual(merged, preMergeLocal) {
		return &ArrayChangeset[M]{}, notices, nil
	}

	added, removed := diffByIndex(preMergeLocal, merged)
	redo := &ArrayChangeset[M]{Added: added, Removed: removed, Order: preMergeLocal, Tag: tag}
	return redo, notices, nil
}

func countMembers[M comparable](members []M) map[M]int {
	counts := make(map[M]int, len(members))
	for _, m := range members {
		counts[m]++
	}
	return counts
}

// diffByIndex computes, via longest-common-subsequence matching
// between src and dst, the entries removed from src and added in dst
// to produce dst, each identified by its index in the sequence it
// belongs to.
func diffByIndex[M comparable](src, dst []M) ([]IndexedMember[M], []IndexedMember[M]) {
	n, m := len(src), len(dst)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if src[i] == dst[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var removed, added []IndexedMember[M]
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case src[i] == dst[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			removed = append(removed, IndexedMember[M]{Index: i, Member: src[i]})
			i++
		default:
			added = append(added, IndexedMember[M]{Index: j, Member: dst[j]})
			j++
		}
	}
	for ; i < n; i++ {
		removed = append(removed, IndexedMember[M]{Index: i, Member: src[i]})
	}
	for ; j < m; j++ {
		added = append(added, IndexedMember[M]{Index: j, Member: dst[j]})
	}
	return added, removed
}

func moveMemberInSlice[M comparable](seq []M, from, to int) {
	if from == to {
		return
	}
	v := seq[from]
	if from < to {
		copy(seq[from:to], seq[from+1:to+1])
	} else {
		copy(seq[to+1:from+1], seq[to:from])
	}
	seq[to] = v
}

func indexLocation(index int) string {
	return "[" + strconv.Itoa(index) + "]"
}
