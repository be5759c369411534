package syncable

import (
	"reflect"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncable/orderestimate"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// OrderedSet composes a Set's membership tracking with an ordered
// member sequence. Unlike Array, members are unique: adding a member
// already present is a no-op, the same as Set. A membership edit
// (Add/Remove) disturbs order as well, since it changes the sequence
// length; Move disturbs order without touching membership.
type OrderedSet[M comparable] struct {
	BaseObject

	members *Set[M]

	order         []M
	originalOrder []M
	orderCaptured bool

	logger synclog.Logger
	idGen  IDGenerator
}

// OrderedSetOption configures an OrderedSet at construction time.
type OrderedSetOption[M comparable] func(*OrderedSet[M])

// WithOrderedSetLogger attaches a logger to the ordered set (and the
// Set it composes).
func WithOrderedSetLogger[M comparable](logger synclog.Logger) OrderedSetOption[M] {
	return func(os *OrderedSet[M]) {
		os.logger = logger
		os.members.logger = logger
	}
}

// WithOrderedSetIDGenerator attaches an IDGenerator used to tag
// changesets produced by the ordered set.
func WithOrderedSetIDGenerator[M comparable](gen IDGenerator) OrderedSetOption[M] {
	return func(os *OrderedSet[M]) { os.idGen = gen }
}

// NewOrderedSet creates an empty ordered set.
func NewOrderedSet[M comparable](opts ...OrderedSetOption[M]) *OrderedSet[M] {
	return NewOrderedSetFromMembers[M](nil, opts...)
}

// NewOrderedSetFromMembers creates an ordered set populated with the
// given members, in the order given (later duplicates are dropped).
// The set starts with no tracking state (HasChanges is false).
func NewOrderedSetFromMembers[M comparable](members []M, opts ...OrderedSetOption[M]) *OrderedSet[M] {
	seen := make(map[M]struct{}, len(members))
	order := make([]M, 0, len(members))
	for _, m := range members {
		if _, already := seen[m]; already {
			continue
		}
		seen[m] = struct{}{}
		order = append(order, m)
	}

	os := &OrderedSet[M]{
		members: NewSetFromMembers(order),
		order:   order,
		logger:  synclog.NewNopLogger(),
		idGen:   NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(os)
	}
	return os
}

// Contains reports whether member is currently in the set.
func (os *OrderedSet[M]) Contains(member M) bool {
	return os.members.Contains(member)
}

// Enumerate returns the set's current members in their current order.
func (os *OrderedSet[M]) Enumerate() []M {
	out := make([]M, len(os.order))
	copy(out, os.order)
	return out
}

// Add inserts member at the end of the sequence. A no-op if member is
// already present.
func (os *OrderedSet[M]) Add(member M) error {
	if err := os.checkMutable(memberLocation(member)); err != nil {
		return err
	}
	if os.members.Contains(member) {
		return nil
	}
	if err := os.members.Add(member); err != nil {
		return err
	}
	os.captureOriginalOrderIfNeeded()
	os.order = append(os.order, member)
	return nil
}

// Remove deletes member from the set and its position in the
// sequence. A no-op if member is already absent.
func (os *OrderedSet[M]) Remove(member M) error {
	if err := os.checkMutable(memberLocation(member)); err != nil {
		return err
	}
	if !os.members.Contains(member) {
		return nil
	}
	if err := os.members.Remove(member); err != nil {
		return err
	}
	os.captureOriginalOrderIfNeeded()
	os.order = removeKeyFromSlice(os.order, member)
	os.cancelOrderIfZeroNet()
	return nil
}

// Move relocates member to newIndex in the sequence, clamping newIndex
// into range. A no-op if member is already at newIndex. Panics if
// member is not currently present.
func (os *OrderedSet[M]) Move(member M, newIndex int) error {
	if err := os.checkMutable(memberLocation(member)); err != nil {
		return err
	}
	curIdx := indexOfKey(os.order, member)
	if curIdx == -1 {
		panic("syncable: ordered set move of member not present: " + memberLocation(member))
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(os.order)-1 {
		newIndex = len(os.order) - 1
	}
	if curIdx == newIndex {
		return nil
	}

	os.captureOriginalOrderIfNeeded()
	moveKeyInSlice(os.order, curIdx, newIndex)
	os.cancelOrderIfZeroNet()
	return nil
}

func (os *OrderedSet[M]) captureOriginalOrderIfNeeded() {
	if os.orderCaptured {
		return
	}
	os.originalOrder = append([]M(nil), os.order...)
	os.orderCaptured = true
}

func (os *OrderedSet[M]) cancelOrderIfZeroNet() {
	if os.orderCaptured && reflect.DeepEqual(os.order, os.originalOrder) {
		os.orderCaptured = false
		os.originalOrder = nil
	}
}

// HasChanges reports whether membership has changed or order has been
// disturbed since the last baseline.
func (os *OrderedSet[M]) HasChanges() bool {
	return os.members.HasChanges() || os.orderCaptured
}

// ClearChangeTracking drops all tracking state, making the current
// membership and order the new baseline.
func (os *OrderedSet[M]) ClearChangeTracking() {
	os.members.ClearChangeTracking()
	os.orderCaptured = false
	os.originalOrder = nil
}

// MakeImmutable freezes the ordered set and the Set it composes.
func (os *OrderedSet[M]) MakeImmutable() {
	os.BaseObject.MakeImmutable()
	os.members.MakeImmutable()
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (os *OrderedSet[M]) Copy() Syncable {
	return &OrderedSet[M]{
		members:       os.members.Copy().(*Set[M]),
		order:         append([]M(nil), os.order...),
		originalOrder: append([]M(nil), os.originalOrder...),
		orderCaptured: os.orderCaptured,
		logger:        os.logger,
		idGen:         os.idGen,
	}
}

// ImmutableCopy returns a copy of the ordered set that is immediately
// frozen.
func (os *OrderedSet[M]) ImmutableCopy() Syncable {
	c := os.Copy()
	c.MakeImmutable()
	return c
}

// OrderedSetChangeset is the changeset shape produced by OrderedSet:
// the membership edits (as Set) plus, when order was disturbed, the
// baseline member order.
type OrderedSetChangeset[M comparable] struct {
	Tag     string
	Added   []M
	Removed []M
	Order   []M
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *OrderedSetChangeset[M]) IsEmpty() bool {
	return c == nil || (len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Order) == 0)
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (os *OrderedSet[M]) PeekChangeset() (Changeset, error) {
	memberCS, err := os.members.PeekChangeset()
	if err != nil {
		return nil, err
	}
	sc := memberCS.(*SetChangeset[M])

	var order []M
	if os.orderCaptured {
		order = append([]M(nil), os.originalOrder...)
	}

	if len(sc.Added) == 0 && len(sc.Removed) == 0 && order == nil {
		return &OrderedSetChangeset[M]{}, nil
	}
	return &OrderedSetChangeset[M]{Added: sc.Added, Removed: sc.Removed, Order: order}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current state becomes the new baseline.
func (os *OrderedSet[M]) Changeset() (Changeset, error) {
	cs, err := os.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := os.idGen.GenerateID()
	if tagErr != nil {
		os.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if osc, ok := cs.(*OrderedSetChangeset[M]); ok {
		osc.Tag = tag
	}

	os.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the ordered set's own pending edits, restoring
// membership and order to their captured baseline, and clears
// tracking.
func (os *OrderedSet[M]) Rollback() error {
	if err := os.members.Rollback(); err != nil {
		return err
	}
	if os.orderCaptured {
		os.order = append([]M(nil), os.originalOrder...)
	}
	os.orderCaptured = false
	os.originalOrder = nil
	return nil
}

// Undo restores the membership and order described by cs and returns
// the redo changeset.
func (os *OrderedSet[M]) Undo(cs Changeset) (Changeset, error) {
	osc, ok := cs.(*OrderedSetChangeset[M])
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.OrderedSetChangeset", typeName(cs))
	}
	if osc.IsEmpty() {
		return &OrderedSetChangeset[M]{}, nil
	}
	if os.HasChanges() {
		return nil, syncerr.HasChanges()
	}

	snapshot := os.Copy().(*OrderedSet[M])

	// os.members.Undo finalizes and clears its own tracking internally,
	// so its returned redo must be captured directly rather than
	// re-derived afterwards from os.members, which by then reports no
	// pending changes.
	var membersRedo *SetChangeset[M]
	if len(osc.Added) > 0 || len(osc.Removed) > 0 {
		redo, err := os.members.Undo(&SetChangeset[M]{Added: osc.Added, Removed: osc.Removed})
		if err != nil {
			*os = *snapshot
			return nil, err
		}
		membersRedo = redo.(*SetChangeset[M])
	}

	var orderRedo []M
	if osc.Order != nil {
		orderRedo = append([]M(nil), snapshot.order...)
		os.order = append([]M(nil), osc.Order...)
	}

	os.orderCaptured = false
	os.originalOrder = nil

	tag, tagErr := os.idGen.GenerateID()
	if tagErr != nil {
		os.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	redo := &OrderedSetChangeset[M]{Order: orderRedo, Tag: tag}
	if membersRedo != nil {
		redo.Added = membersRedo.Added
		redo.Removed = membersRedo.Removed
	}
	if redo.IsEmpty() {
		return &OrderedSetChangeset[M]{}, nil
	}
	return redo, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first):
// membership fuses as Set does; the order field takes the earliest
// non-nil Order across the list, elided if it matches the set's
// current order.
func (os *OrderedSet[M]) MergeChangesets(list []Changeset) (Changeset, error) {
	memberList := make([]Changeset, 0, len(list))
	var fusedOrder []M
	haveOrder := false

	for _, cs := range list {
		osc, ok := cs.(*OrderedSetChangeset[M])
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.OrderedSetChangeset", typeName(cs))
		}
		if osc == nil {
			continue
		}
		memberList = append(memberList, &SetChangeset[M]{Added: osc.Added, Removed: osc.Removed})
		if !haveOrder && osc.Order != nil {
			fusedOrder = osc.Order
			haveOrder = true
		}
	}

	fusedMembers, err := os.members.MergeChangesets(memberList)
	if err != nil {
		return nil, err
	}
	sc := fusedMembers.(*SetChangeset[M])

	if haveOrder && reflect.DeepEqual(fusedOrder, os.order) {
		haveOrder = false
		fusedOrder = nil
	}
	os.orderCaptured = haveOrder
	if haveOrder {
		os.originalOrder = append([]M(nil), fusedOrder...)
	} else {
		os.originalOrder = nil
	}

	if len(sc.Added) == 0 && len(sc.Removed) == 0 && !haveOrder {
		return &OrderedSetChangeset[M]{}, nil
	}
	return &OrderedSetChangeset[M]{Added: sc.Added, Removed: sc.Removed, Order: fusedOrder}, nil
}

// MergeCloudVersion reconciles the ordered set against a remote
// version using pending as the local intent hint.
//
// Membership is reconciled per Set.MergeCloudVersion. Order is
// reconciled the same way OrderedDictionary reconciles key order:
// compute the move list the local log implies, apply it to the
// remote order restricted to members that survive in the merged
// membership, then append newly-introduced members at the end.
func (os *OrderedSet[M]) MergeCloudVersion(remote *OrderedSet[M], pending Changeset) (Changeset, []diag.Notice, error) {
	osc, ok := pending.(*OrderedSetChangeset[M])
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.OrderedSetChangeset", typeName(pending))
	}
	if osc == nil {
		osc = &OrderedSetChangeset[M]{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.OrderedSet", "nil")
	}

	preMergeLocal := os.Copy().(*OrderedSet[M])

	membersRedo, notices, err := os.members.MergeCloudVersion(remote.members, &SetChangeset[M]{Added: osc.Added, Removed: osc.Removed})
	if err != nil {
		return nil, nil, err
	}
	redoMembers := membersRedo.(*SetChangeset[M])

	baselineOrder := os.order
	if osc.Order != nil {
		baselineOrder = osc.Order
	}

	hints := map[M]struct{}{}
	for _, m := range osc.Added {
		hints[m] = struct{}{}
	}
	for _, m := range osc.Removed {
		hints[m] = struct{}{}
	}

	finalMembers := map[M]struct{}{}
	for _, m := range os.members.Enumerate() {
		finalMembers[m] = struct{}{}
	}

	var localMoves []M
	if len(baselineOrder) == len(os.order) {
		localMoves = orderestimate.Estimate(baselineOrder, os.order, hints)
	}

	mergedOrder := append([]M(nil), remote.order...)
	for _, m := range localMoves {
		if _, stillExists := finalMembers[m]; !stillExists {
			continue
		}
		targetIdx := indexOfKey(os.order, m)
		curIdx := indexOfKey(mergedOrder, m)
		if targetIdx == -1 || curIdx == -1 {
			continue
		}
		if targetIdx > len(mergedOrder)-1 {
			targetIdx = len(mergedOrder) - 1
		}
		moveKeyInSlice(mergedOrder, curIdx, targetIdx)
	}

	filtered := make([]M, 0, len(finalMembers))
	seen := map[M]struct{}{}
	for _, m := range mergedOrder {
		if _, ok := finalMembers[m]; ok {
			if _, dup := seen[m]; dup {
				continue
			}
			filtered = append(filtered, m)
			seen[m] = struct{}{}
		}
	}
	for m := range finalMembers {
		if _, ok := seen[m]; !ok {
			filtered = append(filtered, m)
		}
	}

	os.order = filtered
	os.orderCaptured = false
	os.originalOrder = nil

	var orderRedo []M
	if !reflect.DeepEqual(filtered, preMergeLocal.order) {
		orderRedo = append([]M(nil), preMergeLocal.order...)
	}

	tag, tagErr := os.idGen.GenerateID()
	if tagErr != nil {
		os.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	redo := &OrderedSetChangeset[M]{Added: redoMembers.Added, Removed: redoMembers.Removed, Order: orderRedo, Tag: tag}
	if redo.IsEmpty() {
		return &OrderedSetChangeset[M]{}, notices, nil
	}
	return redo, notices, nil
}
