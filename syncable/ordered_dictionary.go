package syncable

import (
	"reflect"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncable/orderestimate"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// OrderedDictionaryEntry is a key/value pair used to construct an
// OrderedDictionary with an explicit initial key order (a plain Go map
// has no order to borrow it from).
type OrderedDictionaryEntry[K comparable] struct {
	Key   K
	Value interface{}
}

// OrderedDictionary composes a Dictionary's value tracking with an
// ordered key sequence. A value-only edit (replacing the value at an
// existing key) does not disturb order; adding, removing or moving a
// key does, and captures originalOrder lazily on the first such
// mutation since the last baseline.
type OrderedDictionary[K comparable] struct {
	BaseObject

	values *Dictionary[K]

	order         []K
	originalOrder []K
	orderCaptured bool

	logger synclog.Logger
	idGen  IDGenerator
}

// OrderedDictionaryOption configures an OrderedDictionary at
// construction time.
type OrderedDictionaryOption[K comparable] func(*OrderedDictionary[K])

// WithOrderedDictionaryLogger attaches a logger to the ordered
// dictionary (and the Dictionary it composes).
func WithOrderedDictionaryLogger[K comparable](logger synclog.Logger) OrderedDictionaryOption[K] {
	return func(od *OrderedDictionary[K]) {
		od.logger = logger
		od.values.logger = logger
	}
}

// WithOrderedDictionaryIDGenerator attaches an IDGenerator used to tag
// changesets produced by the ordered dictionary.
func WithOrderedDictionaryIDGenerator[K comparable](gen IDGenerator) OrderedDictionaryOption[K] {
	return func(od *OrderedDictionary[K]) { od.idGen = gen }
}

// NewOrderedDictionary creates an empty ordered dictionary.
func NewOrderedDictionary[K comparable](opts ...OrderedDictionaryOption[K]) *OrderedDictionary[K] {
	return NewOrderedDictionaryFromEntries[K](nil, opts...)
}

// NewOrderedDictionaryFromEntries creates an ordered dictionary
// populated with the given entries, in the order given. The
// dictionary starts with no tracking state (HasChanges is false).
func NewOrderedDictionaryFromEntries[K comparable](entries []OrderedDictionaryEntry[K], opts ...OrderedDictionaryOption[K]) *OrderedDictionary[K] {
	values := make(map[K]interface{}, len(entries))
	order := make([]K, 0, len(entries))
	for _, e := range entries {
		if _, already := values[e.Key]; !already {
			order = append(order, e.Key)
		}
		values[e.Key] = e.Value
	}

	od := &OrderedDictionary[K]{
		values: NewDictionaryFromValues(values),
		order:  order,
		logger: synclog.NewNopLogger(),
		idGen:  NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(od)
	}
	return od
}

// Get returns the current value at key and whether it is present.
func (od *OrderedDictionary[K]) Get(key K) (interface{}, bool) {
	return od.values.Get(key)
}

// Contains reports whether key currently has a value.
func (od *OrderedDictionary[K]) Contains(key K) bool {
	return od.values.Contains(key)
}

// Enumerate returns a snapshot copy of the dictionary's current
// key/value pairs.
func (od *OrderedDictionary[K]) Enumerate() map[K]interface{} {
	return od.values.Enumerate()
}

// Keys returns the dictionary's current keys in their current order.
func (od *OrderedDictionary[K]) Keys() []K {
	out := make([]K, len(od.order))
	copy(out, od.order)
	return out
}

// Set assigns value at key. Assigning an existing key does not
// disturb order; assigning a new key appends it to the order.
func (od *OrderedDictionary[K]) Set(key K, value interface{}) error {
	if err := od.checkMutable(keyLocation(key)); err != nil {
		return err
	}
	isNew := !od.values.Contains(key)

	if err := od.values.Set(key, value); err != nil {
		return err
	}
	if isNew {
		od.captureOriginalOrderIfNeeded()
		od.order = append(od.order, key)
	}
	return nil
}

// Remove clears key, removing it from both the value map and the
// order sequence. A no-op if the key is already absent.
func (od *OrderedDictionary[K]) Remove(key K) error {
	if err := od.checkMutable(keyLocation(key)); err != nil {
		return err
	}
	if !od.values.Contains(key) {
		return nil
	}

	if err := od.values.Remove(key); err != nil {
		return err
	}
	od.captureOriginalOrderIfNeeded()
	od.order = removeKeyFromSlice(od.order, key)
	od.cancelOrderIfZeroNet()
	return nil
}

// Move relocates key to newIndex in the order sequence, clamping
// newIndex into range. A no-op (and not order-disturbing) if key is
// already at newIndex. Panics if key is not currently present, the
// same way Record panics on an undeclared field: moving a key that
// does not exist has no sensible target.
func (od *OrderedDictionary[K]) Move(key K, newIndex int) error {
	if err := od.checkMutable(keyLocation(key)); err != nil {
		return err
	}
	curIdx := indexOfKey(od.order, key)
	if curIdx == -1 {
		panic("syncable: ordered dictionary move of key not present: " + keyLocation(key))
	}
	if newIndex < 0 {
		newIndex = 0
	}
	if newIndex > len(od.order)-1 {
		newIndex = len(od.order) - 1
	}
	if curIdx == newIndex {
		return nil
	}

	od.captureOriginalOrderIfNeeded()
	moveKeyInSlice(od.order, curIdx, newIndex)
	od.cancelOrderIfZeroNet()
	return nil
}

func (od *OrderedDictionary[K]) captureOriginalOrderIfNeeded() {
	if od.orderCaptured {
		return
	}
	od.originalOrder = append([]K(nil), od.order...)
	od.orderCaptured = true
}

func (od *OrderedDictionary[K]) cancelOrderIfZeroNet() {
	if od.orderCaptured && reflect.DeepEqual(od.order, od.originalOrder) {
		od.orderCaptured = false
		od.originalOrder = nil
	}
}

// HasChanges reports whether any value has been touched or the order
// has been disturbed since the last baseline.
func (od *OrderedDictionary[K]) HasChanges() bool {
	return od.values.HasChanges() || od.orderCaptured
}

// ClearChangeTracking drops all tracking state, making the current
// entries and order the new baseline.
func (od *OrderedDictionary[K]) ClearChangeTracking() {
	od.values.ClearChangeTracking()
	od.orderCaptured = false
	od.originalOrder = nil
}

// MakeImmutable freezes the ordered dictionary and, recursively, any
// nested syncables it holds as values.
func (od *OrderedDictionary[K]) MakeImmutable() {
	od.BaseObject.MakeImmutable()
	od.values.MakeImmutable()
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (od *OrderedDictionary[K]) Copy() Syncable {
	return &OrderedDictionary[K]{
		values:        od.values.Copy().(*Dictionary[K]),
		order:         append([]K(nil), od.order...),
		originalOrder: append([]K(nil), od.originalOrder...),
		orderCaptured: od.orderCaptured,
		logger:        od.logger,
		idGen:         od.idGen,
	}
}

// ImmutableCopy returns a copy of the ordered dictionary that is
// immediately frozen.
func (od *OrderedDictionary[K]) ImmutableCopy() Syncable {
	c := od.Copy()
	c.MakeImmutable()
	return c
}

// OrderedDictionaryChangeset is the changeset shape produced by
// OrderedDictionary: the value-level entries (as Dictionary) plus,
// when order was disturbed, the baseline key order.
type OrderedDictionaryChangeset[K comparable] struct {
	Tag     string
	Entries map[K]PriorValue
	Order   []K
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *OrderedDictionaryChangeset[K]) IsEmpty() bool {
	return c == nil || (len(c.Entries) == 0 && len(c.Order) == 0)
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (od *OrderedDictionary[K]) PeekChangeset() (Changeset, error) {
	valueCS, err := od.values.PeekChangeset()
	if err != nil {
		return nil, err
	}
	dc := valueCS.(*DictionaryChangeset[K])

	var order []K
	if od.orderCaptured {
		order = append([]K(nil), od.originalOrder...)
	}

	if len(dc.Entries) == 0 && order == nil {
		return &OrderedDictionaryChangeset[K]{}, nil
	}
	return &OrderedDictionaryChangeset[K]{Entries: dc.Entries, Order: order}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current state becomes the new baseline.
func (od *OrderedDictionary[K]) Changeset() (Changeset, error) {
	cs, err := od.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := od.idGen.GenerateID()
	if tagErr != nil {
		od.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if odc, ok := cs.(*OrderedDictionaryChangeset[K]); ok {
		odc.Tag = tag
	}

	od.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the ordered dictionary's own pending edits,
// restoring values and order to their captured baseline, and clears
// tracking.
func (od *OrderedDictionary[K]) Rollback() error {
	if err := od.values.Rollback(); err != nil {
		return err
	}
	if od.orderCaptured {
		od.order = append([]K(nil), od.originalOrder...)
	}
	od.orderCaptured = false
	od.originalOrder = nil
	return nil
}

// Undo restores the entries and order described by cs and returns the
// redo changeset.
func (od *OrderedDictionary[K]) Undo(cs Changeset) (Changeset, error) {
	odc, ok := cs.(*OrderedDictionaryChangeset[K])
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.OrderedDictionaryChangeset", typeName(cs))
	}
	if odc.IsEmpty() {
		return &OrderedDictionaryChangeset[K]{}, nil
	}
	if od.HasChanges() {
		return nil, syncerr.HasChanges()
	}

	snapshot := od.Copy().(*OrderedDictionary[K])

	// od.values.Undo finalizes and clears its own tracking internally
	// (its own Changeset() call at the end), so its returned redo must
	// be captured directly rather than re-derived afterwards from
	// od.values, which by then reports no pending changes.
	var valuesRedoEntries map[K]PriorValue
	if len(odc.Entries) > 0 {
		valuesRedo, err := od.values.Undo(&DictionaryChangeset[K]{Entries: odc.Entries})
		if err != nil {
			*od = *snapshot
			return nil, err
		}
		valuesRedoEntries = valuesRedo.(*DictionaryChangeset[K]).Entries
	}

	var orderRedo []K
	if odc.Order != nil {
		orderRedo = append([]K(nil), snapshot.order...)
		od.order = append([]K(nil), odc.Order...)
	}

	od.orderCaptured = false
	od.originalOrder = nil

	tag, tagErr := od.idGen.GenerateID()
	if tagErr != nil {
		od.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	redo := &OrderedDictionaryChangeset[K]{Entries: valuesRedoEntries, Order: orderRedo, Tag: tag}
	if redo.IsEmpty() {
		return &OrderedDictionaryChangeset[K]{}, nil
	}
	return redo, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first):
// the value-level entries fuse as Dictionary does; the order field
// takes the earliest non-nil Order across the list (the oldest known
// baseline order), elided if it matches the dictionary's current
// order.
func (od *OrderedDictionary[K]) MergeChangesets(list []Changeset) (Changeset, error) {
	dictList := make([]Changeset, 0, len(list))
	var fusedOrder []K
	haveOrder := false

	for _, cs := range list {
		odc, ok := cs.(*OrderedDictionaryChangeset[K])
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.OrderedDictionaryChangeset", typeName(cs))
		}
		if odc == nil {
			continue
		}
		dictList = append(dictList, &DictionaryChangeset[K]{Entries: odc.Entries})
		if !haveOrder && odc.Order != nil {
			fusedOrder = odc.Order
			haveOrder = true
		}
	}

	fusedDict, err := od.values.MergeChangesets(dictList)
	if err != nil {
		return nil, err
	}
	dc := fusedDict.(*DictionaryChangeset[K])

	if haveOrder && reflect.DeepEqual(fusedOrder, od.order) {
		haveOrder = false
		fusedOrder = nil
	}
	od.orderCaptured = haveOrder
	if haveOrder {
		od.originalOrder = append([]K(nil), fusedOrder...)
	} else {
		od.originalOrder = nil
	}

	if len(dc.Entries) == 0 && !haveOrder {
		return &OrderedDictionaryChangeset[K]{}, nil
	}
	return &OrderedDictionaryChangeset[K]{Entries: dc.Entries, Order: fusedOrder}, nil
}

// MergeCloudVersion reconciles the ordered dictionary against a remote
// version using pending as the local intent hint.
//
// Values are reconciled per Dictionary.MergeCloudVersion. Order is
// reconciled by computing the move list the local log implies (from
// the baseline order to the current local order, hinted by the keys
// whose values changed), then applying that move list to the remote
// order, restricted to keys that survive in the merged key set; keys
// present in the merged set but missing from the resulting order
// (newly added on either side) are appended at the end.
func (od *OrderedDictionary[K]) MergeCloudVersion(remote *OrderedDictionary[K], pending Changeset) (Changeset, []diag.Notice, error) {
	odc, ok := pending.(*OrderedDictionaryChangeset[K])
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.OrderedDictionaryChangeset", typeName(pending))
	}
	if odc == nil {
		odc = &OrderedDictionaryChangeset[K]{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.OrderedDictionary", "nil")
	}

	preMergeLocal := od.Copy().(*OrderedDictionary[K])

	valuesRedo, notices, err := od.values.MergeCloudVersion(remote.values, &DictionaryChangeset[K]{Entries: odc.Entries})
	if err != nil {
		return nil, nil, err
	}
	redoEntries := valuesRedo.(*DictionaryChangeset[K]).Entries

	baselineOrder := od.order
	if odc.Order != nil {
		baselineOrder = odc.Order
	}

	hints := map[K]struct{}{}
	for k := range odc.Entries {
		hints[k] = struct{}{}
	}

	finalKeys := map[K]struct{}{}
	for _, k := range od.values.Keys() {
		finalKeys[k] = struct{}{}
	}

	var localMoves []K
	if len(baselineOrder) == len(od.order) {
		localMoves = orderestimate.Estimate(baselineOrder, od.order, hints)
	}

	mergedOrder := append([]K(nil), remote.order...)
	for _, k := range localMoves {
		if _, stillExists := finalKeys[k]; !stillExists {
			continue
		}
		targetIdx := indexOfKey(od.order, k)
		curIdx := indexOfKey(mergedOrder, k)
		if targetIdx == -1 || curIdx == -1 {
			continue
		}
		if targetIdx > len(mergedOrder)-1 {
			targetIdx = len(mergedOrder) - 1
		}
		moveKeyInSlice(mergedOrder, curIdx, targetIdx)
	}

	filtered := make([]K, 0, len(finalKeys))
	seen := map[K]struct{}{}
	for _, k := range mergedOrder {
		if _, ok := finalKeys[k]; ok {
			if _, dup := seen[k]; dup {
				continue
			}
			filtered = append(filtered, k)
			seen[k] = struct{}{}
		}
	}
	for k := range finalKeys {
		if _, ok := seen[k]; !ok {
			filtered = append(filtered, k)
		}
	}

	od.order = filtered
	od.orderCaptured = false
	od.originalOrder = nil

	var orderRedo []K
	if !reflect.DeepEqual(filtered, preMergeLocal.order) {
		orderRedo = append([]K(nil), preMergeLocal.order...)
	}

	tag, tagErr := od.idGen.GenerateID()
	if tagErr != nil {
		od.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}

	redo := &OrderedDictionaryChangeset[K]{Entries: redoEntries, Order: orderRedo, Tag: tag}
	if redo.IsEmpty() {
		return &OrderedDictionaryChangeset[K]{}, notices, nil
	}
	return redo, notices, nil
}

func indexOfKey[K comparable](seq []K, key K) int {
	for i, k := range seq {
		if k == key {
			return i
		}
	}
	return -1
}

func moveKeyInSlice[K comparable](seq []K, from, to int) {
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

func removeKeyFromSlice[K comparable](seq []K, key K) []K {
	idx := indexOfKey(seq, key)
	if idx == -1 {
		return seq
	}
	return append(seq[:idx], seq[idx+1:]...)
}
