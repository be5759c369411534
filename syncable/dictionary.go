package syncable

import (
	"fmt"
	"reflect"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// Dictionary is an unordered mapping from a comparable key type to
// arbitrary values, tracking per-key original values under the same
// universal rule Record applies per field: a key's prior value is
// captured on first touch since the last baseline, and editing a key
// back to its baseline value cancels the pending edit.
//
// Unlike Record, a Dictionary has no fixed key set declared up front:
// any key may be added, removed or replaced at any time.
type Dictionary[K comparable] struct {
	BaseObject

	values   map[K]interface{}
	original map[K]PriorValue

	logger synclog.Logger
	idGen  IDGenerator
}

// DictionaryOption configures a Dictionary at construction time.
type DictionaryOption[K comparable] func(*Dictionary[K])

// WithDictionaryLogger attaches a logger to the dictionary.
func WithDictionaryLogger[K comparable](logger synclog.Logger) DictionaryOption[K] {
	return func(d *Dictionary[K]) { d.logger = logger }
}

// WithDictionaryIDGenerator attaches an IDGenerator used to tag
// changesets produced by the dictionary.
func WithDictionaryIDGenerator[K comparable](gen IDGenerator) DictionaryOption[K] {
	return func(d *Dictionary[K]) { d.idGen = gen }
}

// NewDictionary creates an empty dictionary.
func NewDictionary[K comparable](opts ...DictionaryOption[K]) *Dictionary[K] {
	return NewDictionaryFromValues(nil, opts...)
}

// NewDictionaryFromValues creates a dictionary populated with an
// initial set of entries. The dictionary starts with no tracking
// state (HasChanges is false).
func NewDictionaryFromValues[K comparable](values map[K]interface{}, opts ...DictionaryOption[K]) *Dictionary[K] {
	vals := make(map[K]interface{}, len(values))
	for k, v := range values {
		vals[k] = v
	}

	d := &Dictionary[K]{
		values:   vals,
		original: map[K]PriorValue{},
		logger:   synclog.NewNopLogger(),
		idGen:    NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Get returns the current value at key and whether it is present.
func (d *Dictionary[K]) Get(key K) (interface{}, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Contains reports whether key currently has a value.
func (d *Dictionary[K]) Contains(key K) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the dictionary's current keys in unspecified order.
func (d *Dictionary[K]) Keys() []K {
	keys := make([]K, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	return keys
}

// Enumerate returns a snapshot copy of the dictionary's current
// key/value pairs.
func (d *Dictionary[K]) Enumerate() map[K]interface{} {
	out := make(map[K]interface{}, len(d.values))
	for k, v := range d.values {
		out[k] = v
	}
	return out
}

// Set assigns value at key, capturing key's prior value the first
// time it is touched since the last baseline.
func (d *Dictionary[K]) Set(key K, value interface{}) error {
	if err := d.checkMutable(keyLocation(key)); err != nil {
		return err
	}

	d.willChange(key)
	d.values[key] = value
	d.cancelIfZeroNet(key)

	d.logger.Debug("dictionary key set", synclog.StringField("key", keyLocation(key)))
	return nil
}

// Remove clears key, leaving it absent. A no-op if the key is already
// absent.
func (d *Dictionary[K]) Remove(key K) error {
	if err := d.checkMutable(keyLocation(key)); err != nil {
		return err
	}
	if _, exists := d.values[key]; !exists {
		return nil
	}

	d.willChange(key)
	delete(d.values, key)
	d.cancelIfZeroNet(key)

	d.logger.Debug("dictionary key removed", synclog.StringField("key", keyLocation(key)))
	return nil
}

func (d *Dictionary[K]) willChange(key K) {
	if _, touched := d.original[key]; touched {
		return
	}
	if cur, exists := d.values[key]; exists {
		d.original[key] = ConcreteValue(cur)
	} else {
		d.original[key] = AbsentValue()
	}
}

func (d *Dictionary[K]) cancelIfZeroNet(key K) {
	prior, touched := d.original[key]
	if !touched {
		return
	}
	cur, exists := d.values[key]
	switch {
	case prior.Kind == KindAbsent && !exists:
		delete(d.original, key)
	case prior.Kind == KindValue && exists && reflect.DeepEqual(prior.Value, cur):
		delete(d.original, key)
	}
}

// HasChanges reports whether any key has been touched since the last
// baseline, or currently holds a nested syncable that itself has
// changes.
func (d *Dictionary[K]) HasChanges() bool {
	if len(d.original) > 0 {
		return true
	}
	for _, v := range d.values {
		if nested, ok := v.(Syncable); ok && nested.HasChanges() {
			return true
		}
	}
	return false
}

// ClearChangeTracking drops all tracking state, making the current
// entries the new baseline. Nested syncables are cleared too.
func (d *Dictionary[K]) ClearChangeTracking() {
	d.original = map[K]PriorValue{}
	for _, v := range d.values {
		if nested, ok := v.(Syncable); ok {
			nested.ClearChangeTracking()
		}
	}
}

// MakeImmutable freezes the dictionary and, recursively, any nested
// syncables it holds.
func (d *Dictionary[K]) MakeImmutable() {
	d.BaseObject.MakeImmutable()
	for _, v := range d.values {
		if nested, ok := v.(Syncable); ok {
			nested.MakeImmutable()
		}
	}
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (d *Dictionary[K]) Copy() Syncable {
	values := make(map[K]interface{}, len(d.values))
	for k, v := range d.values {
		if nested, ok := v.(Syncable); ok {
			values[k] = nested.Copy()
		} else {
			values[k] = v
		}
	}

	original := make(map[K]PriorValue, len(d.original))
	for k, prior := range d.original {
		original[k] = prior
	}

	return &Dictionary[K]{
		values:   values,
		original: original,
		logger:   d.logger,
		idGen:    d.idGen,
	}
}

// ImmutableCopy returns a copy of the dictionary that is immediately
// frozen.
func (d *Dictionary[K]) ImmutableCopy() Syncable {
	c := d.Copy()
	c.MakeImmutable()
	return c
}

// DictionaryChangeset is the changeset shape produced by Dictionary: a
// mapping of key to the prior value recorded for it.
type DictionaryChangeset[K comparable] struct {
	Tag     string
	Entries map[K]PriorValue
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *DictionaryChangeset[K]) IsEmpty() bool {
	return c == nil || len(c.Entries) == 0
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (d *Dictionary[K]) PeekChangeset() (Changeset, error) {
	entries := make(map[K]PriorValue, len(d.original))
	for k, prior := range d.original {
		entries[k] = prior
	}
	for k, v := range d.values {
		if _, already := entries[k]; already {
			continue
		}
		nested, ok := v.(Syncable)
		if !ok || !nested.HasChanges() {
			continue
		}
		nestedCS, err := nested.PeekChangeset()
		if err != nil {
			return nil, err
		}
		entries[k] = NestedRefValue(nestedCS)
	}

	if len(entries) == 0 {
		return &DictionaryChangeset[K]{}, nil
	}
	return &DictionaryChangeset[K]{Entries: entries}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current state becomes the new baseline.
func (d *Dictionary[K]) Changeset() (Changeset, error) {
	cs, err := d.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := d.idGen.GenerateID()
	if tagErr != nil {
		d.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if dc, ok := cs.(*DictionaryChangeset[K]); ok {
		dc.Tag = tag
	}

	d.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the dictionary's own pending edits, restoring
// tracked keys to their captured baseline values, and clears tracking.
func (d *Dictionary[K]) Rollback() error {
	for key, prior := range d.original {
		switch prior.Kind {
		case KindNestedRef:
			if nested, ok := d.values[key].(Syncable); ok {
				if err := nested.Rollback(); err != nil {
					return err
				}
			}
		case KindAbsent:
			delete(d.values, key)
		default:
			d.values[key] = prior.Value
		}
	}

	for key, v := range d.values {
		if _, already := d.original[key]; already {
			continue
		}
		nested, ok := v.(Syncable)
		if !ok || !nested.HasChanges() {
			continue
		}
		if err := nested.Rollback(); err != nil {
			return err
		}
	}

	d.ClearChangeTracking()
	return nil
}

// Undo restores the entries described by cs and returns the redo
// changeset.
//
// Undo requires the dictionary to currently have no pending local
// edits; a caller with pending edits must Rollback first.
func (d *Dictionary[K]) Undo(cs Changeset) (Changeset, error) {
	dc, ok := cs.(*DictionaryChangeset[K])
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.DictionaryChangeset", typeName(cs))
	}
	if dc.IsEmpty() {
		return &DictionaryChangeset[K]{}, nil
	}
	if d.HasChanges() {
		return nil, syncerr.HasChanges()
	}

	snapshot := d.Copy().(*Dictionary[K])

	// A nested value's Undo finalizes and clears its own tracking
	// internally (its own Changeset() call at the end), so its
	// returned redo must be captured directly rather than re-derived
	// afterwards from d.Changeset(), which by then sees the nested
	// value reporting no pending changes.
	nestedRedos := make(map[K]Changeset)
	for key, prior := range dc.Entries {
		if prior.Kind != KindNestedRef {
			continue
		}
		nested, ok := d.values[key].(Syncable)
		if !ok {
			*d = *snapshot
			return nil, syncerr.MismatchedChangeset(keyLocation(key))
		}
		nestedRedo, err := nested.Undo(prior.Nested)
		if err != nil {
			*d = *snapshot
			return nil, err
		}
		nestedRedos[key] = nestedRedo
	}

	for key, prior := range dc.Entries {
		if prior.Kind == KindNestedRef {
			continue
		}
		if err := d.checkMutable(keyLocation(key)); err != nil {
			*d = *snapshot
			return nil, err
		}
		d.willChange(key)
		if prior.Kind == KindAbsent {
			delete(d.values, key)
		} else {
			d.values[key] = prior.Value
		}
		d.cancelIfZeroNet(key)
	}

	redo, err := d.Changeset()
	if err != nil {
		*d = *snapshot
		return nil, err
	}
	dc2 := redo.(*DictionaryChangeset[K])
	for key, nestedRedo := range nestedRedos {
		if nestedRedo.IsEmpty() {
			continue
		}
		if dc2.Entries == nil {
			dc2.Entries = map[K]PriorValue{}
		}
		dc2.Entries[key] = NestedRefValue(nestedRedo)
	}
	return dc2, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first)
// into a single equivalent changeset: at each key, the fused prior is
// the earliest recorded prior across the list for which the key
// appears.
func (d *Dictionary[K]) MergeChangesets(list []Changeset) (Changeset, error) {
	fused := map[K]PriorValue{}
	for _, cs := range list {
		dc, ok := cs.(*DictionaryChangeset[K])
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.DictionaryChangeset", typeName(cs))
		}
		if dc == nil {
			continue
		}
		for key, prior := range dc.Entries {
			if _, already := fused[key]; !already {
				fused[key] = prior
			}
		}
	}

	for key, prior := range fused {
		if prior.Kind == KindNestedRef {
			continue
		}
		cur, exists := d.values[key]
		switch {
		case prior.Kind == KindAbsent && !exists:
			delete(fused, key)
		case prior.Kind == KindValue && exists && reflect.DeepEqual(prior.Value, cur):
			delete(fused, key)
		}
	}

	if len(fused) == 0 {
		d.original = map[K]PriorValue{}
		return &DictionaryChangeset[K]{}, nil
	}

	d.original = fused
	return &DictionaryChangeset[K]{Entries: fused}, nil
}

// MergeCloudVersion reconciles the dictionary against a remote version
// using pending (the dictionary's own not-yet-cleared edit log) as the
// local intent hint.
//
// For each key that exists locally, remotely, or at baseline: if
// modified locally and not remotely, local is kept; if modified
// remotely and not locally, remote is taken; if modified on both and
// the key holds a nested *Dictionary[K] on both sides with a NestedRef
// pending entry, the same three-way rule recurses into it; if modified
// on both and the key holds any other value, local wins and a
// diag.Notice is recorded; if unmodified on both, the baseline value
// is kept.
func (d *Dictionary[K]) MergeCloudVersion(remote *Dictionary[K], pending Changeset) (Changeset, []diag.Notice, error) {
	pendingDC, ok := pending.(*DictionaryChangeset[K])
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.DictionaryChangeset", typeName(pending))
	}
	if pendingDC == nil {
		pendingDC = &DictionaryChangeset[K]{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.Dictionary", "nil")
	}

	preMergeLocal := d.Copy().(*Dictionary[K])
	baseline := d.Copy().(*Dictionary[K])
	// The copy still carries the pending edits as live tracking, which
	// Undo would refuse; the pending priors alone define the baseline.
	baseline.ClearChangeTracking()
	if _, err := baseline.Undo(pendingDC); err != nil {
		return nil, nil, err
	}

	keys := map[K]struct{}{}
	for k := range d.values {
		keys[k] = struct{}{}
	}
	for k := range remote.values {
		keys[k] = struct{}{}
	}
	for k := range baseline.values {
		keys[k] = struct{}{}
	}
	for k := range pendingDC.Entries {
		keys[k] = struct{}{}
	}

	var notices []diag.Notice
	merged := map[K]interface{}{}
	mergedPriors := map[K]PriorValue{}

	for key := range keys {
		localPrior, localModified := pendingDC.Entries[key]
		localVal, localExists := d.values[key]
		baselineVal, baselineExists := baseline.values[key]
		remoteVal, remoteExists := remote.values[key]

		remoteModified := !valuesEqual(baselineVal, baselineExists, remoteVal, remoteExists)

		switch {
		case localModified && !remoteModified:
			setMergedGeneric(merged, key, localVal, localExists)
		case !localModified && remoteModified:
			setMergedGeneric(merged, key, remoteVal, remoteExists)
			notices = append(notices, diag.RemoteApplied(keyLocation(key)))
		case localModified && remoteModified:
			localNested, localIsNested := localVal.(*Dictionary[K])
			remoteNested, remoteIsNested := remoteVal.(*Dictionary[K])
			if localIsNested && remoteIsNested && localPrior.Kind == KindNestedRef {
				nestedRedo, nestedNotices, err := localNested.MergeCloudVersion(remoteNested, localPrior.Nested)
				if err != nil {
					d.logger.Warn("nested cloud merge failed, falling back to local wins",
						synclog.StringField("key", keyLocation(key)), synclog.ErrField("error", err))
					setMergedGeneric(merged, key, localVal, localExists)
					notices = append(notices, diag.ConflictLocalWins(keyLocation(key)))
					break
				}
				setMergedGeneric(merged, key, localNested, localExists)
				mergedPriors[key] = NestedRefValue(nestedRedo)
				notices = append(notices, nestedNotices...)
			} else {
				setMergedGeneric(merged, key, localVal, localExists)
				notices = append(notices, diag.ConflictLocalWins(keyLocation(key)))
			}
		default:
			setMergedGeneric(merged, key, baselineVal, baselineExists)
		}
	}

	d.values = merged
	d.original = map[K]PriorValue{}
	// The redo Undo(redo) must restore is the pre-merge local state,
	// not the pending edits' own baseline: each key's tracked prior is
	// the value it held in preMergeLocal, captured wherever the merge
	// changed it, never the (unrelated) baseline pendingDC was
	// computed against.
	for key := range keys {
		if _, isNestedRedo := mergedPriors[key]; isNestedRedo {
			continue
		}
		preVal, preExists := preMergeLocal.values[key]
		curVal, curExists := d.values[key]
		if valuesEqual(preVal, preExists, curVal, curExists) {
			continue
		}
		if preExists {
			d.original[key] = ConcreteValue(preVal)
		} else {
			d.original[key] = AbsentValue()
		}
	}
	for key, prior := range mergedPriors {
		d.original[key] = prior
	}
	for key := range d.original {
		d.cancelIfZeroNet(key)
	}

	redo, err := d.Changeset()
	if err != nil {
		*d = *preMergeLocal
		return nil, nil, err
	}
	return redo, notices, nil
}

func keyLocation[K comparable](key K) string {
	return fmt.Sprintf("%v", key)
}

func setMergedGeneric[K comparable](merged map[K]interface{}, key K, value interface{}, exists bool) {
	if exists {
		merged[key] = value
	}
}
