package syncable

import (
	"fmt"
	"reflect"

	"github.com/newstack-cloud/syncable/syncable/diag"
	"github.com/newstack-cloud/syncable/syncerr"
	"github.com/newstack-cloud/syncable/synclog"
)

// Record is a syncable container tracking a fixed set of named
// fields. Field names are declared once at construction; attempting
// to Get/Set/Remove an undeclared field is a programmer error and
// panics, the same way indexing past the end of a slice would,
// per the design note that only programmer errors are allowed to
// fail loudly.
//
// A field's current value may itself satisfy Syncable, in which case
// it is treated as a nested container: mutating it does not go
// through Record's own tracking, its edits surface homomorphically
// through Changeset whenever the nested value reports HasChanges.
type Record struct {
	BaseObject

	declared map[string]struct{}
	fields   map[string]interface{}
	original map[string]PriorValue

	logger synclog.Logger
	idGen  IDGenerator
}

// RecordOption configures a Record at construction time.
type RecordOption func(*Record)

// WithRecordLogger attaches a logger to the record.
func WithRecordLogger(logger synclog.Logger) RecordOption {
	return func(r *Record) { r.logger = logger }
}

// WithRecordIDGenerator attaches an IDGenerator used to tag
// changesets produced by the record.
func WithRecordIDGenerator(gen IDGenerator) RecordOption {
	return func(r *Record) { r.idGen = gen }
}

// NewRecord creates an empty record with the given declared field
// names. Every field starts Absent.
func NewRecord(fieldNames []string, opts ...RecordOption) *Record {
	return NewRecordFromValues(fieldNames, nil, opts...)
}

// NewRecordFromValues creates a record with the given declared field
// names, populated with an initial set of values. The record starts
// with no tracking state (hasChanges is false).
func NewRecordFromValues(fieldNames []string, values map[string]interface{}, opts ...RecordOption) *Record {
	declared := make(map[string]struct{}, len(fieldNames))
	for _, name := range fieldNames {
		declared[name] = struct{}{}
	}

	fields := make(map[string]interface{}, len(values))
	for name, value := range values {
		if _, ok := declared[name]; ok {
			fields[name] = value
		}
	}

	r := &Record{
		declared: declared,
		fields:   fields,
		original: map[string]PriorValue{},
		logger:   synclog.NewNopLogger(),
		idGen:    NewEmptyIDGenerator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Record) requireDeclared(field string) {
	if _, ok := r.declared[field]; !ok {
		panic("syncable: record field \"" + field + "\" is not declared")
	}
}

// Get returns the current value of field and whether it is present.
func (r *Record) Get(field string) (interface{}, bool) {
	r.requireDeclared(field)
	v, ok := r.fields[field]
	return v, ok
}

// Set assigns value to field, capturing the field's prior value the
// first time it is touched since the last baseline (the universal
// tracking-update rule). Setting a field back to the value it held at
// baseline cancels the pending edit (zero-net).
func (r *Record) Set(field string, value interface{}) error {
	r.requireDeclared(field)
	if err := r.checkMutable(field); err != nil {
		return err
	}

	r.willChange(field)
	r.fields[field] = value
	r.cancelIfZeroNet(field)

	r.logger.Debug("record field set", synclog.StringField("field", field))
	return nil
}

// Remove clears field, leaving it Absent. A no-op if the field is
// already Absent.
func (r *Record) Remove(field string) error {
	r.requireDeclared(field)
	if err := r.checkMutable(field); err != nil {
		return err
	}
	if _, exists := r.fields[field]; !exists {
		return nil
	}

	r.willChange(field)
	delete(r.fields, field)
	r.cancelIfZeroNet(field)

	r.logger.Debug("record field removed", synclog.StringField("field", field))
	return nil
}

// willChange captures the prior value for field the first time it is
// touched since the last baseline. Subsequent touches before the next
// baseline are no-ops, per the universal tracking-update rule: only
// the baseline value is ever captured, never an intermediate one.
func (r *Record) willChange(field string) {
	if _, touched := r.original[field]; touched {
		return
	}
	if cur, exists := r.fields[field]; exists {
		r.original[field] = ConcreteValue(cur)
	} else {
		r.original[field] = AbsentValue()
	}
}

// cancelIfZeroNet removes field's tracking entry when its net effect
// against the captured prior is nil, implementing the zero-net
// elision property.
func (r *Record) cancelIfZeroNet(field string) {
	prior, touched := r.original[field]
	if !touched {
		return
	}
	cur, exists := r.fields[field]
	switch {
	case prior.Kind == KindAbsent && !exists:
		delete(r.original, field)
	case prior.Kind == KindValue && exists && reflect.DeepEqual(prior.Value, cur):
		delete(r.original, field)
	}
}

// HasChanges reports whether any declared field has been touched
// since the last baseline, or currently holds a nested syncable that
// itself has changes.
func (r *Record) HasChanges() bool {
	if len(r.original) > 0 {
		return true
	}
	for name := range r.declared {
		if nested, ok := r.fields[name].(Syncable); ok && nested.HasChanges() {
			return true
		}
	}
	return false
}

// ClearChangeTracking drops all tracking state, making the current
// field values the new baseline. Nested syncables are cleared too.
func (r *Record) ClearChangeTracking() {
	r.original = map[string]PriorValue{}
	for name := range r.declared {
		if nested, ok := r.fields[name].(Syncable); ok {
			nested.ClearChangeTracking()
		}
	}
}

// MakeImmutable freezes the record and, recursively, any nested
// syncables it holds.
func (r *Record) MakeImmutable() {
	r.BaseObject.MakeImmutable()
	for name := range r.declared {
		if nested, ok := r.fields[name].(Syncable); ok {
			nested.MakeImmutable()
		}
	}
}

// Copy returns a deep, independent, mutable copy that shares no
// tracking state with the source.
func (r *Record) Copy() Syncable {
	declared := make(map[string]struct{}, len(r.declared))
	for name := range r.declared {
		declared[name] = struct{}{}
	}

	fields := make(map[string]interface{}, len(r.fields))
	for name, value := range r.fields {
		if nested, ok := value.(Syncable); ok {
			fields[name] = nested.Copy()
		} else {
			fields[name] = value
		}
	}

	original := make(map[string]PriorValue, len(r.original))
	for name, prior := range r.original {
		original[name] = prior
	}

	return &Record{
		declared: declared,
		fields:   fields,
		original: original,
		logger:   r.logger,
		idGen:    r.idGen,
	}
}

// ImmutableCopy returns a copy of the record that is immediately
// frozen.
func (r *Record) ImmutableCopy() Syncable {
	c := r.Copy()
	c.MakeImmutable()
	return c
}

// RecordChangeset is the changeset shape produced by Record: a
// mapping of field name to the prior value recorded for it, where a
// nested field's prior value is a NestedRef wrapping the nested
// container's own changeset.
type RecordChangeset struct {
	Tag    string
	Fields map[string]PriorValue
}

// IsEmpty reports whether the changeset carries no effective edits.
func (c *RecordChangeset) IsEmpty() bool {
	return c == nil || len(c.Fields) == 0
}

// PeekChangeset returns the accumulated edits since baseline without
// resetting tracking.
func (r *Record) PeekChangeset() (Changeset, error) {
	fields := make(map[string]PriorValue, len(r.original))
	for name, prior := range r.original {
		fields[name] = prior
	}
	for name := range r.declared {
		if _, already := fields[name]; already {
			continue
		}
		nested, ok := r.fields[name].(Syncable)
		if !ok || !nested.HasChanges() {
			continue
		}
		nestedCS, err := nested.PeekChangeset()
		if err != nil {
			return nil, err
		}
		fields[name] = NestedRefValue(nestedCS)
	}

	if len(fields) == 0 {
		return &RecordChangeset{}, nil
	}
	return &RecordChangeset{Fields: fields}, nil
}

// Changeset returns the accumulated edits since baseline and clears
// tracking so the current state becomes the new baseline.
func (r *Record) Changeset() (Changeset, error) {
	cs, err := r.PeekChangeset()
	if err != nil {
		return nil, err
	}

	tag, tagErr := r.idGen.GenerateID()
	if tagErr != nil {
		r.logger.Warn("failed to generate changeset tag, continuing untagged", synclog.ErrField("error", tagErr))
		tag = ""
	}
	if rc, ok := cs.(*RecordChangeset); ok {
		rc.Tag = tag
	}

	r.ClearChangeTracking()
	return cs, nil
}

// Rollback discards the record's own pending edits, restoring the
// fields named in its current tracking to their captured baseline
// values, and clears tracking. Unlike Undo, Rollback acts on the
// record's own live tracking map rather than a caller-supplied
// changeset, so the has-changes precondition Undo enforces does not
// apply here.
//
// A field whose edits live only in a nested syncable (no entry in
// this record's own tracking, since nested edits are never
// intercepted at Set time) is rolled back by delegating to the
// nested value directly.
func (r *Record) Rollback() error {
	for field, prior := range r.original {
		switch prior.Kind {
		case KindNestedRef:
			if nested, ok := r.fields[field].(Syncable); ok {
				if err := nested.Rollback(); err != nil {
					return err
				}
			}
		case KindAbsent:
			delete(r.fields, field)
		default:
			r.fields[field] = prior.Value
		}
	}

	for field := range r.declared {
		if _, already := r.original[field]; already {
			continue
		}
		nested, ok := r.fields[field].(Syncable)
		if !ok || !nested.HasChanges() {
			continue
		}
		if err := nested.Rollback(); err != nil {
			return err
		}
	}

	r.ClearChangeTracking()
	return nil
}

// Undo restores the field values described by cs and returns the
// redo changeset: the changeset produced by the record immediately
// after the undo completes.
//
// Undo requires the record to currently have no pending local edits
// (HasChanges must be false); a caller with pending edits must
// Rollback first so the baseline the changeset assumes is
// unambiguous.
func (r *Record) Undo(cs Changeset) (Changeset, error) {
	rc, ok := cs.(*RecordChangeset)
	if !ok {
		return nil, syncerr.IncorrectObjectClass("*syncable.RecordChangeset", typeName(cs))
	}
	if rc.IsEmpty() {
		return &RecordChangeset{}, nil
	}
	if r.HasChanges() {
		return nil, syncerr.HasChanges()
	}
	for field := range rc.Fields {
		if _, ok := r.declared[field]; !ok {
			return nil, syncerr.MalformedChangeset(field, "no such field on this record")
		}
	}

	snapshot := r.Copy().(*Record)

	// A nested field's Undo finalizes and clears the nested
	// container's own tracking internally (its own Changeset() call
	// at the end), so its returned redo must be captured directly
	// rather than re-derived afterwards from r.Changeset(), which by
	// then sees the nested value reporting no pending changes.
	nestedRedos := make(map[string]Changeset)
	for field, prior := range rc.Fields {
		if prior.Kind != KindNestedRef {
			continue
		}
		nested, ok := r.fields[field].(Syncable)
		if !ok {
			*r = *snapshot
			return nil, syncerr.MismatchedChangeset(field)
		}
		nestedRedo, err := nested.Undo(prior.Nested)
		if err != nil {
			*r = *snapshot
			return nil, err
		}
		nestedRedos[field] = nestedRedo
	}

	for field, prior := range rc.Fields {
		if prior.Kind == KindNestedRef {
			continue
		}
		if err := r.checkMutable(field); err != nil {
			*r = *snapshot
			return nil, err
		}
		r.willChange(field)
		if prior.Kind == KindAbsent {
			delete(r.fields, field)
		} else {
			r.fields[field] = prior.Value
		}
		r.cancelIfZeroNet(field)
	}

	redo, err := r.Changeset()
	if err != nil {
		*r = *snapshot
		return nil, err
	}
	rc2 := redo.(*RecordChangeset)
	for field, nestedRedo := range nestedRedos {
		if nestedRedo.IsEmpty() {
			continue
		}
		if rc2.Fields == nil {
			rc2.Fields = map[string]PriorValue{}
		}
		rc2.Fields[field] = NestedRefValue(nestedRedo)
	}
	return rc2, nil
}

// MergeChangesets fuses an ordered list of changesets (oldest first)
// into a single changeset with equivalent effect: at each field, the
// fused prior is the earliest recorded prior across the list for
// which the field appears. The record's state is unchanged; the
// fused changeset becomes the record's current tracking.
func (r *Record) MergeChangesets(list []Changeset) (Changeset, error) {
	fused := map[string]PriorValue{}
	for _, cs := range list {
		rc, ok := cs.(*RecordChangeset)
		if cs != nil && !ok {
			return nil, syncerr.IncorrectObjectClass("*syncable.RecordChangeset", typeName(cs))
		}
		if rc == nil {
			continue
		}
		for field, prior := range rc.Fields {
			if _, ok := r.declared[field]; !ok {
				return nil, syncerr.MalformedChangeset(field, "no such field on this record")
			}
			if _, already := fused[field]; !already {
				fused[field] = prior
			}
		}
	}

	for field, prior := range fused {
		if prior.Kind == KindNestedRef {
			continue
		}
		cur, exists := r.fields[field]
		switch {
		case prior.Kind == KindAbsent && !exists:
			delete(fused, field)
		case prior.Kind == KindValue && exists && reflect.DeepEqual(prior.Value, cur):
			delete(fused, field)
		}
	}

	if len(fused) == 0 {
		r.original = map[string]PriorValue{}
		return &RecordChangeset{}, nil
	}

	r.original = fused
	return &RecordChangeset{Fields: fused}, nil
}

// MergeCloudVersion reconciles the record against a remote version
// using pending (the record's own not-yet-cleared edit log) as the
// local intent hint. remote must be a *Record declaring a compatible
// set of fields.
//
// For each field: if modified locally and not remotely, local is
// kept; if modified remotely and not locally, remote is taken; if
// modified on both and the field holds a nested *Record, the same
// three-way rule recurses into it; if modified on both and the field
// is a plain value (or a nested syncable of a kind that does not
// support recursive cloud-merge), local wins and a diag.Notice is
// recorded; if unmodified on both, the baseline value is kept.
//
// Returns a changeset whose inverse would restore the pre-merge local
// state, along with the diagnostics collected along the way.
func (r *Record) MergeCloudVersion(remote *Record, pending Changeset) (Changeset, []diag.Notice, error) {
	pendingRC, ok := pending.(*RecordChangeset)
	if pending != nil && !ok {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.RecordChangeset", typeName(pending))
	}
	if pendingRC == nil {
		pendingRC = &RecordChangeset{}
	}
	if remote == nil {
		return nil, nil, syncerr.IncorrectObjectClass("*syncable.Record", "nil")
	}
	for field := range remote.declared {
		if _, ok := r.declared[field]; !ok {
			return nil, nil, syncerr.IncorrectObjectClass("record with matching field set", "record with differing field set")
		}
	}

	preMergeLocal := r.Copy().(*Record)
	baseline := r.Copy().(*Record)
	// The copy still carries the pending edits as live tracking, which
	// Undo would refuse; the pending priors alone define the baseline.
	baseline.ClearChangeTracking()
	if _, err := baseline.Undo(pendingRC); err != nil {
		return nil, nil, err
	}

	var notices []diag.Notice
	merged := map[string]interface{}{}
	mergedPriors := map[string]PriorValue{}

	for field := range r.declared {
		localPrior, localModified := pendingRC.Fields[field]
		localVal, localExists := r.fields[field]
		baselineVal, baselineExists := baseline.fields[field]
		remoteVal, remoteExists := remote.fields[field]

		remoteModified := !valuesEqual(baselineVal, baselineExists, remoteVal, remoteExists)

		switch {
		case localModified && !remoteModified:
			setMerged(merged, field, localVal, localExists)
		case !localModified && remoteModified:
			setMerged(merged, field, remoteVal, remoteExists)
			notices = append(notices, diag.RemoteApplied(field))
		case localModified && remoteModified:
			localNested, localIsNested := localVal.(*Record)
			remoteNested, remoteIsNested := remoteVal.(*Record)
			if localIsNested && remoteIsNested && localPrior.Kind == KindNestedRef {
				nestedRedo, nestedNotices, err := localNested.MergeCloudVersion(remoteNested, localPrior.Nested)
				if err != nil {
					r.logger.Warn("nested cloud merge failed, falling back to local wins",
						synclog.StringField("field", field), synclog.ErrField("error", err))
					setMerged(merged, field, localVal, localExists)
					notices = append(notices, diag.ConflictLocalWins(field))
					break
				}
				setMerged(merged, field, localNested, localExists)
				mergedPriors[field] = NestedRefValue(nestedRedo)
				notices = append(notices, nestedNotices...)
			} else {
				r.logger.Warn("cloud merge conflict resolved local wins", synclog.StringField("field", field))
				setMerged(merged, field, localVal, localExists)
				notices = append(notices, diag.ConflictLocalWins(field))
			}
		default:
			setMerged(merged, field, baselineVal, baselineExists)
		}
	}

	r.fields = merged
	r.original = map[string]PriorValue{}
	// The redo Undo(redo) must restore is the pre-merge local state,
	// not the pending edits' own baseline: each field's tracked prior
	// is the value it held in preMergeLocal, captured wherever the
	// merge changed it, never the (unrelated) baseline pendingRC was
	// computed against.
	for field := range r.declared {
		if _, isNestedRedo := mergedPriors[field]; isNestedRedo {
			continue
		}
		preVal, preExists := preMergeLocal.fields[field]
		curVal, curExists := r.fields[field]
		if valuesEqual(preVal, preExists, curVal, curExists) {
			continue
		}
		if preExists {
			r.original[field] = ConcreteValue(preVal)
		} else {
			r.original[field] = AbsentValue()
		}
	}
	for field, prior := range mergedPriors {
		r.original[field] = prior
	}
	r.cancelAllZeroNet()

	redo, err := r.Changeset()
	if err != nil {
		*r = *preMergeLocal
		return nil, nil, err
	}
	return redo, notices, nil
}

func (r *Record) cancelAllZeroNet() {
	for field := range r.original {
		r.cancelIfZeroNet(field)
	}
}

func setMerged(merged map[string]interface{}, field string, value interface{}, exists bool) {
	if exists {
		merged[field] = value
	}
}

func valuesEqual(a interface{}, aExists bool, b interface{}, bExists bool) bool {
	if aExists != bExists {
		return false
	}
	if !aExists {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func typeName(v interface{}) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
