package syncable

// PriorValueKind distinguishes the three states a tracked location can
// have been in at baseline: holding a concrete value, holding nothing
// (Absent), or holding a nested syncable whose own changeset carries
// the detail (NestedRef).
type PriorValueKind int

const (
	// KindValue means the location held a concrete, captured value.
	KindValue PriorValueKind = iota
	// KindAbsent means the location did not exist at baseline.
	KindAbsent
	// KindNestedRef means the location held a nested syncable whose
	// own Changeset covers the edits made to it.
	KindNestedRef
)

func (k PriorValueKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindAbsent:
		return "absent"
	case KindNestedRef:
		return "nested_ref"
	default:
		return "unknown"
	}
}

// PriorValue is the value recorded for a tracked location (a record
// field, a map key) at the moment it was first touched since the last
// baseline. Equality between two PriorValue sentinels is by Kind;
// concrete values carry their payload in Value, nested references
// carry the nested container's changeset in Nested.
type PriorValue struct {
	Kind   PriorValueKind
	Value  interface{}
	Nested Changeset
}

// AbsentValue returns the sentinel recording that a location did not
// exist at baseline.
func AbsentValue() PriorValue {
	return PriorValue{Kind: KindAbsent}
}

// ConcreteValue wraps a captured value as a PriorValue.
func ConcreteValue(value interface{}) PriorValue {
	return PriorValue{Kind: KindValue, Value: value}
}

// NestedRefValue wraps a nested container's changeset as a PriorValue.
func NestedRefValue(nested Changeset) PriorValue {
	return PriorValue{Kind: KindNestedRef, Nested: nested}
}

// IsAbsent reports whether the prior value is the Absent sentinel.
func (p PriorValue) IsAbsent() bool {
	return p.Kind == KindAbsent
}

// IsNestedRef reports whether the prior value is the NestedRef
// sentinel.
func (p PriorValue) IsNestedRef() bool {
	return p.Kind == KindNestedRef
}
