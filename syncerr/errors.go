// Package syncerr defines the typed error values produced by the
// syncable containers and their changeset algebra.
package syncerr

import "fmt"

// Error represents a failure of an operation on a syncable container.
type Error struct {
	ReasonCode ReasonCode
	Err        error
	// Location, when non-empty, names the field, key or member the
	// error relates to.
	Location string
}

func (e *Error) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s", e.Location, e.Err.Error())
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonCode classifies the kind of failure that occurred, per the
// error kinds a syncable container can report.
type ReasonCode string

const (
	// ReasonCodeImmutable is produced when a mutation is attempted on
	// a frozen instance.
	ReasonCodeImmutable ReasonCode = "immutable"
	// ReasonCodeHasChanges is produced when Undo is called while local
	// tracking is non-empty; the caller must Rollback first.
	ReasonCodeHasChanges ReasonCode = "has_changes"
	// ReasonCodeMalformedChangeset is produced when a supplied
	// changeset is structurally invalid or references unknown
	// locations.
	ReasonCodeMalformedChangeset ReasonCode = "malformed_changeset"
	// ReasonCodeMismatchedChangeset is produced when the prior value
	// captured in a changeset disagrees with the current value at
	// that location.
	ReasonCodeMismatchedChangeset ReasonCode = "mismatched_changeset"
	// ReasonCodeIncorrectObjectClass is produced when a cloud-merge is
	// handed a remote value of an incompatible shape.
	ReasonCodeIncorrectObjectClass ReasonCode = "incorrect_object_class"
)

// Immutable creates an error reporting a mutation attempted on a
// frozen instance.
func Immutable(location string) error {
	return &Error{
		ReasonCode: ReasonCodeImmutable,
		Err:        fmt.Errorf("object is immutable and can not be mutated"),
		Location:   location,
	}
}

// HasChanges creates an error reporting that Undo was called while
// local tracking is non-empty.
func HasChanges() error {
	return &Error{
		ReasonCode: ReasonCodeHasChanges,
		Err:        fmt.Errorf("object has pending changes, call Rollback instead or clear tracking first"),
	}
}

// MalformedChangeset creates an error reporting that a supplied
// changeset is structurally invalid.
func MalformedChangeset(location, reason string) error {
	return &Error{
		ReasonCode: ReasonCodeMalformedChangeset,
		Err:        fmt.Errorf("malformed changeset: %s", reason),
		Location:   location,
	}
}

// MismatchedChangeset creates an error reporting that the prior value
// recorded in a changeset disagrees with the current value at that
// location.
func MismatchedChangeset(location string) error {
	return &Error{
		ReasonCode: ReasonCodeMismatchedChangeset,
		Err:        fmt.Errorf("changeset prior value does not match current state, it was produced against a different state"),
		Location:   location,
	}
}

// IncorrectObjectClass creates an error reporting that a cloud-merge
// was handed a remote value of an incompatible shape.
func IncorrectObjectClass(expected, got string) error {
	return &Error{
		ReasonCode: ReasonCodeIncorrectObjectClass,
		Err:        fmt.Errorf("expected remote value of type %s, got %s", expected, got),
	}
}

// Is reports whether err is a syncable error with the given reason
// code.
func Is(err error, code ReasonCode) bool {
	syncErr, ok := err.(*Error)
	if !ok {
		return false
	}
	return syncErr.ReasonCode == code
}
