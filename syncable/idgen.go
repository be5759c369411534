package syncable

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDGenerator produces the opaque Tag correlation IDs attached to
// changesets (see RecordChangeset.Tag and friends). Tagging is purely
// observational: it exists so a host can correlate a changeset with a
// log line, never to drive the algebra itself.
type IDGenerator interface {
	// GenerateID produces a new, ideally unique, identifier.
	GenerateID() (string, error)
}

// UUIDGenerator is an IDGenerator that produces UUIDs.
type UUIDGenerator struct{}

// NewUUIDGenerator creates a generator that produces v4 UUIDs.
func NewUUIDGenerator() IDGenerator {
	return &UUIDGenerator{}
}

// GenerateID generates a UUID v4 string.
func (g *UUIDGenerator) GenerateID() (string, error) {
	return uuid.NewString(), nil
}

// NanoIDGenerator is an IDGenerator that produces nano IDs.
type NanoIDGenerator struct{}

// NewNanoIDGenerator creates a generator that produces nano IDs.
func NewNanoIDGenerator() IDGenerator {
	return &NanoIDGenerator{}
}

// GenerateID generates a nano ID string.
func (g *NanoIDGenerator) GenerateID() (string, error) {
	return gonanoid.New()
}

// EmptyIDGenerator is an IDGenerator that always produces an empty
// string. This is the default for every container so that tagging
// never changes behaviour unless a caller opts in.
type EmptyIDGenerator struct{}

// NewEmptyIDGenerator creates a generator that always returns an
// empty string.
func NewEmptyIDGenerator() IDGenerator {
	return &EmptyIDGenerator{}
}

// GenerateID always returns an empty string.
func (g *EmptyIDGenerator) GenerateID() (string, error) {
	return "", nil
}
