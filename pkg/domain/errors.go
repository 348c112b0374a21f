package domain

import "fmt"

// InvalidSeedError reports malformed or empty entropy input. Seeding fails
// fast; no fallback seed is substituted.
type InvalidSeedError struct {
	Reason string
}

func (e InvalidSeedError) Error() string {
	return fmt.Sprintf("invalid seed entropy: %s", e.Reason)
}

// OutOfRangeError reports a trait value that escaped its schema bounds after
// mapping. It indicates a schema or implementation bug, not a user error.
type OutOfRangeError struct {
	TraitKey string
	Value    float64
	Min      float64
	Max      float64
}

func (e OutOfRangeError) Error() string {
	return fmt.Sprintf("trait %s value %g outside bounds [%g,%g)", e.TraitKey, e.Value, e.Min, e.Max)
}

// InheritanceMismatchError reports parents whose trait schemas are
// incompatible. Inheritance fails rather than guessing a merge.
type InheritanceMismatchError struct {
	ParentA        string
	ParentB        string
	SchemaVersionA int
	SchemaVersionB int
}

func (e InheritanceMismatchError) Error() string {
	return fmt.Sprintf("parents %s (schema v%d) and %s (schema v%d) have incompatible trait schemas",
		e.ParentA, e.SchemaVersionA, e.ParentB, e.SchemaVersionB)
}

// ErrNotFound is returned when an entity lookup fails inside a transaction.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
