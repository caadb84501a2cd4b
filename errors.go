package ogm

import (
	"errors"
	"fmt"
	"reflect"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested entity does not exist.
	ErrNotFound = errors.New("ogm: entity not found")

	// ErrOptimisticLock is returned when a version-checked write or delete
	// matched no node carrying the expected version.
	ErrOptimisticLock = errors.New("ogm: optimistic locking failure")

	// ErrIdentifierResolution is returned when a save that must produce a
	// store identifier returned no row for an entity without a version.
	ErrIdentifierResolution = errors.New("ogm: identifier could not be resolved")

	// ErrUnsupportedIdentifierKind is returned when an entity declares an
	// identifier field the codec cannot populate.
	ErrUnsupportedIdentifierKind = errors.New("ogm: unsupported identifier kind")
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
	id    any // Optional: the ID that was searched for
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("ogm: %s not found (id=%v)", e.label, e.id)
	}
	return fmt.Sprintf("ogm: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// ID returns the ID that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity label.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// NewNotFoundErrorWithID returns a new NotFoundError with the ID that was searched for.
func NewNotFoundErrorWithID(label string, id any) *NotFoundError {
	return &NotFoundError{label: label, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// OptimisticLockError is returned when the stored version of a node did not
// match the version carried by the entity.
type OptimisticLockError struct {
	Label   string
	ID      any
	Version int64 // expected version
}

// Error returns the error string.
func (e *OptimisticLockError) Error() string {
	return fmt.Sprintf("ogm: optimistic locking failure on %s (id=%v, expected version %d)", e.Label, e.ID, e.Version)
}

// Is reports whether the target error matches ErrOptimisticLock.
func (e *OptimisticLockError) Is(err error) bool {
	return err == ErrOptimisticLock
}

// NewOptimisticLockError returns a new OptimisticLockError.
func NewOptimisticLockError(label string, id any, version int64) *OptimisticLockError {
	return &OptimisticLockError{Label: label, ID: id, Version: version}
}

// IsOptimisticLock returns true if the error is an OptimisticLockError.
func IsOptimisticLock(err error) bool {
	if err == nil {
		return false
	}
	var e *OptimisticLockError
	return errors.As(err, &e) || errors.Is(err, ErrOptimisticLock)
}

// IdentifierResolutionError is returned when the store acknowledged a node
// write without returning the node identifier.
type IdentifierResolutionError struct {
	Label string
	ID    any
}

// Error returns the error string.
func (e *IdentifierResolutionError) Error() string {
	if e.ID != nil {
		return fmt.Sprintf("ogm: could not resolve identifier of %s (id=%v)", e.Label, e.ID)
	}
	return fmt.Sprintf("ogm: could not resolve identifier of %s", e.Label)
}

// Is reports whether the target error matches ErrIdentifierResolution.
func (e *IdentifierResolutionError) Is(err error) bool {
	return err == ErrIdentifierResolution
}

// NewIdentifierResolutionError returns a new IdentifierResolutionError.
func NewIdentifierResolutionError(label string, id any) *IdentifierResolutionError {
	return &IdentifierResolutionError{Label: label, ID: id}
}

// IsIdentifierResolution returns true if the error is an IdentifierResolutionError.
func IsIdentifierResolution(err error) bool {
	if err == nil {
		return false
	}
	var e *IdentifierResolutionError
	return errors.As(err, &e) || errors.Is(err, ErrIdentifierResolution)
}

// UnsupportedIdentifierKindError is returned for identifier or version
// fields whose Go type the codec does not know how to populate.
type UnsupportedIdentifierKindError struct {
	Type  string // owning entity type
	Field string
	Kind  reflect.Type
}

// Error returns the error string.
func (e *UnsupportedIdentifierKindError) Error() string {
	return fmt.Sprintf("ogm: unsupported identifier kind %s for field %s.%s", e.Kind, e.Type, e.Field)
}

// Is reports whether the target error matches ErrUnsupportedIdentifierKind.
func (e *UnsupportedIdentifierKindError) Is(err error) bool {
	return err == ErrUnsupportedIdentifierKind
}

// NewUnsupportedIdentifierKindError returns a new UnsupportedIdentifierKindError.
func NewUnsupportedIdentifierKindError(typ, field string, kind reflect.Type) *UnsupportedIdentifierKindError {
	return &UnsupportedIdentifierKindError{Type: typ, Field: field, Kind: kind}
}

// IsUnsupportedIdentifierKind returns true if the error is an UnsupportedIdentifierKindError.
func IsUnsupportedIdentifierKind(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsupportedIdentifierKindError
	return errors.As(err, &e) || errors.Is(err, ErrUnsupportedIdentifierKind)
}

// ConstraintError represents a store constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("ogm: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// RollbackError is returned when a transaction was rolled back after Err
// and the rollback itself failed with Rollback. Both errors match
// errors.Is and errors.As.
type RollbackError struct {
	Err      error // error that triggered the rollback
	Rollback error
}

// NewRollbackError returns err unchanged if rerr is nil, otherwise a
// RollbackError carrying both.
func NewRollbackError(err, rerr error) error {
	if rerr == nil {
		return err
	}
	return &RollbackError{Err: err, Rollback: rerr}
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("%v: ogm: rollback failed: %v", e.Err, e.Rollback)
}

// Unwrap returns the triggering and the rollback error.
func (e *RollbackError) Unwrap() []error {
	return []error{e.Err, e.Rollback}
}

// QueryError wraps a load error with additional context.
type QueryError struct {
	Entity string // Entity type being loaded
	Op     string // Operation (e.g., "match", "expand", "fetch")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("ogm: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("ogm: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a write error with additional context.
type MutationError struct {
	Entity string // Entity type being written
	Op     string // Operation (e.g., "save", "delete", "relate")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("ogm: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}
