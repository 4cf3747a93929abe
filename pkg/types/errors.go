package types

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match these through errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("entity not found")
	ErrDuplicateOpen   = errors.New("a datastore is already open")
	ErrUnknownProperty = errors.New("unknown property")
	ErrBackend         = errors.New("backend failure")
	ErrDatastoreClosed = errors.New("datastore is closed")
)

// ValidationError reports a property value that failed validation: a
// missing required value, a type mismatch, a value outside the declared
// choices, or a custom validator rejection.
type ValidationError struct {
	Property string
	Value    any
	Reason   string
	Err      error // validator error, if any
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("validation failed for property %q: %s", e.Property, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a fetch of an absent record or a delete of an
// entity that has no key.
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s entity has no key", e.Kind)
	}
	return fmt.Sprintf("%s with key %q not found", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UnknownPropertyError reports a field, filter or sort order that refers
// to a property the model does not declare.
type UnknownPropertyError struct {
	Kind     string
	Property string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("property %q is not declared on %s", e.Property, e.Kind)
}

func (e *UnknownPropertyError) Is(target error) bool {
	return target == ErrUnknownProperty
}

// DuplicateOpenError is returned when a datastore is opened while another
// one is still active.
type DuplicateOpenError struct {
	Active string // description of the active datastore
}

func (e *DuplicateOpenError) Error() string {
	return fmt.Sprintf("datastore already open (%s); close it first", e.Active)
}

func (e *DuplicateOpenError) Is(target error) bool {
	return target == ErrDuplicateOpen
}

// BackendError wraps an engine failure (I/O fault, driver error) with the
// operation that caused it.
type BackendError struct {
	Backend string
	Op      string
	Kind    string
	Key     string
	Err     error
}

func (e *BackendError) Error() string {
	switch {
	case e.Key != "":
		return fmt.Sprintf("%s: %s %s/%s: %v", e.Backend, e.Op, e.Kind, e.Key, e.Err)
	case e.Kind != "":
		return fmt.Sprintf("%s: %s %s: %v", e.Backend, e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
	}
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackend
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(property string, value any, reason string) error {
	return &ValidationError{Property: property, Value: value, Reason: reason}
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(kind, key string) error {
	return &NotFoundError{Kind: kind, Key: key}
}

// NewUnknownPropertyError creates a new UnknownPropertyError.
func NewUnknownPropertyError(kind, property string) error {
	return &UnknownPropertyError{Kind: kind, Property: property}
}

// NewBackendError wraps err as a BackendError. A nil err yields nil, and an
// err that already is a BackendError or ErrDatastoreClosed is returned as is.
func NewBackendError(backend, op, kind, key string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrBackend) || errors.Is(err, ErrDatastoreClosed) {
		return err
	}
	return &BackendError{Backend: backend, Op: op, Kind: kind, Key: key, Err: err}
}

// IsValidationError reports whether err is a validation failure.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound reports whether err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnknownProperty reports whether err names an undeclared property.
func IsUnknownProperty(err error) bool {
	return errors.Is(err, ErrUnknownProperty)
}

// IsDuplicateOpen reports whether err is a second-open failure.
func IsDuplicateOpen(err error) bool {
	return errors.Is(err, ErrDuplicateOpen)
}

// IsBackendError reports whether err came from a storage engine.
func IsBackendError(err error) bool {
	return errors.Is(err, ErrBackend)
}
