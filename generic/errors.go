/*
errors.go - Centralized error types for the ride engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Reference data missing - No rate row, hours code or driver settings.
     Fatal for the affected ride record; never retried automatically.
  2. Invalid state transition - Signing a week that isn't pending-driver,
     resolving a closed dispute. Carries the current state for resync.
  3. Concurrent modification - Stale version on edit or lazy-create race.
     Safe to retry once after re-reading.
  4. Validation - Bad raw ride inputs, rejected before any calculator runs.
  5. Actor not allowed - Wrong role or wrong driver for an action. The
     entity's state is untouched, so there is nothing to resync.

USAGE:
  if errors.Is(err, generic.ErrReferenceDataMissing) {
      // data-setup problem, surface to the caller
  }

  var se *generic.StateError
  if errors.As(err, &se) {
      // se.Current is the state the caller should resync to
  }
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrReferenceDataMissing is returned when a rate row, hours code, hours
	// option, driver settings or driver row can't be resolved for a
	// calculation.
	ErrReferenceDataMissing = errors.New("reference data missing")

	// ErrInvalidStateTransition is returned when a workflow action isn't
	// allowed from the entity's current status.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrValidation is returned for malformed raw input.
	ErrValidation = errors.New("validation failed")

	// ErrActorNotAllowed is returned when the acting role or driver may not
	// perform an action, whatever the entity's status.
	ErrActorNotAllowed = errors.New("actor not allowed")

	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned by stores on unique key violations.
	ErrAlreadyExists = errors.New("already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

type ReferenceKind string

const (
	RefRateRow        ReferenceKind = "rate_row"
	RefHoursCode      ReferenceKind = "hours_code"
	RefHoursOption    ReferenceKind = "hours_option"
	RefDriverSettings ReferenceKind = "driver_settings"
	RefDriver         ReferenceKind = "driver"
)

// ReferenceDataMissingError names the reference row that couldn't be resolved.
type ReferenceDataMissingError struct {
	Kind ReferenceKind
	Key  string
	Date TimePoint
}

func (e *ReferenceDataMissingError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("reference data missing: %s %q", e.Kind, e.Key)
	}
	return fmt.Sprintf("reference data missing: %s %q on %s", e.Kind, e.Key, e.Date)
}

func (e *ReferenceDataMissingError) Unwrap() error { return ErrReferenceDataMissing }

// Is matches the kind-specific sentinels (ErrMissingRateRow, ...).
func (e *ReferenceDataMissingError) Is(target error) bool {
	return missingByKind[e.Kind] == target
}

var (
	ErrMissingRateRow        = fmt.Errorf("missing rate row: %w", ErrReferenceDataMissing)
	ErrMissingHoursCode      = fmt.Errorf("missing hours code: %w", ErrReferenceDataMissing)
	ErrMissingHoursOption    = fmt.Errorf("missing hours option: %w", ErrReferenceDataMissing)
	ErrMissingDriverSettings = fmt.Errorf("missing driver settings: %w", ErrReferenceDataMissing)
	ErrMissingDriver         = fmt.Errorf("missing driver: %w", ErrReferenceDataMissing)
)

var missingByKind = map[ReferenceKind]error{
	RefRateRow:        ErrMissingRateRow,
	RefHoursCode:      ErrMissingHoursCode,
	RefHoursOption:    ErrMissingHoursOption,
	RefDriverSettings: ErrMissingDriverSettings,
	RefDriver:         ErrMissingDriver,
}

// StateError reports a rejected transition and the state the entity is in.
type StateError struct {
	Entity  string
	ID      string
	Current string
	Action  string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Entity, e.ID, e.Current)
}

func (e *StateError) Unwrap() error { return ErrInvalidStateTransition }

// VersionConflictError reports a stale write.
type VersionConflictError struct {
	Entity   string
	ID       string
	Expected int
	Actual   int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s %s: expected version %d, found %d", e.Entity, e.ID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrConcurrentModification }

// ActorError reports an action refused because of who attempted it.
type ActorError struct {
	Entity string
	ID     string
	Actor  string
	Action string
	Reason string
}

func (e *ActorError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s may not %s %s: %s", e.Actor, e.Action, e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s may not %s %s %s: %s", e.Actor, e.Action, e.Entity, e.ID, e.Reason)
}

func (e *ActorError) Unwrap() error { return ErrActorNotAllowed }

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrActorNotAllowed)
}

// IsForbidden returns true if the actor, not the request, was refused.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrActorNotAllowed)
}

// IsNotFound returns true if the error indicates a missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
