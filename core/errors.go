/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers branch on sentinels with errors.Is and pull detail out of
  the structured types with errors.As.

ERROR CATEGORIES:
  1. Validation errors - malformed input, terminal
  2. Business rule errors - insufficient stock, day locked, terminal
  3. Concurrency conflicts - lock/version contention, retryable
  4. Consistency errors - invariant violation after replay, critical

USAGE:
  if errors.Is(err, core.ErrInsufficientStock) {
      var ise *core.InsufficientStockError
      errors.As(err, &ise)
      // ise.Required, ise.Available
  }

SEE ALSO:
  - costing.go, ledger.go: Produce these errors
  - api/handlers.go: Maps them to HTTP status codes
*/
package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: non-positive quantity
	// or cost, both debit and credit set, missing required fields.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced item, entity, or
	// transaction does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when a consumption would drive
	// quantity on hand negative. Terminal; never retried.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrDayLocked is returned when a mutation targets a date whose
	// day lock is Closed. Terminal; reopen the day first.
	ErrDayLocked = errors.New("day is closed")

	// ErrConcurrencyConflict is returned when a per-item or per-entity
	// lock could not be acquired in time. The only retryable category.
	ErrConcurrencyConflict = errors.New("concurrency conflict")

	// ErrConsistency is returned when a derived aggregate does not match
	// what the transaction log implies. Critical: writes to the affected
	// record are blocked until resolved out-of-band.
	ErrConsistency = errors.New("consistency check failed")

	// ErrItemInactive is returned when a mutation targets a deactivated item.
	ErrItemInactive = errors.New("item is deactivated")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "item", "entity", "transaction", "recipe"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError reports the shortage that blocked a consumption.
type InsufficientStockError struct {
	ItemID    ItemID
	Required  decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: required %s, available %s",
		e.ItemID, e.Required, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortfall returns how much stock is missing.
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Required.Sub(e.Available)
}

// DayLockedError reports which closed period a mutation ran into.
type DayLockedError struct {
	Date  DayDate
	Scope LockScope
}

func (e *DayLockedError) Error() string {
	return fmt.Sprintf("day %s is closed for %s", e.Date, e.Scope)
}

func (e *DayLockedError) Unwrap() error { return ErrDayLocked }

// ConsistencyError reports a derived aggregate that disagrees with the log.
type ConsistencyError struct {
	Kind     string // "item" or "entity"
	ID       string
	Stored   decimal.Decimal
	Computed decimal.Decimal
	Detail   string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("consistency check failed for %s %s: stored %s, log implies %s (%s)",
		e.Kind, e.ID, e.Stored, e.Computed, e.Detail)
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
// Only concurrency conflicts qualify; everything else is terminal.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsClientError returns true if the error is due to invalid client input
// or a terminal business rule violation.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrDayLocked) ||
		errors.Is(err, ErrItemInactive)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
