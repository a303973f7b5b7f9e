/*
events.go - Domain events emitted by the engine

PURPOSE:
  The engine never calls notification or logging code directly. It
  publishes events to an injected EventSink; collaborators (console
  logger, email notifier, dashboards) subscribe on the outside. This
  keeps the engine independently testable.

EVENTS:
  LowStockDetected          quantity fell to or under the item's min level
  InsufficientStockRejected a consumption or production was refused
  DayClosed / DayReopened   audit lock state changed
  BalanceRecalculated       a ledger replay rewrote running balances
  ConsistencyViolation      a derived aggregate disagreed with the log

SEE ALSO:
  - api/events.go: logrus-backed sink used by the server
*/
package core

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// EVENT SINK
// =============================================================================

// Event is a marker for engine domain events.
type Event interface {
	EventName() string
}

// EventSink receives engine events. Publish must not block; sinks that do
// slow work should hand off to their own goroutine.
type EventSink interface {
	Publish(event Event)
}

// NopSink discards all events. Used when no sink is injected.
type NopSink struct{}

func (NopSink) Publish(Event) {}

// =============================================================================
// EVENT TYPES
// =============================================================================

type LowStockDetected struct {
	ItemID         ItemID
	QuantityOnHand decimal.Decimal
	MinLevel       decimal.Decimal
}

func (LowStockDetected) EventName() string { return "low_stock_detected" }

type InsufficientStockRejected struct {
	ItemID    ItemID
	Required  decimal.Decimal
	Available decimal.Decimal
	Reference string
}

func (InsufficientStockRejected) EventName() string { return "insufficient_stock_rejected" }

type DayClosedEvent struct {
	Date     DayDate
	Scope    LockScope
	ClosedBy string
}

func (DayClosedEvent) EventName() string { return "day_closed" }

type DayReopenedEvent struct {
	Date       DayDate
	Scope      LockScope
	ReopenedBy string
}

func (DayReopenedEvent) EventName() string { return "day_reopened" }

type BalanceRecalculated struct {
	EntityID   EntityID
	Rewritten  int // transactions whose running balance changed
	NewBalance decimal.Decimal
}

func (BalanceRecalculated) EventName() string { return "balance_recalculated" }

type ConsistencyViolation struct {
	Kind   string // "item" or "entity"
	ID     string
	Detail string
}

func (ConsistencyViolation) EventName() string { return "consistency_violation" }
