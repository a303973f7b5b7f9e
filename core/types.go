/*
Package core provides the inventory costing and ledger consistency engine.

PURPOSE:
  This package contains the types and algorithms that keep two derived
  aggregates correct over an append/mutate log: the weighted-average cost
  and quantity of every stock item, and the running balance of every
  customer or supplier ledger. Purchases, production consumption, ledger
  edits, and day-close controls all flow through here.

KEY CONCEPTS IN THIS FILE (types.go):
  - StockItem: Current quantity on hand and weighted-average cost
  - StockTransaction: Immutable record of one stock movement
  - LedgerEntity: Customer/supplier with a cached current balance
  - LedgerTransaction: Debit/credit record carrying a derived running balance
  - DayLock: Open/Closed audit state for one (date, scope)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal everywhere - never binary floats
  2. Immutability: Stock transactions are never edited, only adjusted
  3. Derivation: Running balances are always recomputable from the log
  4. Type Safety: Strong typing for IDs prevents mixing item/entity IDs

USAGE:
  engine := core.NewCostingEngine(store, sink)
  res, err := engine.RecordPurchase(ctx, core.PurchaseInput{
      ItemID:   "flour-00",
      Quantity: core.MustDecimal("25"),
      UnitCost: core.MustDecimal("1.18"),
      Date:     core.NewDayDate(2026, time.August, 30),
  })

SEE ALSO:
  - costing.go: Weighted-average cost engine
  - ledger.go: Financial transaction log with running balances
  - dayclose.go: Day lock state machine
  - store.go: Persistence interfaces
*/
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DECIMAL SCALES AND HELPERS
// =============================================================================

const (
	// CostScale is the number of decimal places kept for unit costs and
	// average costs. Money amounts round to the same scale.
	CostScale = 2

	// QuantityScale is the number of decimal places kept for stock
	// quantities (grams/kilograms of flour need fractional units).
	QuantityScale = 3
)

// MustDecimal parses a decimal string, returning zero on failure.
// Intended for constants and tests; request paths parse with error handling.
func MustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ItemID string
type EntityID string
type TransactionID string
type ProductID string

// =============================================================================
// STOCK ITEM - Current state, mutated only by the CostingEngine
// =============================================================================

// StockItem carries the two derived aggregates for one inventory item.
// QuantityOnHand is never negative; AverageCost changes only on purchase.
type StockItem struct {
	ID              ItemID
	Name            string
	Unit            string // "kg", "l", "pcs"
	OpeningQuantity decimal.Decimal
	QuantityOnHand  decimal.Decimal
	AverageCost     decimal.Decimal
	MinLevel        decimal.Decimal
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StockValue returns the on-hand quantity valued at average cost.
func (it StockItem) StockValue() decimal.Decimal {
	return it.QuantityOnHand.Mul(it.AverageCost).Round(CostScale)
}

// BelowMinLevel reports whether the item has fallen to or under its
// reorder threshold. Zero MinLevel disables the check.
func (it StockItem) BelowMinLevel() bool {
	return it.MinLevel.IsPositive() && it.QuantityOnHand.LessThanOrEqual(it.MinLevel)
}

// =============================================================================
// STOCK TRANSACTION - Immutable movement record
// =============================================================================

type StockTxKind string

const (
	StockIn         StockTxKind = "in"         // Purchase receipt
	StockOut        StockTxKind = "out"        // Consumption (production, waste, sale)
	StockAdjustment StockTxKind = "adjustment" // Signed correction
)

// StockTransaction records one stock movement. Quantity is always positive;
// for adjustments the sign lives in Signed. Sequence is assigned by the
// store, strictly increasing per item, and breaks timestamp ties.
type StockTransaction struct {
	ID        TransactionID
	ItemID    ItemID
	Kind      StockTxKind
	Quantity  decimal.Decimal
	Signed    decimal.Decimal // effect on QuantityOnHand: +q, -q, or signed adjustment
	UnitCost  decimal.Decimal // purchase cost for StockIn, average cost otherwise
	Reason    string
	Reference string // originating purchase/production/order id
	Date      DayDate
	Sequence  int64
	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// LEDGER ENTITY - Customer or supplier with cached balance projection
// =============================================================================

type EntityKind string

const (
	EntityCustomer EntityKind = "customer"
	EntityParty    EntityKind = "party" // supplier or other counterparty
)

// LedgerEntity caches the running balance of its most recent transaction
// in (date, sequence) order. The cache is a projection; Recalculate
// rebuilds it from the log.
type LedgerEntity struct {
	ID             EntityID
	Kind           EntityKind
	Name           string
	CurrentBalance decimal.Decimal
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// =============================================================================
// LEDGER TRANSACTION - Mutable financial record with derived running balance
// =============================================================================

type LedgerTxKind string

const (
	LedgerSale       LedgerTxKind = "sale"
	LedgerPurchase   LedgerTxKind = "purchase"
	LedgerPaymentIn  LedgerTxKind = "payment-in"
	LedgerPaymentOut LedgerTxKind = "payment-out"
	LedgerAdjustment LedgerTxKind = "adjustment"
)

// LedgerTransaction is the one mutable record in the system. Edits and
// deletes are permitted, which is why every later RunningBalance must be
// replayed after any change. RunningBalance is derived, never settable
// by callers.
type LedgerTransaction struct {
	ID             TransactionID
	EntityID       EntityID
	Date           DayDate
	Sequence       int64
	Debit          decimal.Decimal
	Credit         decimal.Decimal
	RunningBalance decimal.Decimal
	Kind           LedgerTxKind
	Reference      string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Net returns debit minus credit, the transaction's effect on the balance.
func (tx LedgerTransaction) Net() decimal.Decimal {
	return tx.Debit.Sub(tx.Credit)
}

// Before reports whether tx orders strictly before other in
// (date, sequence) order. Sequence breaks same-day ties.
func (tx LedgerTransaction) Before(other LedgerTransaction) bool {
	if !tx.Date.Equal(other.Date) {
		return tx.Date.Before(other.Date)
	}
	return tx.Sequence < other.Sequence
}

// =============================================================================
// DAY LOCK - Audit state for one (date, scope)
// =============================================================================

type LockScope string

const (
	ScopeStock  LockScope = "stock"
	ScopeLedger LockScope = "ledger"
)

type LockState string

const (
	DayOpen   LockState = "open"
	DayClosed LockState = "closed"
)

// DayLock freezes stock or ledger mutation for one date once that date's
// operations are final. Absence of a record means Open.
type DayLock struct {
	Date       DayDate
	Scope      LockScope
	State      LockState
	ClosedBy   string
	ClosedAt   time.Time
	ReopenedBy string
	ReopenedAt time.Time
}
