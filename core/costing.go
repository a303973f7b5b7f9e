/*
costing.go - Weighted-average cost engine

PURPOSE:
  Maintains (quantityOnHand, averageCost) for every stock item across
  purchases, consumptions, and corrections. The weighted-average rule:

    newAverage = (Q*C + q*c) / (Q + q)

  applied on every purchase of quantity q at unit cost c onto existing
  stock Q at average C. Consumption and adjustments never change the
  average; they only move quantity.

ATOMICITY:
  Every mutation writes the updated item and its stock transaction in
  one store transaction. A failed call leaves the item byte-for-byte
  unchanged and writes no log entry.

LOCKING:
  Read-compute-write on an item is serialized through the per-item lock
  table. Lock timeouts surface as ErrConcurrencyConflict after a small
  bounded number of internal retries.

SEE ALSO:
  - production.go: Multi-ingredient two-phase consumption
  - checker.go: Verifies quantity against the movement log
*/
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// COSTING ENGINE
// =============================================================================

type CostingEngine struct {
	store TxStore
	locks *LockTable
	days  *DayCloseController
	holds *HoldRegistry
	sink  EventSink
	now   func() time.Time
	newID func() TransactionID
}

func newTransactionID() TransactionID {
	return TransactionID(uuid.NewString())
}

// =============================================================================
// INPUT / RESULT TYPES
// =============================================================================

type RegisterItemInput struct {
	ID              ItemID // optional; generated when empty
	Name            string
	Unit            string
	OpeningQuantity decimal.Decimal
	OpeningCost     decimal.Decimal // average cost of the opening stock
	MinLevel        decimal.Decimal
}

type PurchaseInput struct {
	ItemID    ItemID
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	Date      DayDate // defaults to today
	Reason    string
	Reference string
	ActorID   string
}

type PurchaseResult struct {
	NewQuantity    decimal.Decimal
	NewAverageCost decimal.Decimal
	TransactionID  TransactionID
}

type ConsumptionInput struct {
	ItemID    ItemID
	Quantity  decimal.Decimal
	Date      DayDate
	Reason    string
	Reference string
	ActorID   string
}

type ConsumptionResult struct {
	NewQuantity   decimal.Decimal
	TransactionID TransactionID
}

type AdjustmentInput struct {
	ItemID    ItemID
	Delta     decimal.Decimal // signed; positive adds stock
	Date      DayDate
	Reason    string
	Reference string
	ActorID   string
}

// =============================================================================
// ITEM REGISTRATION
// =============================================================================

// RegisterItem creates a stock item. Opening stock enters at the given
// opening cost; both default to zero.
func (e *CostingEngine) RegisterItem(ctx context.Context, in RegisterItemInput) (StockItem, error) {
	if in.Name == "" {
		return StockItem{}, &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Unit == "" {
		return StockItem{}, &ValidationError{Field: "unit", Message: "is required"}
	}
	if in.OpeningQuantity.IsNegative() {
		return StockItem{}, &ValidationError{Field: "openingQuantity", Message: "must not be negative"}
	}
	if in.OpeningCost.IsNegative() {
		return StockItem{}, &ValidationError{Field: "openingCost", Message: "must not be negative"}
	}

	id := in.ID
	if id == "" {
		id = ItemID(uuid.NewString())
	}

	now := e.now()
	item := StockItem{
		ID:              id,
		Name:            in.Name,
		Unit:            in.Unit,
		OpeningQuantity: in.OpeningQuantity.Round(QuantityScale),
		QuantityOnHand:  in.OpeningQuantity.Round(QuantityScale),
		AverageCost:     in.OpeningCost.Round(CostScale),
		MinLevel:        in.MinLevel,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.store.CreateItem(ctx, item); err != nil {
		return StockItem{}, err
	}
	return item, nil
}

// DeactivateItem soft-deletes an item. Items with transaction history are
// never removed; a deactivated item rejects further mutation but keeps
// its log readable.
func (e *CostingEngine) DeactivateItem(ctx context.Context, id ItemID) error {
	release, err := e.locks.Acquire(ctx, lockKeyItem(id))
	if err != nil {
		return err
	}
	defer release()

	item, err := e.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	item.Active = false
	item.UpdatedAt = e.now()
	return e.store.SaveItem(ctx, item)
}

// =============================================================================
// PURCHASE
// =============================================================================

// RecordPurchase applies the weighted-average rule and writes the new item
// state together with one StockIn transaction.
func (e *CostingEngine) RecordPurchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	if !in.Quantity.IsPositive() {
		return PurchaseResult{}, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if !in.UnitCost.IsPositive() {
		return PurchaseResult{}, &ValidationError{Field: "unitCost", Message: "must be positive"}
	}
	if in.Date.IsZero() {
		in.Date = Today()
	}

	var result PurchaseResult
	err := withRetry(ctx, func() error {
		release, err := e.locks.Acquire(ctx, lockKeyItem(in.ItemID))
		if err != nil {
			return err
		}
		defer release()

		if err := e.guardItemMutation(ctx, in.ItemID, in.Date); err != nil {
			return err
		}

		item, err := e.store.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.Active {
			return ErrItemInactive
		}

		qty := in.Quantity.Round(QuantityScale)
		newQuantity := item.QuantityOnHand.Add(qty)
		newAverage := weightedAverage(item.QuantityOnHand, item.AverageCost, qty, in.UnitCost)

		tx := StockTransaction{
			ID:        e.newID(),
			ItemID:    item.ID,
			Kind:      StockIn,
			Quantity:  qty,
			Signed:    qty,
			UnitCost:  in.UnitCost.Round(CostScale),
			Reason:    in.Reason,
			Reference: in.Reference,
			Date:      in.Date,
			CreatedBy: in.ActorID,
			CreatedAt: e.now(),
		}

		item.QuantityOnHand = newQuantity
		item.AverageCost = newAverage
		item.UpdatedAt = e.now()

		if err := e.store.WithTx(ctx, func(s Store) error {
			if err := s.SaveItem(ctx, item); err != nil {
				return err
			}
			stored, err := s.AppendStockTx(ctx, tx)
			if err != nil {
				return err
			}
			tx = stored
			return nil
		}); err != nil {
			return err
		}

		result = PurchaseResult{
			NewQuantity:    newQuantity,
			NewAverageCost: newAverage,
			TransactionID:  tx.ID,
		}
		return nil
	})
	return result, err
}

// weightedAverage computes (Q*C + q*c) / (Q+q) rounded to CostScale.
// Zero existing stock takes the incoming cost directly.
func weightedAverage(existingQty, existingCost, addedQty, addedCost decimal.Decimal) decimal.Decimal {
	totalQty := existingQty.Add(addedQty)
	if totalQty.IsZero() {
		return existingCost
	}
	if existingQty.IsZero() {
		return addedCost.Round(CostScale)
	}
	totalValue := existingQty.Mul(existingCost).Add(addedQty.Mul(addedCost))
	return totalValue.DivRound(totalQty, CostScale)
}

// =============================================================================
// CONSUMPTION
// =============================================================================

// RecordConsumption deducts stock at the current average cost. The average
// itself never moves on consumption.
func (e *CostingEngine) RecordConsumption(ctx context.Context, in ConsumptionInput) (ConsumptionResult, error) {
	if !in.Quantity.IsPositive() {
		return ConsumptionResult{}, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if in.Date.IsZero() {
		in.Date = Today()
	}

	var result ConsumptionResult
	err := withRetry(ctx, func() error {
		release, err := e.locks.Acquire(ctx, lockKeyItem(in.ItemID))
		if err != nil {
			return err
		}
		defer release()

		if err := e.guardItemMutation(ctx, in.ItemID, in.Date); err != nil {
			return err
		}

		item, err := e.store.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.Active {
			return ErrItemInactive
		}

		var tx StockTransaction
		if err := e.store.WithTx(ctx, func(s Store) error {
			updated, written, err := e.consumeInTx(ctx, s, item, in)
			if err != nil {
				return err
			}
			item = updated
			tx = written
			return nil
		}); err != nil {
			return err
		}

		e.notifyLowStock(item)
		result = ConsumptionResult{NewQuantity: item.QuantityOnHand, TransactionID: tx.ID}
		return nil
	})
	return result, err
}

// consumeInTx validates sufficiency and writes the deduction within the
// caller's store transaction. Shared with the production coordinator.
func (e *CostingEngine) consumeInTx(ctx context.Context, s Store, item StockItem, in ConsumptionInput) (StockItem, StockTransaction, error) {
	qty := in.Quantity.Round(QuantityScale)
	if qty.GreaterThan(item.QuantityOnHand) {
		e.sink.Publish(InsufficientStockRejected{
			ItemID:    item.ID,
			Required:  qty,
			Available: item.QuantityOnHand,
			Reference: in.Reference,
		})
		return item, StockTransaction{}, &InsufficientStockError{
			ItemID:    item.ID,
			Required:  qty,
			Available: item.QuantityOnHand,
		}
	}

	tx := StockTransaction{
		ID:        e.newID(),
		ItemID:    item.ID,
		Kind:      StockOut,
		Quantity:  qty,
		Signed:    qty.Neg(),
		UnitCost:  item.AverageCost,
		Reason:    in.Reason,
		Reference: in.Reference,
		Date:      in.Date,
		CreatedBy: in.ActorID,
		CreatedAt: e.now(),
	}

	item.QuantityOnHand = item.QuantityOnHand.Sub(qty)
	item.UpdatedAt = e.now()

	if err := s.SaveItem(ctx, item); err != nil {
		return item, StockTransaction{}, err
	}
	stored, err := s.AppendStockTx(ctx, tx)
	if err != nil {
		return item, StockTransaction{}, err
	}
	return item, stored, nil
}

// =============================================================================
// ADJUSTMENT
// =============================================================================

// RecordAdjustment applies a signed correction. Used for stocktake
// reconciliation and day-close corrections; may not drive quantity
// negative.
func (e *CostingEngine) RecordAdjustment(ctx context.Context, in AdjustmentInput) (TransactionID, error) {
	if in.Delta.IsZero() {
		return "", &ValidationError{Field: "delta", Message: "must not be zero"}
	}
	if in.Reason == "" {
		return "", &ValidationError{Field: "reason", Message: "is required"}
	}
	if in.Date.IsZero() {
		in.Date = Today()
	}

	var txID TransactionID
	err := withRetry(ctx, func() error {
		release, err := e.locks.Acquire(ctx, lockKeyItem(in.ItemID))
		if err != nil {
			return err
		}
		defer release()

		if err := e.guardItemMutation(ctx, in.ItemID, in.Date); err != nil {
			return err
		}

		item, err := e.store.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.Active {
			return ErrItemInactive
		}

		delta := in.Delta.Round(QuantityScale)
		newQuantity := item.QuantityOnHand.Add(delta)
		if newQuantity.IsNegative() {
			return &InsufficientStockError{
				ItemID:    item.ID,
				Required:  delta.Abs(),
				Available: item.QuantityOnHand,
			}
		}

		tx := StockTransaction{
			ID:        e.newID(),
			ItemID:    item.ID,
			Kind:      StockAdjustment,
			Quantity:  delta.Abs(),
			Signed:    delta,
			UnitCost:  item.AverageCost,
			Reason:    in.Reason,
			Reference: in.Reference,
			Date:      in.Date,
			CreatedBy: in.ActorID,
			CreatedAt: e.now(),
		}

		item.QuantityOnHand = newQuantity
		item.UpdatedAt = e.now()

		if err := e.store.WithTx(ctx, func(s Store) error {
			if err := s.SaveItem(ctx, item); err != nil {
				return err
			}
			stored, err := s.AppendStockTx(ctx, tx)
			if err != nil {
				return err
			}
			tx = stored
			return nil
		}); err != nil {
			return err
		}

		e.notifyLowStock(item)
		txID = tx.ID
		return nil
	})
	return txID, err
}

// =============================================================================
// READ QUERIES
// =============================================================================

// GetItemState returns the item's current aggregates.
func (e *CostingEngine) GetItemState(ctx context.Context, id ItemID) (StockItem, error) {
	return e.store.GetItem(ctx, id)
}

// GetTransactionHistory returns all movements for an item in sequence order.
func (e *CostingEngine) GetTransactionHistory(ctx context.Context, id ItemID) ([]StockTransaction, error) {
	if _, err := e.store.GetItem(ctx, id); err != nil {
		return nil, err
	}
	return e.store.StockTxs(ctx, id)
}

// ListItems returns all registered items.
func (e *CostingEngine) ListItems(ctx context.Context) ([]StockItem, error) {
	return e.store.ListItems(ctx)
}

// =============================================================================
// SHARED GUARDS
// =============================================================================

func lockKeyItem(id ItemID) string { return "item:" + string(id) }

func (e *CostingEngine) guardItemMutation(ctx context.Context, id ItemID, date DayDate) error {
	if err := e.holds.Check("item", string(id)); err != nil {
		return err
	}
	return e.days.guardOpen(ctx, date, ScopeStock)
}

func (e *CostingEngine) notifyLowStock(item StockItem) {
	if item.BelowMinLevel() {
		e.sink.Publish(LowStockDetected{
			ItemID:         item.ID,
			QuantityOnHand: item.QuantityOnHand,
			MinLevel:       item.MinLevel,
		})
	}
}
