/*
production.go - Recipe consumption coordinator

PURPOSE:
  Expands one production event ("baked 40 sourdough loaves") into
  deductions across every ingredient, with an all-or-nothing guarantee:
  if any single ingredient is short, nothing is deducted anywhere.

TWO-PHASE APPLY:
  Phase 1 validates every ingredient's sufficiency against current state.
  Phase 2 applies all deductions inside one store transaction. Both
  phases run while holding the locks of ALL ingredient items (acquired
  in sorted order), so a concurrent consumption cannot invalidate a
  pre-validated sufficiency between the phases.

FAILURE SHAPE:
  Validation collects every insufficient ingredient, not just the first,
  so a baker fixing a shortage sees the full list at once.

SEE ALSO:
  - costing.go: The single-item deduction this coordinator reuses
  - recipes package: Recipe definition and expansion
*/
package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT / RESULT TYPES
// =============================================================================

// IngredientRequirement is one line of an expanded recipe: deduct
// Quantity of ItemID.
type IngredientRequirement struct {
	ItemID   ItemID
	Quantity decimal.Decimal
}

type ProductionInput struct {
	ProductID    ProductID
	Quantity     decimal.Decimal // units produced
	Requirements []IngredientRequirement
	Date         DayDate
	Reference    string
	ActorID      string
}

// IngredientDeduction reports one applied deduction.
type IngredientDeduction struct {
	ItemID            ItemID
	Quantity          decimal.Decimal
	RemainingQuantity decimal.Decimal
	TransactionID     TransactionID
}

type ProductionResult struct {
	ProductID  ProductID
	Quantity   decimal.Decimal
	Deductions []IngredientDeduction
}

// ProductionShortageError aggregates every insufficient ingredient of a
// rejected production.
type ProductionShortageError struct {
	ProductID ProductID
	Shortages []InsufficientStockError
}

func (e *ProductionShortageError) Error() string {
	parts := make([]string, len(e.Shortages))
	for i, s := range e.Shortages {
		parts[i] = s.Error()
	}
	return "production rejected for " + string(e.ProductID) + ": " + strings.Join(parts, "; ")
}

func (e *ProductionShortageError) Unwrap() error { return ErrInsufficientStock }

// =============================================================================
// COORDINATOR
// =============================================================================

type RecipeConsumptionCoordinator struct {
	store   TxStore
	locks   *LockTable
	costing *CostingEngine
	days    *DayCloseController
	holds   *HoldRegistry
	sink    EventSink
	now     func() time.Time
}

// RecordProduction validates and applies all ingredient deductions for one
// production event. Either every deduction commits or none does.
func (c *RecipeConsumptionCoordinator) RecordProduction(ctx context.Context, in ProductionInput) (ProductionResult, error) {
	if !in.Quantity.IsPositive() {
		return ProductionResult{}, &ValidationError{Field: "quantity", Message: "must be positive"}
	}
	if len(in.Requirements) == 0 {
		return ProductionResult{}, &ValidationError{Field: "requirements", Message: "must not be empty"}
	}
	for _, req := range in.Requirements {
		if !req.Quantity.IsPositive() {
			return ProductionResult{}, &ValidationError{Field: "requirements", Message: "quantities must be positive"}
		}
	}
	if in.Date.IsZero() {
		in.Date = Today()
	}

	// Duplicate lines for one item collapse into a single requirement so
	// sufficiency is checked against the combined quantity.
	in.Requirements = mergeRequirements(in.Requirements)

	var result ProductionResult
	err := withRetry(ctx, func() error {
		keys := make([]string, len(in.Requirements))
		for i, req := range in.Requirements {
			keys[i] = lockKeyItem(req.ItemID)
		}
		release, err := c.locks.AcquireAll(ctx, keys)
		if err != nil {
			return err
		}
		defer release()

		if err := c.days.guardOpen(ctx, in.Date, ScopeStock); err != nil {
			return err
		}

		// Phase 1: validate every ingredient under the held locks.
		items := make(map[ItemID]StockItem, len(in.Requirements))
		var shortages []InsufficientStockError
		for _, req := range in.Requirements {
			if err := c.holds.Check("item", string(req.ItemID)); err != nil {
				return err
			}
			item, err := c.store.GetItem(ctx, req.ItemID)
			if err != nil {
				return err
			}
			if !item.Active {
				return ErrItemInactive
			}
			required := req.Quantity.Round(QuantityScale)
			if required.GreaterThan(item.QuantityOnHand) {
				shortages = append(shortages, InsufficientStockError{
					ItemID:    item.ID,
					Required:  required,
					Available: item.QuantityOnHand,
				})
			}
			items[req.ItemID] = item
		}
		if len(shortages) > 0 {
			for _, s := range shortages {
				c.sink.Publish(InsufficientStockRejected{
					ItemID:    s.ItemID,
					Required:  s.Required,
					Available: s.Available,
					Reference: in.Reference,
				})
			}
			return &ProductionShortageError{ProductID: in.ProductID, Shortages: shortages}
		}

		// Phase 2: apply every deduction in one store transaction.
		deductions := make([]IngredientDeduction, 0, len(in.Requirements))
		updated := make([]StockItem, 0, len(in.Requirements))
		if err := c.store.WithTx(ctx, func(s Store) error {
			deductions = deductions[:0]
			updated = updated[:0]
			for _, req := range in.Requirements {
				item, tx, err := c.costing.consumeInTx(ctx, s, items[req.ItemID], ConsumptionInput{
					ItemID:    req.ItemID,
					Quantity:  req.Quantity,
					Date:      in.Date,
					Reason:    "production " + string(in.ProductID),
					Reference: in.Reference,
					ActorID:   in.ActorID,
				})
				if err != nil {
					return err
				}
				deductions = append(deductions, IngredientDeduction{
					ItemID:            item.ID,
					Quantity:          tx.Quantity,
					RemainingQuantity: item.QuantityOnHand,
					TransactionID:     tx.ID,
				})
				updated = append(updated, item)
			}
			return nil
		}); err != nil {
			// A shortage here means state moved between phases despite the
			// locks, which would be a store bug; surface it unchanged.
			var ise *InsufficientStockError
			if errors.As(err, &ise) {
				return &ProductionShortageError{ProductID: in.ProductID, Shortages: []InsufficientStockError{*ise}}
			}
			return err
		}

		for _, item := range updated {
			c.costing.notifyLowStock(item)
		}

		result = ProductionResult{
			ProductID:  in.ProductID,
			Quantity:   in.Quantity,
			Deductions: deductions,
		}
		return nil
	})
	return result, err
}

func mergeRequirements(reqs []IngredientRequirement) []IngredientRequirement {
	merged := make([]IngredientRequirement, 0, len(reqs))
	index := make(map[ItemID]int, len(reqs))
	for _, req := range reqs {
		if i, ok := index[req.ItemID]; ok {
			merged[i].Quantity = merged[i].Quantity.Add(req.Quantity)
			continue
		}
		index[req.ItemID] = len(merged)
		merged = append(merged, req)
	}
	return merged
}
