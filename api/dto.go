/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Every quantity, cost, and balance travels as a decimal string
  ("2.67", "12.500"). JSON numbers round-trip through float64 and would
  corrupt the values the engine maintains exactly.

VALIDATION:
  Request types carry validator tags (go-playground/validator). Handlers
  run the validator before touching domain logic; decimal strings get a
  second parse-level check because tags cannot express decimal syntax.

SEE ALSO:
  - handlers.go: Uses these types
  - recipes/recipes.go: RecipeJSON type
*/
package api

import (
	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
)

// =============================================================================
// STOCK ITEM TYPES
// =============================================================================

// ItemDTO represents a stock item in API responses.
type ItemDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Unit            string `json:"unit"`
	OpeningQuantity string `json:"opening_quantity"`
	QuantityOnHand  string `json:"quantity_on_hand"`
	AverageCost     string `json:"average_cost"`
	StockValue      string `json:"stock_value"`
	MinLevel        string `json:"min_level"`
	BelowMinLevel   bool   `json:"below_min_level"`
	Active          bool   `json:"active"`
	CreatedAt       string `json:"created_at,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

// CreateItemRequest is the request to register a stock item.
type CreateItemRequest struct {
	ID              string `json:"id"`
	Name            string `json:"name" validate:"required"`
	Unit            string `json:"unit" validate:"required"`
	OpeningQuantity string `json:"opening_quantity"`
	OpeningCost     string `json:"opening_cost"`
	MinLevel        string `json:"min_level"`
}

// PurchaseRequest records a stock purchase.
type PurchaseRequest struct {
	Quantity  string `json:"quantity" validate:"required"`
	UnitCost  string `json:"unit_cost" validate:"required"`
	Date      string `json:"date"` // YYYY-MM-DD, defaults to today
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
	ActorID   string `json:"actor_id"`
}

// PurchaseResponse reports the post-purchase item state.
type PurchaseResponse struct {
	TransactionID  string `json:"transaction_id"`
	NewQuantity    string `json:"new_quantity"`
	NewAverageCost string `json:"new_average_cost"`
}

// ConsumptionRequest records a stock consumption.
type ConsumptionRequest struct {
	Quantity  string `json:"quantity" validate:"required"`
	Date      string `json:"date"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
	ActorID   string `json:"actor_id"`
}

// ConsumptionResponse reports the post-consumption item state.
type ConsumptionResponse struct {
	TransactionID string `json:"transaction_id"`
	NewQuantity   string `json:"new_quantity"`
}

// AdjustmentRequest records a signed stock correction.
type AdjustmentRequest struct {
	Delta     string `json:"delta" validate:"required"`
	Date      string `json:"date"`
	Reason    string `json:"reason" validate:"required"`
	Reference string `json:"reference"`
	ActorID   string `json:"actor_id"`
}

// StockTransactionDTO represents one stock movement.
type StockTransactionDTO struct {
	ID        string `json:"id"`
	ItemID    string `json:"item_id"`
	Kind      string `json:"kind"`
	Quantity  string `json:"quantity"`
	Signed    string `json:"signed"`
	UnitCost  string `json:"unit_cost"`
	Reason    string `json:"reason,omitempty"`
	Reference string `json:"reference,omitempty"`
	Date      string `json:"date"`
	Sequence  int64  `json:"sequence"`
	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// PRODUCTION TYPES
// =============================================================================

// ProductionRequest records a production run. Ingredients may be given
// explicitly; otherwise the recipe book resolves them from product_id.
type ProductionRequest struct {
	ProductID   string                 `json:"product_id" validate:"required"`
	Quantity    string                 `json:"quantity" validate:"required"`
	Ingredients []ProductionIngredient `json:"ingredients,omitempty"`
	Date        string                 `json:"date"`
	Reference   string                 `json:"reference"`
	ActorID     string                 `json:"actor_id"`
}

// ProductionIngredient is one explicit ingredient line.
type ProductionIngredient struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity string `json:"quantity" validate:"required"`
}

// ProductionResponse reports the applied deductions.
type ProductionResponse struct {
	ProductID  string                   `json:"product_id"`
	Quantity   string                   `json:"quantity"`
	Deductions []IngredientDeductionDTO `json:"deductions"`
}

// IngredientDeductionDTO is one applied ingredient deduction.
type IngredientDeductionDTO struct {
	ItemID            string `json:"item_id"`
	Quantity          string `json:"quantity"`
	RemainingQuantity string `json:"remaining_quantity"`
	TransactionID     string `json:"transaction_id"`
}

// ShortageDTO is one insufficient ingredient of a rejected production.
type ShortageDTO struct {
	ItemID    string `json:"item_id"`
	Required  string `json:"required"`
	Available string `json:"available"`
	Shortfall string `json:"shortfall"`
}

// CreateRecipeRequest saves a recipe config.
type CreateRecipeRequest struct {
	Config recipes.RecipeJSON `json:"config"`
}

// RecipeDTO represents a recipe in API responses.
type RecipeDTO struct {
	ProductID string             `json:"product_id"`
	Name      string             `json:"name"`
	Config    recipes.RecipeJSON `json:"config"`
}

// =============================================================================
// LEDGER TYPES
// =============================================================================

// EntityDTO represents a ledger entity in API responses.
type EntityDTO struct {
	ID             string `json:"id"`
	Kind           string `json:"kind"`
	Name           string `json:"name"`
	CurrentBalance string `json:"current_balance"`
	CreatedAt      string `json:"created_at,omitempty"`
}

// CreateEntityRequest registers a customer or party.
type CreateEntityRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind" validate:"required,oneof=customer party"`
	Name string `json:"name" validate:"required"`
}

// AppendTransactionRequest appends a ledger transaction for an entity.
type AppendTransactionRequest struct {
	Date      string `json:"date" validate:"required"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Kind      string `json:"kind" validate:"required"`
	Reference string `json:"reference"`
	ActorID   string `json:"actor_id"`
}

// UpdateTransactionRequest edits the amounts or date of a transaction.
type UpdateTransactionRequest struct {
	Debit   string `json:"debit"`
	Credit  string `json:"credit"`
	Date    string `json:"date"` // empty keeps the current date
	ActorID string `json:"actor_id"`
}

// LedgerTransactionDTO represents one ledger transaction.
type LedgerTransactionDTO struct {
	ID             string `json:"id"`
	EntityID       string `json:"entity_id"`
	Date           string `json:"date"`
	Sequence       int64  `json:"sequence"`
	Debit          string `json:"debit"`
	Credit         string `json:"credit"`
	RunningBalance string `json:"running_balance"`
	Kind           string `json:"kind"`
	Reference      string `json:"reference,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// BalanceDTO reports an entity's current balance.
type BalanceDTO struct {
	EntityID string `json:"entity_id"`
	Balance  string `json:"balance"`
}

// =============================================================================
// DAY LOCK TYPES
// =============================================================================

// DayLockRequest closes or reopens a day for a scope.
type DayLockRequest struct {
	Date    string `json:"date" validate:"required"`
	Scope   string `json:"scope" validate:"required,oneof=stock ledger"`
	ActorID string `json:"actor_id"`
}

// DayLockDTO represents one day lock.
type DayLockDTO struct {
	Date       string `json:"date"`
	Scope      string `json:"scope"`
	State      string `json:"state"`
	ClosedBy   string `json:"closed_by,omitempty"`
	ClosedAt   string `json:"closed_at,omitempty"`
	ReopenedBy string `json:"reopened_by,omitempty"`
	ReopenedAt string `json:"reopened_at,omitempty"`
}

// =============================================================================
// CONSISTENCY TYPES
// =============================================================================

// CheckResultDTO reports the outcome of a consistency sweep.
type CheckResultDTO struct {
	Violations []string          `json:"violations"`
	Held       map[string]string `json:"held"`
}

// ResolveHoldRequest releases a consistency hold after manual repair.
type ResolveHoldRequest struct {
	Kind string `json:"kind" validate:"required,oneof=item entity"`
	ID   string `json:"id" validate:"required"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes one loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// =============================================================================
// COMMON TYPES
// =============================================================================

// ErrorResponse is the standard error shape.
type ErrorResponse struct {
	Error     string        `json:"error"`
	Details   string        `json:"details,omitempty"`
	Shortages []ShortageDTO `json:"shortages,omitempty"`
}

// itemToDTO converts a core.StockItem.
func itemToDTO(item core.StockItem) ItemDTO {
	return ItemDTO{
		ID:              string(item.ID),
		Name:            item.Name,
		Unit:            item.Unit,
		OpeningQuantity: item.OpeningQuantity.String(),
		QuantityOnHand:  item.QuantityOnHand.String(),
		AverageCost:     item.AverageCost.String(),
		StockValue:      item.StockValue().String(),
		MinLevel:        item.MinLevel.String(),
		BelowMinLevel:   item.BelowMinLevel(),
		Active:          item.Active,
		CreatedAt:       formatTime(item.CreatedAt),
		UpdatedAt:       formatTime(item.UpdatedAt),
	}
}

// entityToDTO converts a core.LedgerEntity.
func entityToDTO(entity core.LedgerEntity) EntityDTO {
	return EntityDTO{
		ID:             string(entity.ID),
		Kind:           string(entity.Kind),
		Name:           entity.Name,
		CurrentBalance: entity.CurrentBalance.String(),
		CreatedAt:      formatTime(entity.CreatedAt),
	}
}

// stockTxToDTO converts a core.StockTransaction.
func stockTxToDTO(tx core.StockTransaction) StockTransactionDTO {
	return StockTransactionDTO{
		ID:        string(tx.ID),
		ItemID:    string(tx.ItemID),
		Kind:      string(tx.Kind),
		Quantity:  tx.Quantity.String(),
		Signed:    tx.Signed.String(),
		UnitCost:  tx.UnitCost.String(),
		Reason:    tx.Reason,
		Reference: tx.Reference,
		Date:      tx.Date.String(),
		Sequence:  tx.Sequence,
		CreatedBy: tx.CreatedBy,
		CreatedAt: formatTime(tx.CreatedAt),
	}
}

// ledgerTxToDTO converts a core.LedgerTransaction.
func ledgerTxToDTO(tx core.LedgerTransaction) LedgerTransactionDTO {
	return LedgerTransactionDTO{
		ID:             string(tx.ID),
		EntityID:       string(tx.EntityID),
		Date:           tx.Date.String(),
		Sequence:       tx.Sequence,
		Debit:          tx.Debit.String(),
		Credit:         tx.Credit.String(),
		RunningBalance: tx.RunningBalance.String(),
		Kind:           string(tx.Kind),
		Reference:      tx.Reference,
		CreatedBy:      tx.CreatedBy,
		CreatedAt:      formatTime(tx.CreatedAt),
	}
}

// dayLockToDTO converts a core.DayLock.
func dayLockToDTO(lock core.DayLock) DayLockDTO {
	return DayLockDTO{
		Date:       lock.Date.String(),
		Scope:      string(lock.Scope),
		State:      string(lock.State),
		ClosedBy:   lock.ClosedBy,
		ClosedAt:   formatTime(lock.ClosedAt),
		ReopenedBy: lock.ReopenedBy,
		ReopenedAt: formatTime(lock.ReopenedAt),
	}
}
