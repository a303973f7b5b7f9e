/*
handlers.go - HTTP API handlers for the inventory and ledger engine

PURPOSE:
  Exposes the costing and ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Items:
    GET    /api/items                     List all stock items
    POST   /api/items                     Register a stock item
    GET    /api/items/{id}                Get item state
    POST   /api/items/{id}/deactivate     Deactivate an item
    GET    /api/items/{id}/transactions   Movement history
    POST   /api/items/{id}/purchases      Record a purchase
    POST   /api/items/{id}/consumptions   Record a consumption
    POST   /api/items/{id}/adjustments    Record a signed correction

  Production:
    POST   /api/production                Record a production run

  Recipes:
    GET    /api/recipes                   List recipes
    POST   /api/recipes                   Save a recipe from JSON
    GET    /api/recipes/{productID}       Get a recipe

  Entities:
    GET    /api/entities                  List customers/parties
    POST   /api/entities                  Register an entity
    GET    /api/entities/{id}             Get entity
    GET    /api/entities/{id}/balance     Current balance
    GET    /api/entities/{id}/transactions Ledger history (replay order)
    POST   /api/entities/{id}/transactions Append a transaction
    POST   /api/entities/{id}/recalculate Force a full replay

  Transactions:
    PUT    /api/transactions/{id}         Edit amounts or date
    DELETE /api/transactions/{id}         Delete a transaction

  Days:
    GET    /api/days?scope=stock          List day locks for a scope
    POST   /api/days/close                Close a day
    POST   /api/days/reopen               Reopen a day

  Consistency:
    POST   /api/consistency/check         Full sweep
    GET    /api/consistency/holds         Held records
    POST   /api/consistency/resolve       Release a hold

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 409: Insufficient stock, closed day, concurrency conflict
  - 422: Consistency hold on the record
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  actor_id fields are caller-asserted and recorded for audit only.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
	"github.com/ovenworks/bakery-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *core.Engine
	Store  *sqlite.Store // recipe persistence; nil when recipes are file-only
	Book   *recipes.StaticBook

	validate        *validator.Validate
	currentScenario string
}

// NewHandler creates a new handler. Book may be pre-seeded from a recipe
// file; store-backed recipes are merged in via LoadRecipes.
func NewHandler(engine *core.Engine, store *sqlite.Store, book *recipes.StaticBook) *Handler {
	if book == nil {
		book = recipes.NewStaticBook()
	}
	return &Handler{
		Engine:   engine,
		Store:    store,
		Book:     book,
		validate: validator.New(),
	}
}

// LoadRecipes loads persisted recipes from the database into the book.
func (h *Handler) LoadRecipes(ctx context.Context) error {
	if h.Store == nil {
		return nil
	}
	records, err := h.Store.ListRecipes(ctx)
	if err != nil {
		return err
	}
	for _, rec := range records {
		recipe, err := recipes.Parse(rec.ConfigJSON)
		if err != nil {
			continue // Skip invalid configs
		}
		h.Book.Put(recipe)
	}
	return nil
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// ListItems returns all stock items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Engine.Costing.ListItems(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list items", err)
		return
	}

	dtos := make([]ItemDTO, len(items))
	for i, item := range items {
		dtos[i] = itemToDTO(item)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetItem returns a single item's current state.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	item, err := h.Engine.Costing.GetItemState(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get item", err)
		return
	}
	writeJSON(w, http.StatusOK, itemToDTO(item))
}

// CreateItem registers a new stock item.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	opening, ok := parseDecimalField(w, req.OpeningQuantity, "opening_quantity")
	if !ok {
		return
	}
	openingCost, ok := parseDecimalField(w, req.OpeningCost, "opening_cost")
	if !ok {
		return
	}
	minLevel, ok := parseDecimalField(w, req.MinLevel, "min_level")
	if !ok {
		return
	}

	item, err := h.Engine.Costing.RegisterItem(r.Context(), core.RegisterItemInput{
		ID:              core.ItemID(req.ID),
		Name:            req.Name,
		Unit:            req.Unit,
		OpeningQuantity: opening,
		OpeningCost:     openingCost,
		MinLevel:        minLevel,
	})
	if err != nil {
		writeDomainError(w, "Failed to register item", err)
		return
	}
	writeJSON(w, http.StatusCreated, itemToDTO(item))
}

// DeactivateItem retires an item from further movements.
func (h *Handler) DeactivateItem(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	if err := h.Engine.Costing.DeactivateItem(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to deactivate item", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "active": false})
}

// GetItemTransactions returns an item's movement history.
func (h *Handler) GetItemTransactions(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	txs, err := h.Engine.Costing.GetTransactionHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get transactions", err)
		return
	}

	dtos := make([]StockTransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = stockTxToDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RecordPurchase records incoming stock and reweights the average cost.
func (h *Handler) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	var req PurchaseRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	quantity, ok := parseDecimalField(w, req.Quantity, "quantity")
	if !ok {
		return
	}
	unitCost, ok := parseDecimalField(w, req.UnitCost, "unit_cost")
	if !ok {
		return
	}
	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	result, err := h.Engine.Costing.RecordPurchase(r.Context(), core.PurchaseInput{
		ItemID:    id,
		Quantity:  quantity,
		UnitCost:  unitCost,
		Date:      date,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeDomainError(w, "Failed to record purchase", err)
		return
	}

	writeJSON(w, http.StatusCreated, PurchaseResponse{
		TransactionID:  string(result.TransactionID),
		NewQuantity:    result.NewQuantity.String(),
		NewAverageCost: result.NewAverageCost.String(),
	})
}

// RecordConsumption records outgoing stock at the current average cost.
func (h *Handler) RecordConsumption(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	var req ConsumptionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	quantity, ok := parseDecimalField(w, req.Quantity, "quantity")
	if !ok {
		return
	}
	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	result, err := h.Engine.Costing.RecordConsumption(r.Context(), core.ConsumptionInput{
		ItemID:    id,
		Quantity:  quantity,
		Date:      date,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeDomainError(w, "Failed to record consumption", err)
		return
	}

	writeJSON(w, http.StatusCreated, ConsumptionResponse{
		TransactionID: string(result.TransactionID),
		NewQuantity:   result.NewQuantity.String(),
	})
}

// RecordAdjustment records a signed stock correction.
func (h *Handler) RecordAdjustment(w http.ResponseWriter, r *http.Request) {
	id := core.ItemID(chi.URLParam(r, "id"))

	var req AdjustmentRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	delta, ok := parseDecimalField(w, req.Delta, "delta")
	if !ok {
		return
	}
	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	txID, err := h.Engine.Costing.RecordAdjustment(r.Context(), core.AdjustmentInput{
		ItemID:    id,
		Delta:     delta,
		Date:      date,
		Reason:    req.Reason,
		Reference: req.Reference,
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeDomainError(w, "Failed to record adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction_id": txID})
}

// =============================================================================
// PRODUCTION HANDLERS
// =============================================================================

// RecordProduction validates and applies a production run's ingredient
// deductions. All ingredients succeed or none do.
func (h *Handler) RecordProduction(w http.ResponseWriter, r *http.Request) {
	var req ProductionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	quantity, ok := parseDecimalField(w, req.Quantity, "quantity")
	if !ok {
		return
	}
	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	var reqs []core.IngredientRequirement
	if len(req.Ingredients) > 0 {
		for _, ing := range req.Ingredients {
			q, ok := parseDecimalField(w, ing.Quantity, "ingredients.quantity")
			if !ok {
				return
			}
			reqs = append(reqs, core.IngredientRequirement{
				ItemID:   core.ItemID(ing.ItemID),
				Quantity: q,
			})
		}
	} else {
		recipe, err := h.Book.Resolve(r.Context(), core.ProductID(req.ProductID))
		if err != nil {
			writeDomainError(w, "Failed to resolve recipe", err)
			return
		}
		reqs = recipe.RequirementsFor(quantity)
	}

	result, err := h.Engine.Production.RecordProduction(r.Context(), core.ProductionInput{
		ProductID:    core.ProductID(req.ProductID),
		Quantity:     quantity,
		Requirements: reqs,
		Date:         date,
		Reference:    req.Reference,
		ActorID:      req.ActorID,
	})
	if err != nil {
		writeDomainError(w, "Failed to record production", err)
		return
	}

	resp := ProductionResponse{
		ProductID: string(result.ProductID),
		Quantity:  result.Quantity.String(),
	}
	for _, d := range result.Deductions {
		resp.Deductions = append(resp.Deductions, IngredientDeductionDTO{
			ItemID:            string(d.ItemID),
			Quantity:          d.Quantity.String(),
			RemainingQuantity: d.RemainingQuantity.String(),
			TransactionID:     string(d.TransactionID),
		})
	}
	writeJSON(w, http.StatusCreated, resp)
}

// =============================================================================
// RECIPE HANDLERS
// =============================================================================

// ListRecipes returns all recipes in the book.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	list, err := h.Book.List(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list recipes", err)
		return
	}

	dtos := make([]RecipeDTO, len(list))
	for i, recipe := range list {
		dtos[i] = RecipeDTO{
			ProductID: string(recipe.ProductID),
			Name:      recipe.Name,
			Config:    recipes.ToJSON(recipe),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRecipe returns a single recipe.
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	productID := core.ProductID(chi.URLParam(r, "productID"))

	recipe, err := h.Book.Resolve(r.Context(), productID)
	if err != nil {
		writeDomainError(w, "Failed to get recipe", err)
		return
	}
	writeJSON(w, http.StatusOK, RecipeDTO{
		ProductID: string(recipe.ProductID),
		Name:      recipe.Name,
		Config:    recipes.ToJSON(recipe),
	})
}

// CreateRecipe saves a recipe config and adds it to the book.
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	recipe, err := recipes.FromJSON(req.Config)
	if err != nil {
		writeDomainError(w, "Invalid recipe", err)
		return
	}

	if h.Store != nil {
		configJSON, merr := json.Marshal(req.Config)
		if merr != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode recipe", merr)
			return
		}
		if err := h.Store.SaveRecipe(r.Context(), sqlite.RecipeRecord{
			ProductID:  string(recipe.ProductID),
			Name:       recipe.Name,
			ConfigJSON: string(configJSON),
		}); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save recipe", err)
			return
		}
	}
	h.Book.Put(recipe)

	writeJSON(w, http.StatusCreated, RecipeDTO{
		ProductID: string(recipe.ProductID),
		Name:      recipe.Name,
		Config:    req.Config,
	})
}

// =============================================================================
// ENTITY / LEDGER HANDLERS
// =============================================================================

// ListEntities returns all customers and parties.
func (h *Handler) ListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.Engine.Ledger.ListEntities(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to list entities", err)
		return
	}

	dtos := make([]EntityDTO, len(entities))
	for i, entity := range entities {
		dtos[i] = entityToDTO(entity)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntity returns a single entity.
func (h *Handler) GetEntity(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	entities, err := h.Engine.Ledger.ListEntities(r.Context())
	if err != nil {
		writeDomainError(w, "Failed to get entity", err)
		return
	}
	for _, entity := range entities {
		if entity.ID == id {
			writeJSON(w, http.StatusOK, entityToDTO(entity))
			return
		}
	}
	writeError(w, http.StatusNotFound, "Entity not found", nil)
}

// CreateEntity registers a customer or party.
func (h *Handler) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var req CreateEntityRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	entity, err := h.Engine.Ledger.RegisterEntity(r.Context(), core.RegisterEntityInput{
		ID:   core.EntityID(req.ID),
		Kind: core.EntityKind(req.Kind),
		Name: req.Name,
	})
	if err != nil {
		writeDomainError(w, "Failed to register entity", err)
		return
	}
	writeJSON(w, http.StatusCreated, entityToDTO(entity))
}

// GetBalance returns an entity's current balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	balance, err := h.Engine.Ledger.GetEntityBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EntityID: string(id),
		Balance:  balance.String(),
	})
}

// GetLedgerTransactions returns an entity's ledger in replay order.
func (h *Handler) GetLedgerTransactions(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	txs, err := h.Engine.Ledger.GetLedgerHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get transactions", err)
		return
	}

	dtos := make([]LedgerTransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = ledgerTxToDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AppendTransaction appends a ledger transaction and returns it with its
// running balance.
func (h *Handler) AppendTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	var req AppendTransactionRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	debit, ok := parseDecimalField(w, req.Debit, "debit")
	if !ok {
		return
	}
	credit, ok := parseDecimalField(w, req.Credit, "credit")
	if !ok {
		return
	}
	date, ok := parseDateField(w, req.Date)
	if !ok {
		return
	}

	tx, err := h.Engine.Ledger.Append(r.Context(), core.LedgerAppendInput{
		EntityID:  id,
		Date:      date,
		Debit:     debit,
		Credit:    credit,
		Kind:      core.LedgerTxKind(req.Kind),
		Reference: req.Reference,
		ActorID:   req.ActorID,
	})
	if err != nil {
		writeDomainError(w, "Failed to append transaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, ledgerTxToDTO(tx))
}

// UpdateTransaction edits a transaction's amounts or date and replays
// the entity's ledger.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.TransactionID(chi.URLParam(r, "id"))

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	debit, ok := parseDecimalField(w, req.Debit, "debit")
	if !ok {
		return
	}
	credit, ok := parseDecimalField(w, req.Credit, "credit")
	if !ok {
		return
	}

	in := core.LedgerUpdateInput{
		Debit:   debit,
		Credit:  credit,
		ActorID: req.ActorID,
	}
	if req.Date != "" {
		date, err := core.ParseDayDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
		in.NewDate = &date
	}

	if err := h.Engine.Ledger.Update(r.Context(), id, in); err != nil {
		writeDomainError(w, "Failed to update transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "updated"})
}

// DeleteTransaction removes a transaction and replays the entity's ledger.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := core.TransactionID(chi.URLParam(r, "id"))

	if err := h.Engine.Ledger.Delete(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "deleted"})
}

// Recalculate forces a full replay of an entity's running balances.
func (h *Handler) Recalculate(w http.ResponseWriter, r *http.Request) {
	id := core.EntityID(chi.URLParam(r, "id"))

	if err := h.Engine.Recalc.Recalculate(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to recalculate", err)
		return
	}

	balance, err := h.Engine.Ledger.GetEntityBalance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to read balance", err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		EntityID: string(id),
		Balance:  balance.String(),
	})
}

// =============================================================================
// DAY LOCK HANDLERS
// =============================================================================

// ListDayLocks returns the day locks for a scope.
func (h *Handler) ListDayLocks(w http.ResponseWriter, r *http.Request) {
	scope := core.LockScope(r.URL.Query().Get("scope"))
	if scope == "" {
		scope = core.ScopeStock
	}

	locks, err := h.Engine.Days.Locks(r.Context(), scope)
	if err != nil {
		writeDomainError(w, "Failed to list day locks", err)
		return
	}

	dtos := make([]DayLockDTO, len(locks))
	for i, lock := range locks {
		dtos[i] = dayLockToDTO(lock)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CloseDay closes a (date, scope) pair against further mutation.
func (h *Handler) CloseDay(w http.ResponseWriter, r *http.Request) {
	var req DayLockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, err := core.ParseDayDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Engine.Days.CloseDay(r.Context(), date, core.LockScope(req.Scope), req.ActorID); err != nil {
		writeDomainError(w, "Failed to close day", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": req.Date, "scope": req.Scope, "state": core.DayClosed})
}

// ReopenDay reopens a previously closed (date, scope) pair.
func (h *Handler) ReopenDay(w http.ResponseWriter, r *http.Request) {
	var req DayLockRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	date, err := core.ParseDayDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	if err := h.Engine.Days.ReopenDay(r.Context(), date, core.LockScope(req.Scope), req.ActorID); err != nil {
		writeDomainError(w, "Failed to reopen day", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": req.Date, "scope": req.Scope, "state": core.DayOpen})
}

// =============================================================================
// CONSISTENCY HANDLERS
// =============================================================================

// RunConsistencyCheck sweeps every item and entity.
func (h *Handler) RunConsistencyCheck(w http.ResponseWriter, r *http.Request) {
	violations := h.Engine.Checker.CheckAll(r.Context())

	result := CheckResultDTO{
		Violations: make([]string, len(violations)),
		Held:       h.Engine.Holds.Held(),
	}
	for i, v := range violations {
		result.Violations[i] = v.Error()
	}
	writeJSON(w, http.StatusOK, result)
}

// ListHolds returns the records currently blocked by consistency holds.
func (h *Handler) ListHolds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"held": h.Engine.Holds.Held()})
}

// ResolveHold releases a hold after manual repair, then re-checks the
// record so an unrepaired mismatch re-blocks immediately.
func (h *Handler) ResolveHold(w http.ResponseWriter, r *http.Request) {
	var req ResolveHoldRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	h.Engine.Holds.Resolve(req.Kind, req.ID)

	var err error
	switch req.Kind {
	case "item":
		err = h.Engine.Checker.CheckItem(r.Context(), core.ItemID(req.ID))
	case "entity":
		err = h.Engine.Checker.CheckEntity(r.Context(), core.EntityID(req.ID))
	}
	if err != nil {
		writeDomainError(w, "Record still inconsistent", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": req.Kind, "id": req.ID, "status": "resolved"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decodeAndValidate decodes the body into dst and runs struct validation.
// Writes the error response itself and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// parseDecimalField parses an optional decimal string, treating "" as
// zero. Writes a 400 and returns false on bad syntax.
func parseDecimalField(w http.ResponseWriter, s, field string) (decimal.Decimal, bool) {
	if s == "" {
		return decimal.Zero, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid decimal in "+field, err)
		return decimal.Decimal{}, false
	}
	return d, true
}

// parseDateField parses an optional YYYY-MM-DD date, treating "" as the
// zero date (the engine defaults it to today).
func parseDateField(w http.ResponseWriter, s string) (core.DayDate, bool) {
	if s == "" {
		return core.DayDate{}, true
	}
	date, err := core.ParseDayDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return core.DayDate{}, false
	}
	return date, true
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	var shortage *core.ProductionShortageError
	if errors.As(err, &shortage) {
		resp := ErrorResponse{Error: message, Details: err.Error()}
		for _, s := range shortage.Shortages {
			resp.Shortages = append(resp.Shortages, ShortageDTO{
				ItemID:    string(s.ItemID),
				Required:  s.Required.String(),
				Available: s.Available.String(),
				Shortfall: s.Shortfall().String(),
			})
		}
		writeJSON(w, http.StatusConflict, resp)
		return
	}

	switch {
	case errors.Is(err, core.ErrValidation), errors.Is(err, core.ErrItemInactive):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, core.ErrInsufficientStock),
		errors.Is(err, core.ErrDayLocked),
		errors.Is(err, core.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, core.ErrConsistency):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
