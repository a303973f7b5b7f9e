/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	bakery data for testing and demos. Each scenario creates items,
	recipes, entities, and transactions that demonstrate specific
	behaviors of the engine.

AVAILABLE SCENARIOS:

	corner-bakery:     Stocked pantry, two recipes, customers with open
	                   balances, one production run
	month-end-close:   The same bakery with a run of days closed in both
	                   scopes, showing the audit frontier
	consistency-drill: A deliberately corrupted item aggregate, caught
	                   and held by the sweep

HOW SCENARIOS WORK:
 1. Reset database (clear all data) and release all holds
 2. Register items and entities through the engine
 3. Save recipes
 4. Record purchases, production, and ledger activity
 5. Optionally close days or corrupt an aggregate

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "corner-bakery"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: The handlers the seeded data is browsed through
  - recipes/presets.go: Recipe JSON builders used by the loaders
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
	"github.com/ovenworks/bakery-engine/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "corner-bakery",
		Name:        "Corner Bakery",
		Description: "Stocked pantry, two recipes, customers with running balances",
		Category:    "stock",
	},
	{
		ID:          "month-end-close",
		Name:        "Month-End Close",
		Description: "Bakery with the first days of the month closed for audit",
		Category:    "audit",
	},
	{
		ID:          "consistency-drill",
		Name:        "Consistency Drill",
		Description: "A corrupted item aggregate, detected and held by the sweep",
		Category:    "consistency",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.Store == nil {
		writeError(w, http.StatusBadRequest, "Scenarios require a database-backed store", nil)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Book.Clear()
	h.releaseAllHolds()
	h.currentScenario = "" // Clear current scenario on reset

	var err error
	switch req.ScenarioID {
	case "corner-bakery":
		err = h.loadCornerBakeryScenario(ctx)
	case "month-end-close":
		err = h.loadMonthEndCloseScenario(ctx)
	case "consistency-drill":
		err = h.loadConsistencyDrillScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// releaseAllHolds lifts every hold. Holds are process-local, so a
// database reset must not leave stale blocks behind.
func (h *Handler) releaseAllHolds() {
	for key := range h.Engine.Holds.Held() {
		parts := strings.SplitN(key, ":", 2)
		if len(parts) == 2 {
			h.Engine.Holds.Resolve(parts[0], parts[1])
		}
	}
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// seedPantry registers the base ingredient items every scenario shares.
func (h *Handler) seedPantry(ctx context.Context) error {
	items := []core.RegisterItemInput{
		{ID: "flour-bread", Name: "Bread Flour", Unit: "kg",
			OpeningQuantity: core.MustDecimal("25"), OpeningCost: core.MustDecimal("1.18"),
			MinLevel: core.MustDecimal("5")},
		{ID: "butter", Name: "Butter 82%", Unit: "kg",
			OpeningQuantity: core.MustDecimal("8"), OpeningCost: core.MustDecimal("7.40"),
			MinLevel: core.MustDecimal("2")},
		{ID: "sugar", Name: "Caster Sugar", Unit: "kg",
			OpeningQuantity: core.MustDecimal("10"), OpeningCost: core.MustDecimal("2.10")},
		{ID: "salt", Name: "Sea Salt", Unit: "kg",
			OpeningQuantity: core.MustDecimal("5"), OpeningCost: core.MustDecimal("0.60")},
		{ID: "yeast", Name: "Fresh Yeast", Unit: "kg",
			OpeningQuantity: core.MustDecimal("1"), OpeningCost: core.MustDecimal("12.00"),
			MinLevel: core.MustDecimal("0.2")},
	}
	for _, in := range items {
		if _, err := h.Engine.Costing.RegisterItem(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// seedRecipe parses, persists, and books one recipe.
func (h *Handler) seedRecipe(ctx context.Context, recipeJSON string) error {
	recipe, err := recipes.Parse(recipeJSON)
	if err != nil {
		return err
	}
	if err := h.Store.SaveRecipe(ctx, sqlite.RecipeRecord{
		ProductID:  string(recipe.ProductID),
		Name:       recipe.Name,
		ConfigJSON: recipeJSON,
	}); err != nil {
		return err
	}
	h.Book.Put(recipe)
	return nil
}

func (h *Handler) loadCornerBakeryScenario(ctx context.Context) error {
	if err := h.seedPantry(ctx); err != nil {
		return err
	}

	// Two recipes: a per-unit loaf and a per-batch croissant run
	if err := h.seedRecipe(ctx, recipes.SimpleLoafJSON("sourdough-loaf", "Sourdough Loaf", "flour-bread", "0.500")); err != nil {
		return err
	}
	if err := h.seedRecipe(ctx, recipes.BatchRecipeJSON("croissant", "Croissant", "24", map[string]string{
		"flour-bread": "3.000",
		"butter":      "1.500",
		"sugar":       "0.300",
		"salt":        "0.060",
		"yeast":       "0.090",
	})); err != nil {
		return err
	}

	// A flour delivery at a higher price, shifting the average cost
	if _, err := h.Engine.Costing.RecordPurchase(ctx, core.PurchaseInput{
		ItemID:    "flour-bread",
		Quantity:  core.MustDecimal("25"),
		UnitCost:  core.MustDecimal("1.35"),
		Date:      scenarioDay(1),
		Reference: "delivery-0412",
		ActorID:   "demo",
	}); err != nil {
		return err
	}

	// A morning bake of 12 loaves through the recipe book
	loaf, err := h.Book.Resolve(ctx, "sourdough-loaf")
	if err != nil {
		return err
	}
	if _, err := h.Engine.Production.RecordProduction(ctx, core.ProductionInput{
		ProductID:    "sourdough-loaf",
		Quantity:     core.MustDecimal("12"),
		Requirements: loaf.RequirementsFor(core.MustDecimal("12")),
		Date:         scenarioDay(2),
		Reference:    "bake-am",
		ActorID:      "demo",
	}); err != nil {
		return err
	}

	// Customers and a flour supplier with ledger activity
	entities := []core.RegisterEntityInput{
		{ID: "cafe-lumiere", Kind: core.EntityCustomer, Name: "Cafe Lumiere"},
		{ID: "hotel-verde", Kind: core.EntityCustomer, Name: "Hotel Verde"},
		{ID: "mill-supplies", Kind: core.EntityParty, Name: "Mill Supplies Co"},
	}
	for _, in := range entities {
		if _, err := h.Engine.Ledger.RegisterEntity(ctx, in); err != nil {
			return err
		}
	}

	appends := []core.LedgerAppendInput{
		{EntityID: "cafe-lumiere", Date: scenarioDay(2), Debit: core.MustDecimal("86.40"),
			Kind: core.LedgerSale, Reference: "inv-1041", ActorID: "demo"},
		{EntityID: "cafe-lumiere", Date: scenarioDay(3), Credit: core.MustDecimal("50.00"),
			Kind: core.LedgerPaymentIn, Reference: "pay-1041a", ActorID: "demo"},
		{EntityID: "hotel-verde", Date: scenarioDay(3), Debit: core.MustDecimal("212.00"),
			Kind: core.LedgerSale, Reference: "inv-1042", ActorID: "demo"},
		{EntityID: "mill-supplies", Date: scenarioDay(1), Debit: core.MustDecimal("33.75"),
			Kind: core.LedgerPurchase, Reference: "delivery-0412", ActorID: "demo"},
	}
	for _, in := range appends {
		if _, err := h.Engine.Ledger.Append(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadMonthEndCloseScenario(ctx context.Context) error {
	if err := h.loadCornerBakeryScenario(ctx); err != nil {
		return err
	}

	// Close the first days in calendar order, both scopes, leaving the
	// current day open.
	for day := 1; day <= 3; day++ {
		date := scenarioDay(day)
		if err := h.Engine.Days.CloseDay(ctx, date, core.ScopeStock, "demo-manager"); err != nil {
			return err
		}
		if err := h.Engine.Days.CloseDay(ctx, date, core.ScopeLedger, "demo-manager"); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadConsistencyDrillScenario(ctx context.Context) error {
	if err := h.seedPantry(ctx); err != nil {
		return err
	}

	// Corrupt the flour aggregate behind the engine's back, then let the
	// checker find it and register the hold.
	item, err := h.Store.GetItem(ctx, "flour-bread")
	if err != nil {
		return err
	}
	item.QuantityOnHand = item.QuantityOnHand.Add(core.MustDecimal("100"))
	if err := h.Store.SaveItem(ctx, item); err != nil {
		return err
	}

	h.Engine.Checker.CheckAll(ctx)
	return nil
}

// scenarioDay returns a date a few days back from today, so seeded
// history reads naturally and today stays open for demo mutations.
func scenarioDay(n int) core.DayDate {
	base := time.Now().UTC().AddDate(0, 0, -5)
	d := base.AddDate(0, 0, n-1)
	return core.NewDayDate(d.Year(), d.Month(), d.Day())
}
