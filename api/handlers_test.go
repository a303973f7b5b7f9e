/*
handlers_test.go - HTTP handler tests

Runs the full router over an in-memory SQLite store and exercises the
REST surface end to end: item registration, purchases, production,
ledger appends and edits, day locks, and consistency holds.
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/bakery-engine/api"
	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/recipes"
	"github.com/ovenworks/bakery-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	engine *core.Engine
	store  *sqlite.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := core.NewEngine(store)
	handler := api.NewHandler(engine, store, recipes.NewStaticBook())
	return &testServer{
		router: api.NewRouter(handler),
		engine: engine,
		store:  store,
	}
}

// do runs a request through the router and decodes the JSON response
// into out (when non-nil).
func (s *testServer) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil {
		require.NoError(t, json.NewDecoder(rec.Body).Decode(out),
			"decoding %s %s response (status %d)", method, path, rec.Code)
	}
	return rec
}

func (s *testServer) createItem(t *testing.T, id, qty, cost string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/items", map[string]any{
		"id": id, "name": "Item " + id, "unit": "kg",
		"opening_quantity": qty, "opening_cost": cost,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (s *testServer) createEntity(t *testing.T, id string) {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/entities", map[string]any{
		"id": id, "kind": "customer", "name": "Customer " + id,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// ITEM ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateAndGetItem(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	var item api.ItemDTO
	rec := srv.do(t, http.MethodGet, "/api/items/flour", nil, &item)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flour", item.ID)
	assert.Equal(t, "10", item.QuantityOnHand)
	assert.Equal(t, "2", item.AverageCost)
	assert.True(t, item.Active)
}

func TestAPI_GetItem_NotFound(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodGet, "/api/items/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_CreateItem_ValidationFailure(t *testing.T) {
	srv := newTestServer(t)

	// Missing name and unit
	rec := srv.do(t, http.MethodPost, "/api/items", map[string]any{"id": "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Bad decimal
	rec = srv.do(t, http.MethodPost, "/api/items", map[string]any{
		"id": "x", "name": "X", "unit": "kg", "opening_quantity": "lots",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_PurchaseReweightsAverage(t *testing.T) {
	// GIVEN: 10 kg at 2.00
	// WHEN: POSTing a purchase of 5 kg at 4.00
	// THEN: The response reports 15 on hand at average 2.67

	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	var resp api.PurchaseResponse
	rec := srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00",
	}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "15", resp.NewQuantity)
	assert.Equal(t, "2.67", resp.NewAverageCost)
	assert.NotEmpty(t, resp.TransactionID)
}

func TestAPI_ConsumptionInsufficientStock_Conflict(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "3", "2.00")

	var resp api.ErrorResponse
	rec := srv.do(t, http.MethodPost, "/api/items/flour/consumptions", map[string]any{
		"quantity": "5",
	}, &resp)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.NotEmpty(t, resp.Details)
}

func TestAPI_AdjustmentRequiresReason(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	rec := srv.do(t, http.MethodPost, "/api/items/flour/adjustments", map[string]any{
		"delta": "-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/items/flour/adjustments", map[string]any{
		"delta": "-1", "reason": "spillage",
	}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAPI_ItemTransactionHistory(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")
	srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00",
	}, nil)
	srv.do(t, http.MethodPost, "/api/items/flour/consumptions", map[string]any{
		"quantity": "2",
	}, nil)

	var txs []api.StockTransactionDTO
	rec := srv.do(t, http.MethodGet, "/api/items/flour/transactions", nil, &txs)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, txs, 2)
	assert.Equal(t, "in", txs[0].Kind)
	assert.Equal(t, int64(1), txs[0].Sequence)
	assert.Equal(t, "out", txs[1].Kind)
	assert.Equal(t, int64(2), txs[1].Sequence)
}

func TestAPI_DeactivatedItemRejectsMovements(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	rec := srv.do(t, http.MethodPost, "/api/items/flour/deactivate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PRODUCTION ENDPOINT TESTS
// =============================================================================

func TestAPI_ProductionWithExplicitIngredients(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")
	srv.createItem(t, "butter", "4", "8.00")

	var resp api.ProductionResponse
	rec := srv.do(t, http.MethodPost, "/api/production", map[string]any{
		"product_id": "croissant",
		"quantity":   "12",
		"ingredients": []map[string]string{
			{"item_id": "flour", "quantity": "6"},
			{"item_id": "butter", "quantity": "1.5"},
		},
	}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, resp.Deductions, 2)
	assert.Equal(t, "4", resp.Deductions[0].RemainingQuantity)
	assert.Equal(t, "2.5", resp.Deductions[1].RemainingQuantity)
}

func TestAPI_ProductionShortage_ConflictWithShortages(t *testing.T) {
	// GIVEN: Not enough of two ingredients
	// WHEN: POSTing the production run
	// THEN: 409 with every shortage listed and no stock touched

	srv := newTestServer(t)
	srv.createItem(t, "flour", "2", "2.00")
	srv.createItem(t, "butter", "1", "8.00")

	var resp api.ErrorResponse
	rec := srv.do(t, http.MethodPost, "/api/production", map[string]any{
		"product_id": "croissant",
		"quantity":   "12",
		"ingredients": []map[string]string{
			{"item_id": "flour", "quantity": "6"},
			{"item_id": "butter", "quantity": "1.5"},
		},
	}, &resp)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Len(t, resp.Shortages, 2)
	assert.Equal(t, "flour", resp.Shortages[0].ItemID)
	assert.Equal(t, "4", resp.Shortages[0].Shortfall)

	var item api.ItemDTO
	srv.do(t, http.MethodGet, "/api/items/flour", nil, &item)
	assert.Equal(t, "2", item.QuantityOnHand, "nothing was deducted")
}

func TestAPI_ProductionFromRecipeBook(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	rec := srv.do(t, http.MethodPost, "/api/recipes", map[string]any{
		"config": map[string]any{
			"product_id": "loaf",
			"name":       "Loaf",
			"ingredients": []map[string]string{
				{"item_id": "flour", "quantity": "0.5"},
			},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp api.ProductionResponse
	rec = srv.do(t, http.MethodPost, "/api/production", map[string]any{
		"product_id": "loaf", "quantity": "12",
	}, &resp)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Len(t, resp.Deductions, 1)
	assert.Equal(t, "6", resp.Deductions[0].Quantity)
	assert.Equal(t, "4", resp.Deductions[0].RemainingQuantity)
}

func TestAPI_ProductionUnknownRecipe(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/production", map[string]any{
		"product_id": "mystery", "quantity": "1",
	}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_RecipePersistsAcrossHandlers(t *testing.T) {
	// A recipe saved through one handler instance is loadable by a fresh
	// one over the same store.

	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/recipes", map[string]any{
		"config": map[string]any{
			"product_id":  "loaf",
			"name":        "Loaf",
			"ingredients": []map[string]string{{"item_id": "flour", "quantity": "0.5"}},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	fresh := api.NewHandler(srv.engine, srv.store, recipes.NewStaticBook())
	require.NoError(t, fresh.LoadRecipes(context.Background()))
	router := api.NewRouter(fresh)

	req := httptest.NewRequest(http.MethodGet, "/api/recipes/loaf", nil)
	out := httptest.NewRecorder()
	router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
}

// =============================================================================
// LEDGER ENDPOINT TESTS
// =============================================================================

func TestAPI_LedgerAppendAndBalance(t *testing.T) {
	srv := newTestServer(t)
	srv.createEntity(t, "cust-1")

	var tx api.LedgerTransactionDTO
	rec := srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-01", "debit": "100", "kind": "sale",
	}, &tx)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "100", tx.RunningBalance)

	srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-02", "credit": "40", "kind": "payment-in",
	}, nil)

	var balance api.BalanceDTO
	rec = srv.do(t, http.MethodGet, "/api/entities/cust-1/balance", nil, &balance)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", balance.Balance)
}

func TestAPI_LedgerDeleteReplays(t *testing.T) {
	srv := newTestServer(t)
	srv.createEntity(t, "cust-1")

	var sale api.LedgerTransactionDTO
	srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-01", "debit": "100", "kind": "sale",
	}, &sale)
	srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-02", "credit": "40", "kind": "payment-in",
	}, nil)

	rec := srv.do(t, http.MethodDelete, "/api/transactions/"+sale.ID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var txs []api.LedgerTransactionDTO
	srv.do(t, http.MethodGet, "/api/entities/cust-1/transactions", nil, &txs)
	require.Len(t, txs, 1)
	assert.Equal(t, "-40", txs[0].RunningBalance)
}

func TestAPI_LedgerUpdateAmounts(t *testing.T) {
	srv := newTestServer(t)
	srv.createEntity(t, "cust-1")

	var sale api.LedgerTransactionDTO
	srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-01", "debit": "100", "kind": "sale",
	}, &sale)

	rec := srv.do(t, http.MethodPut, "/api/transactions/"+sale.ID, map[string]any{
		"debit": "75",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var balance api.BalanceDTO
	srv.do(t, http.MethodGet, "/api/entities/cust-1/balance", nil, &balance)
	assert.Equal(t, "75", balance.Balance)
}

func TestAPI_AppendBothAmounts_BadRequest(t *testing.T) {
	srv := newTestServer(t)
	srv.createEntity(t, "cust-1")

	rec := srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-01", "debit": "100", "credit": "40", "kind": "sale",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Recalculate(t *testing.T) {
	srv := newTestServer(t)
	srv.createEntity(t, "cust-1")
	srv.do(t, http.MethodPost, "/api/entities/cust-1/transactions", map[string]any{
		"date": "2026-03-01", "debit": "100", "kind": "sale",
	}, nil)

	var balance api.BalanceDTO
	rec := srv.do(t, http.MethodPost, "/api/entities/cust-1/recalculate", nil, &balance)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100", balance.Balance)
}

// =============================================================================
// DAY LOCK ENDPOINT TESTS
// =============================================================================

func TestAPI_CloseDayBlocksMutations(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	rec := srv.do(t, http.MethodPost, "/api/days/close", map[string]any{
		"date": "2026-03-10", "scope": "stock", "actor_id": "manager",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00", "date": "2026-03-10",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/days/reopen", map[string]any{
		"date": "2026-03-10", "scope": "stock", "actor_id": "auditor",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00", "date": "2026-03-10",
	}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAPI_ListDayLocks(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, http.MethodPost, "/api/days/close", map[string]any{
		"date": "2026-03-10", "scope": "ledger", "actor_id": "manager",
	}, nil)

	var locks []api.DayLockDTO
	rec := srv.do(t, http.MethodGet, "/api/days?scope=ledger", nil, &locks)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, locks, 1)
	assert.Equal(t, "2026-03-10", locks[0].Date)
	assert.Equal(t, "closed", locks[0].State)
}

func TestAPI_CloseDay_InvalidScope(t *testing.T) {
	srv := newTestServer(t)
	rec := srv.do(t, http.MethodPost, "/api/days/close", map[string]any{
		"date": "2026-03-10", "scope": "warehouse", "actor_id": "manager",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// CONSISTENCY ENDPOINT TESTS
// =============================================================================

func TestAPI_ConsistencyCheckAndHolds(t *testing.T) {
	// GIVEN: An item whose cached quantity was corrupted in the database
	// WHEN: The consistency sweep runs
	// THEN: The violation is reported, the item is held, writes 422, and
	//       resolving after repair clears the hold

	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")
	ctx := context.Background()

	item, err := srv.store.GetItem(ctx, "flour")
	require.NoError(t, err)
	good := item.QuantityOnHand
	item.QuantityOnHand = core.MustDecimal("999")
	require.NoError(t, srv.store.SaveItem(ctx, item))

	var result api.CheckResultDTO
	rec := srv.do(t, http.MethodPost, "/api/consistency/check", nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, result.Violations, 1)
	assert.Contains(t, result.Held, "item:flour")

	rec = srv.do(t, http.MethodPost, "/api/items/flour/purchases", map[string]any{
		"quantity": "5", "unit_cost": "4.00",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Resolving without repairing re-blocks immediately
	rec = srv.do(t, http.MethodPost, "/api/consistency/resolve", map[string]any{
		"kind": "item", "id": "flour",
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// Repair, then resolve
	item.QuantityOnHand = good
	require.NoError(t, srv.store.SaveItem(ctx, item))
	rec = srv.do(t, http.MethodPost, "/api/consistency/resolve", map[string]any{
		"kind": "item", "id": "flour",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var holds map[string]map[string]string
	srv.do(t, http.MethodGet, "/api/consistency/holds", nil, &holds)
	assert.Empty(t, holds["held"])
}

func TestAPI_ConsistencyCheck_CleanState(t *testing.T) {
	srv := newTestServer(t)
	srv.createItem(t, "flour", "10", "2.00")

	var result api.CheckResultDTO
	rec := srv.do(t, http.MethodPost, "/api/consistency/check", nil, &result)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, result.Violations)
	assert.Empty(t, result.Held)
}

// =============================================================================
// ENTITY LISTING
// =============================================================================

func TestAPI_ListEntities(t *testing.T) {
	srv := newTestServer(t)
	for i := 1; i <= 3; i++ {
		srv.createEntity(t, fmt.Sprintf("cust-%d", i))
	}

	var entities []api.EntityDTO
	rec := srv.do(t, http.MethodGet, "/api/entities", nil, &entities)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, entities, 3)
}
