package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/bakery-engine/core"
	"github.com/ovenworks/bakery-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal { return core.MustDecimal(s) }

func testItem(id string) core.StockItem {
	now := time.Now().UTC().Truncate(time.Second)
	return core.StockItem{
		ID:              core.ItemID(id),
		Name:            "Bread Flour",
		Unit:            "kg",
		OpeningQuantity: d("10"),
		QuantityOnHand:  d("10"),
		AverageCost:     d("2.00"),
		MinLevel:        d("2"),
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func testEntity(id string) core.LedgerEntity {
	now := time.Now().UTC().Truncate(time.Second)
	return core.LedgerEntity{
		ID:             core.EntityID(id),
		Kind:           core.EntityCustomer,
		Name:           "Cafe Lumiere",
		CurrentBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// =============================================================================
// ITEM ROUND-TRIPS
// =============================================================================

func TestStore_ItemRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateItem(ctx, testItem("flour")))

	got, err := store.GetItem(ctx, "flour")
	require.NoError(t, err)
	assert.Equal(t, "Bread Flour", got.Name)
	assert.True(t, got.QuantityOnHand.Equal(d("10")))
	assert.True(t, got.AverageCost.Equal(d("2.00")))
	assert.True(t, got.Active)

	got.QuantityOnHand = d("7.250")
	got.Active = false
	require.NoError(t, store.SaveItem(ctx, got))

	got, err = store.GetItem(ctx, "flour")
	require.NoError(t, err)
	assert.True(t, got.QuantityOnHand.Equal(d("7.250")))
	assert.False(t, got.Active)
}

func TestStore_CreateItem_DuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateItem(ctx, testItem("flour")))
	err := store.CreateItem(ctx, testItem("flour"))
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestStore_GetItem_NotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetItem(context.Background(), "ghost")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_SaveItem_NotFound(t *testing.T) {
	store := newTestStore(t)
	err := store.SaveItem(context.Background(), testItem("ghost"))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_ListItems_ActiveFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	inactive := testItem("salt")
	inactive.Name = "Salt"
	inactive.Active = false
	require.NoError(t, store.CreateItem(ctx, inactive))
	require.NoError(t, store.CreateItem(ctx, testItem("flour")))

	items, err := store.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].Active)
	assert.False(t, items[1].Active)
}

// =============================================================================
// STOCK TRANSACTIONS
// =============================================================================

func TestStore_AppendStockTx_AssignsSequencePerItem(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateItem(ctx, testItem("flour")))
	require.NoError(t, store.CreateItem(ctx, testItem("salt")))

	mk := func(id string, item string) core.StockTransaction {
		return core.StockTransaction{
			ID:        core.TransactionID(id),
			ItemID:    core.ItemID(item),
			Kind:      core.StockIn,
			Quantity:  d("5"),
			Signed:    d("5"),
			UnitCost:  d("2.00"),
			Date:      core.NewDayDate(2026, time.March, 1),
			CreatedAt: time.Now().UTC(),
		}
	}

	tx1, err := store.AppendStockTx(ctx, mk("tx-1", "flour"))
	require.NoError(t, err)
	tx2, err := store.AppendStockTx(ctx, mk("tx-2", "flour"))
	require.NoError(t, err)
	other, err := store.AppendStockTx(ctx, mk("tx-3", "salt"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), tx1.Sequence)
	assert.Equal(t, int64(2), tx2.Sequence)
	assert.Equal(t, int64(1), other.Sequence, "sequences are per item")

	txs, err := store.StockTxs(ctx, "flour")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, core.TransactionID("tx-1"), txs[0].ID)
	assert.True(t, txs[0].Signed.Equal(d("5")))
	assert.Equal(t, core.StockIn, txs[0].Kind)
	assert.Equal(t, "2026-03-01", txs[0].Date.String())
}

// =============================================================================
// LEDGER ROUND-TRIPS
// =============================================================================

func TestStore_EntityRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEntity(ctx, testEntity("cust-1")))

	got, err := store.GetEntity(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, core.EntityCustomer, got.Kind)
	assert.True(t, got.CurrentBalance.IsZero())

	got.CurrentBalance = d("60")
	require.NoError(t, store.SaveEntity(ctx, got))

	got, err = store.GetEntity(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(d("60")))
}

func TestStore_LedgerTxs_OrderedByDateThenSeq(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntity(ctx, testEntity("cust-1")))

	mk := func(id, date, debit string) core.LedgerTransaction {
		day, err := core.ParseDayDate(date)
		require.NoError(t, err)
		now := time.Now().UTC()
		return core.LedgerTransaction{
			ID:        core.TransactionID(id),
			EntityID:  "cust-1",
			Date:      day,
			Debit:     d(debit),
			Credit:    decimal.Zero,
			Kind:      core.LedgerSale,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}

	// Inserted out of date order; sequence reflects insertion order.
	first, err := store.InsertLedgerTx(ctx, mk("tx-1", "2026-03-05", "100"))
	require.NoError(t, err)
	second, err := store.InsertLedgerTx(ctx, mk("tx-2", "2026-03-01", "50"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Sequence)
	assert.Equal(t, int64(2), second.Sequence)

	txs, err := store.LedgerTxs(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, core.TransactionID("tx-2"), txs[0].ID, "earlier date replays first")
	assert.Equal(t, core.TransactionID("tx-1"), txs[1].ID)
}

func TestStore_UpdateAndDeleteLedgerTx(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateEntity(ctx, testEntity("cust-1")))

	now := time.Now().UTC()
	tx, err := store.InsertLedgerTx(ctx, core.LedgerTransaction{
		ID: "tx-1", EntityID: "cust-1",
		Date:  core.NewDayDate(2026, time.March, 1),
		Debit: d("100"), Credit: decimal.Zero,
		Kind: core.LedgerSale, CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)

	tx.Debit = d("75")
	tx.RunningBalance = d("75")
	require.NoError(t, store.UpdateLedgerTx(ctx, tx))

	got, err := store.GetLedgerTx(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, got.Debit.Equal(d("75")))
	assert.True(t, got.RunningBalance.Equal(d("75")))

	require.NoError(t, store.DeleteLedgerTx(ctx, "tx-1"))
	_, err = store.GetLedgerTx(ctx, "tx-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, store.DeleteLedgerTx(ctx, "tx-1"), core.ErrNotFound)
}

// =============================================================================
// DAY LOCKS
// =============================================================================

func TestStore_DayLockRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	day := core.NewDayDate(2026, time.March, 10)

	_, found, err := store.GetDayLock(ctx, day, core.ScopeStock)
	require.NoError(t, err)
	assert.False(t, found)

	lock := core.DayLock{
		Date: day, Scope: core.ScopeStock, State: core.DayClosed,
		ClosedBy: "manager", ClosedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.SaveDayLock(ctx, lock))

	got, found, err := store.GetDayLock(ctx, day, core.ScopeStock)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, core.DayClosed, got.State)
	assert.Equal(t, "manager", got.ClosedBy)

	// Reopen upserts in place
	lock.State = core.DayOpen
	lock.ReopenedBy = "auditor"
	lock.ReopenedAt = time.Now().UTC()
	require.NoError(t, store.SaveDayLock(ctx, lock))

	got, found, err = store.GetDayLock(ctx, day, core.ScopeStock)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, core.DayOpen, got.State)
	assert.Equal(t, "auditor", got.ReopenedBy)
}

func TestStore_LatestClosedAfter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	closedOn := func(date string, scope core.LockScope, state core.LockState) {
		day, err := core.ParseDayDate(date)
		require.NoError(t, err)
		require.NoError(t, store.SaveDayLock(ctx, core.DayLock{
			Date: day, Scope: scope, State: state,
			ClosedBy: "manager", ClosedAt: time.Now().UTC(),
		}))
	}
	closedOn("2026-03-12", core.ScopeStock, core.DayClosed)
	closedOn("2026-03-15", core.ScopeStock, core.DayClosed)
	closedOn("2026-03-20", core.ScopeStock, core.DayOpen)   // reopened, ignored
	closedOn("2026-03-25", core.ScopeLedger, core.DayClosed) // other scope, ignored

	latest, found, err := store.LatestClosedAfter(ctx, core.NewDayDate(2026, time.March, 10), core.ScopeStock)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2026-03-15", latest.String())

	_, found, err = store.LatestClosedAfter(ctx, core.NewDayDate(2026, time.March, 15), core.ScopeStock)
	require.NoError(t, err)
	assert.False(t, found)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that creates an item and then fails
	// WHEN: WithTx returns the error
	// THEN: The item creation is rolled back

	store := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s core.Store) error {
		if err := s.CreateItem(ctx, testItem("flour")); err != nil {
			return err
		}
		if _, err := s.GetItem(ctx, "flour"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.GetItem(ctx, "flour")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_WithTx_CommitsOnSuccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(s core.Store) error {
		return s.CreateItem(ctx, testItem("flour"))
	})
	require.NoError(t, err)

	_, err = store.GetItem(ctx, "flour")
	assert.NoError(t, err)
}

// =============================================================================
// RECIPES
// =============================================================================

func TestStore_RecipeUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	got, err := store.GetRecipe(ctx, "loaf")
	require.NoError(t, err)
	assert.Nil(t, got, "absent recipe returns nil without error")

	require.NoError(t, store.SaveRecipe(ctx, sqlite.RecipeRecord{
		ProductID:  "loaf",
		Name:       "Loaf",
		ConfigJSON: `{"product_id":"loaf","ingredients":[{"item_id":"flour","quantity":"0.5"}]}`,
	}))

	got, err = store.GetRecipe(ctx, "loaf")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Loaf", got.Name)

	require.NoError(t, store.SaveRecipe(ctx, sqlite.RecipeRecord{
		ProductID:  "loaf",
		Name:       "Country Loaf",
		ConfigJSON: `{"product_id":"loaf","ingredients":[{"item_id":"flour","quantity":"0.6"}]}`,
	}))

	records, err := store.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Country Loaf", records[0].Name)
}

// =============================================================================
// ENGINE INTEGRATION
// =============================================================================

func TestStore_EngineEndToEnd(t *testing.T) {
	// The full engine running over SQLite: purchase reweights the average
	// and ledger appends carry running balances, all through real SQL.

	store := newTestStore(t)
	eng := core.NewEngine(store)
	ctx := context.Background()

	_, err := eng.Costing.RegisterItem(ctx, core.RegisterItemInput{
		ID: "flour", Name: "Bread Flour", Unit: "kg",
		OpeningQuantity: d("10"), OpeningCost: d("2.00"),
	})
	require.NoError(t, err)

	res, err := eng.Costing.RecordPurchase(ctx, core.PurchaseInput{
		ItemID: "flour", Quantity: d("5"), UnitCost: d("4.00"),
	})
	require.NoError(t, err)
	assert.True(t, res.NewAverageCost.Equal(d("2.67")))

	_, err = eng.Ledger.RegisterEntity(ctx, core.RegisterEntityInput{
		ID: "cust-1", Kind: core.EntityCustomer, Name: "Cafe Lumiere",
	})
	require.NoError(t, err)

	sale, err := eng.Ledger.Append(ctx, core.LedgerAppendInput{
		EntityID: "cust-1", Debit: d("100"), Kind: core.LedgerSale,
	})
	require.NoError(t, err)
	assert.True(t, sale.RunningBalance.Equal(d("100")))

	balance, err := eng.Ledger.GetEntityBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("100")))
}
