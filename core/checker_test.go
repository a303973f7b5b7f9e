package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovenworks/bakery-engine/core"
	memstore "github.com/ovenworks/bakery-engine/core/store"
)

// newCheckedEngine exposes the backing store so tests can corrupt
// aggregates behind the engine's back.
func newCheckedEngine(t *testing.T) (*core.Engine, *memstore.Memory, *recordingSink) {
	t.Helper()
	store := memstore.NewMemory()
	sink := &recordingSink{}
	return core.NewEngine(store, core.WithEventSink(sink)), store, sink
}

// =============================================================================
// ITEM CHECKS
// =============================================================================

func TestChecker_ConsistentItemPasses(t *testing.T) {
	eng, _, _ := newCheckedEngine(t)
	ctx := context.Background()
	registerFlour(t, eng, "10", "2.00")

	_, err := eng.Costing.RecordPurchase(ctx, core.PurchaseInput{
		ItemID: "flour", Quantity: d("5"), UnitCost: d("4.00"),
	})
	require.NoError(t, err)

	assert.NoError(t, eng.Checker.CheckItem(ctx, "flour"))
}

func TestChecker_CorruptQuantityIsHeld(t *testing.T) {
	// GIVEN: An item whose cached quantity was tampered with
	// WHEN: The checker runs
	// THEN: It reports the mismatch, places a hold, and further writes
	//       to the item are rejected

	eng, store, sink := newCheckedEngine(t)
	ctx := context.Background()
	registerFlour(t, eng, "10", "2.00")

	item, err := store.GetItem(ctx, "flour")
	require.NoError(t, err)
	item.QuantityOnHand = d("999")
	require.NoError(t, store.SaveItem(ctx, item))

	err = eng.Checker.CheckItem(ctx, "flour")
	var cerr *core.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "item", cerr.Kind)
	assert.True(t, cerr.Stored.Equal(d("999")))
	assert.True(t, cerr.Computed.Equal(d("10")))

	assert.Len(t, sink.byName("consistency_violation"), 1)

	_, err = eng.Costing.RecordPurchase(ctx, core.PurchaseInput{
		ItemID: "flour", Quantity: d("5"), UnitCost: d("4.00"),
	})
	assert.ErrorIs(t, err, core.ErrConsistency, "held item rejects writes")
}

func TestChecker_ResolveHoldRestoresWrites(t *testing.T) {
	// After the corruption is corrected out-of-band and the hold is
	// resolved, writes flow again.

	eng, store, _ := newCheckedEngine(t)
	ctx := context.Background()
	registerFlour(t, eng, "10", "2.00")

	item, err := store.GetItem(ctx, "flour")
	require.NoError(t, err)
	good := item.QuantityOnHand
	item.QuantityOnHand = d("999")
	require.NoError(t, store.SaveItem(ctx, item))
	require.Error(t, eng.Checker.CheckItem(ctx, "flour"))

	item.QuantityOnHand = good
	require.NoError(t, store.SaveItem(ctx, item))
	eng.Holds.Resolve("item", "flour")

	require.NoError(t, eng.Checker.CheckItem(ctx, "flour"))
	_, err = eng.Costing.RecordPurchase(ctx, core.PurchaseInput{
		ItemID: "flour", Quantity: d("5"), UnitCost: d("4.00"),
	})
	assert.NoError(t, err)
}

// =============================================================================
// ENTITY CHECKS
// =============================================================================

func TestChecker_ConsistentEntityPasses(t *testing.T) {
	eng, _, _ := newCheckedEngine(t)
	ctx := context.Background()
	registerCustomer(t, eng, "cust-1")
	appendSale(t, eng, "cust-1", "2026-03-01", "100")
	appendPayment(t, eng, "cust-1", "2026-03-02", "40")

	assert.NoError(t, eng.Checker.CheckEntity(ctx, "cust-1"))
}

func TestChecker_CorruptRunningBalanceIsHeld(t *testing.T) {
	eng, store, _ := newCheckedEngine(t)
	ctx := context.Background()
	registerCustomer(t, eng, "cust-1")
	sale := appendSale(t, eng, "cust-1", "2026-03-01", "100")
	appendPayment(t, eng, "cust-1", "2026-03-02", "40")

	stored, err := store.GetLedgerTx(ctx, sale.ID)
	require.NoError(t, err)
	stored.RunningBalance = d("123.45")
	require.NoError(t, store.UpdateLedgerTx(ctx, stored))

	err = eng.Checker.CheckEntity(ctx, "cust-1")
	var cerr *core.ConsistencyError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "entity", cerr.Kind)

	_, err = eng.Ledger.Append(ctx, core.LedgerAppendInput{
		EntityID: "cust-1", Debit: d("10"), Kind: core.LedgerSale,
	})
	assert.ErrorIs(t, err, core.ErrConsistency, "held entity rejects appends")
}

func TestChecker_CorruptCachedBalanceRepairedByRecalc(t *testing.T) {
	// A drifted cached balance is the one corruption Recalculate can
	// repair on its own: replay rewrites it from the log.

	eng, store, _ := newCheckedEngine(t)
	ctx := context.Background()
	registerCustomer(t, eng, "cust-1")
	appendSale(t, eng, "cust-1", "2026-03-01", "100")
	appendPayment(t, eng, "cust-1", "2026-03-02", "40")

	entity, err := store.GetEntity(ctx, "cust-1")
	require.NoError(t, err)
	entity.CurrentBalance = d("777")
	require.NoError(t, store.SaveEntity(ctx, entity))

	require.Error(t, eng.Checker.CheckEntity(ctx, "cust-1"))

	eng.Holds.Resolve("entity", "cust-1")
	require.NoError(t, eng.Recalc.Recalculate(ctx, "cust-1"))
	require.NoError(t, eng.Checker.CheckEntity(ctx, "cust-1"))

	balance, err := eng.Ledger.GetEntityBalance(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("60")))
}

// =============================================================================
// SWEEP
// =============================================================================

func TestChecker_CheckAllCollectsEveryViolation(t *testing.T) {
	eng, store, _ := newCheckedEngine(t)
	ctx := context.Background()

	registerFlour(t, eng, "10", "2.00")
	registerCustomer(t, eng, "cust-1")
	appendSale(t, eng, "cust-1", "2026-03-01", "100")

	require.Empty(t, eng.Checker.CheckAll(ctx))

	item, err := store.GetItem(ctx, "flour")
	require.NoError(t, err)
	item.QuantityOnHand = d("999")
	require.NoError(t, store.SaveItem(ctx, item))

	entity, err := store.GetEntity(ctx, "cust-1")
	require.NoError(t, err)
	entity.CurrentBalance = d("777")
	require.NoError(t, store.SaveEntity(ctx, entity))

	found := eng.Checker.CheckAll(ctx)
	assert.Len(t, found, 2)
	assert.Len(t, eng.Holds.Held(), 2)
}
