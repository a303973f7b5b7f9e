/*
store.go - Persistence interfaces for items, ledgers, and day locks

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; the engine only
  sees these interfaces.

KEY INTERFACES:
  StockStore:   Items and their append-only stock transactions
  LedgerStore:  Entities and their mutable ledger transactions
  DayLockStore: (date, scope) audit locks
  Store:        All three together
  TxStore:      Adds WithTx for atomic multi-write operations

SEQUENCE NUMBERS:
  The store assigns Sequence at insert time, strictly increasing per item
  (stock) and per entity (ledger). Sequence breaks ties when two records
  share a date, which keeps replay order deterministic.

ATOMICITY:
  Engine mutations pair a state write with a log write (updated item +
  stock transaction, or inserted ledger row + rewritten successors).
  These pairs always run inside WithTx: either both commit or neither.

IMPLEMENTATIONS:
  - core/store/memory.go: In-memory for tests and dev mode
  - store/sqlite/sqlite.go: Production SQLite

SEE ALSO:
  - costing.go, ledger.go: The engine code driving these interfaces
*/
package core

import "context"

// =============================================================================
// STOCK STORE
// =============================================================================

// StockStore persists items and their movement log. The transaction log is
// APPEND-ONLY: no update or delete exists. Corrections are new adjustment
// transactions.
type StockStore interface {
	// CreateItem registers a new item. Fails if the ID exists.
	CreateItem(ctx context.Context, item StockItem) error

	// GetItem returns an item by ID, or a NotFoundError.
	GetItem(ctx context.Context, id ItemID) (StockItem, error)

	// SaveItem rewrites the item's mutable aggregates (quantity, cost).
	SaveItem(ctx context.Context, item StockItem) error

	// ListItems returns all items, active first, by name.
	ListItems(ctx context.Context) ([]StockItem, error)

	// AppendStockTx persists one movement and assigns its Sequence.
	// Returns the stored transaction with Sequence filled in.
	AppendStockTx(ctx context.Context, tx StockTransaction) (StockTransaction, error)

	// StockTxs returns all movements for an item in Sequence order.
	StockTxs(ctx context.Context, itemID ItemID) ([]StockTransaction, error)
}

// =============================================================================
// LEDGER STORE
// =============================================================================

// LedgerStore persists entities and their financial log. Unlike stock
// movements, ledger transactions may be updated and deleted; the engine
// is responsible for replaying running balances afterwards.
type LedgerStore interface {
	// CreateEntity registers a customer or party. Fails if the ID exists.
	CreateEntity(ctx context.Context, entity LedgerEntity) error

	// GetEntity returns an entity by ID, or a NotFoundError.
	GetEntity(ctx context.Context, id EntityID) (LedgerEntity, error)

	// SaveEntity rewrites the entity's cached balance projection.
	SaveEntity(ctx context.Context, entity LedgerEntity) error

	// ListEntities returns all entities by name.
	ListEntities(ctx context.Context) ([]LedgerEntity, error)

	// InsertLedgerTx persists one transaction and assigns its Sequence.
	InsertLedgerTx(ctx context.Context, tx LedgerTransaction) (LedgerTransaction, error)

	// GetLedgerTx returns one transaction by ID, or a NotFoundError.
	GetLedgerTx(ctx context.Context, id TransactionID) (LedgerTransaction, error)

	// UpdateLedgerTx rewrites a transaction in place (date, debit, credit,
	// running balance). Sequence never changes on update.
	UpdateLedgerTx(ctx context.Context, tx LedgerTransaction) error

	// DeleteLedgerTx removes a transaction.
	DeleteLedgerTx(ctx context.Context, id TransactionID) error

	// LedgerTxs returns all transactions for an entity in (date, sequence)
	// order. This is the replay order.
	LedgerTxs(ctx context.Context, entityID EntityID) ([]LedgerTransaction, error)
}

// =============================================================================
// DAY LOCK STORE
// =============================================================================

// DayLockStore persists one lock per (date, scope). A missing record
// reads as Open.
type DayLockStore interface {
	// GetDayLock returns the lock for (date, scope); ok is false when no
	// record exists (the day is Open).
	GetDayLock(ctx context.Context, date DayDate, scope LockScope) (DayLock, bool, error)

	// SaveDayLock upserts a lock record.
	SaveDayLock(ctx context.Context, lock DayLock) error

	// ListDayLocks returns all lock records for a scope by date.
	ListDayLocks(ctx context.Context, scope LockScope) ([]DayLock, error)

	// LatestClosedAfter returns the latest Closed date strictly after the
	// given date in a scope; ok is false when there is none. Used to
	// enforce in-order day closing.
	LatestClosedAfter(ctx context.Context, date DayDate, scope LockScope) (DayDate, bool, error)
}

// =============================================================================
// COMBINED AND TRANSACTIONAL STORES
// =============================================================================

// Store is everything the engine needs from persistence.
type Store interface {
	StockStore
	LedgerStore
	DayLockStore
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back; otherwise it is committed. The Store passed
// to fn writes within the transaction.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
