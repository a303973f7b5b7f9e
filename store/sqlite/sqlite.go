/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements core.Store and core.TxStore using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  stock_items:         Current item aggregates (quantity, average cost)
  stock_transactions:  Append-only movement log, per-item sequence
  ledger_entities:     Customers/parties with cached balance projection
  ledger_transactions: Mutable financial log, per-entity sequence
  day_locks:           One row per (date, scope) audit lock
  recipes:             Recipe configs as JSON

DECIMALS:
  Every quantity, cost, and balance column is TEXT holding a decimal
  string. SQLite REAL would reintroduce the binary-float drift the whole
  engine exists to avoid.

SEQUENCES:
  Sequence numbers are assigned inside the INSERT itself with
  COALESCE(MAX(seq), 0) + 1 scoped to the item/entity, so they stay
  strictly increasing per record even across deletes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  st, err := sqlite.New("./data/bakery.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

  eng := core.NewEngine(st)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - core/store.go: Interface definitions
  - core/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ovenworks/bakery-engine/core"
)

// Store implements core.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Current item aggregates, mutated only through the costing engine
	CREATE TABLE IF NOT EXISTS stock_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		unit TEXT NOT NULL,
		opening_quantity TEXT NOT NULL,
		quantity_on_hand TEXT NOT NULL,
		average_cost TEXT NOT NULL,
		min_level TEXT NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Append-only movement log; no UPDATE or DELETE is ever issued here
	CREATE TABLE IF NOT EXISTS stock_transactions (
		id TEXT PRIMARY KEY,
		item_id TEXT NOT NULL REFERENCES stock_items(id),
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		signed TEXT NOT NULL,
		unit_cost TEXT NOT NULL,
		reason TEXT,
		reference TEXT,
		date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		created_by TEXT,
		created_at TEXT NOT NULL,
		UNIQUE(item_id, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_stock_tx_item_seq
		ON stock_transactions(item_id, seq);
	CREATE INDEX IF NOT EXISTS idx_stock_tx_date
		ON stock_transactions(date);

	CREATE TABLE IF NOT EXISTS ledger_entities (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Mutable financial log; running_balance is rewritten by replay
	CREATE TABLE IF NOT EXISTS ledger_transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES ledger_entities(id),
		date TEXT NOT NULL,
		seq INTEGER NOT NULL,
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		running_balance TEXT NOT NULL DEFAULT '0',
		kind TEXT NOT NULL,
		reference TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(entity_id, seq)
	);

	-- Replay order (hot path for recalculation)
	CREATE INDEX IF NOT EXISTS idx_ledger_tx_entity_date_seq
		ON ledger_transactions(entity_id, date, seq);

	CREATE TABLE IF NOT EXISTS day_locks (
		date TEXT NOT NULL,
		scope TEXT NOT NULL,
		state TEXT NOT NULL,
		closed_by TEXT,
		closed_at TEXT,
		reopened_by TEXT,
		reopened_at TEXT,
		PRIMARY KEY (date, scope)
	);

	CREATE INDEX IF NOT EXISTS idx_day_locks_scope_state
		ON day_locks(scope, state, date);

	-- Recipe configs as JSON, keyed by product
	CREATE TABLE IF NOT EXISTS recipes (
		product_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STOCK STORE (core.StockStore interface)
// =============================================================================

func (s *Store) CreateItem(ctx context.Context, item core.StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createItem(ctx, s.db, item)
}

func (s *Store) createItem(ctx context.Context, q querier, item core.StockItem) error {
	query := `
		INSERT INTO stock_items
		(id, name, unit, opening_quantity, quantity_on_hand, average_cost, min_level, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		item.ID, item.Name, item.Unit,
		item.OpeningQuantity.String(),
		item.QuantityOnHand.String(),
		item.AverageCost.String(),
		item.MinLevel.String(),
		boolToInt(item.Active),
		item.CreatedAt.Format(time.RFC3339),
		item.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Message: "already exists"}
		}
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, id core.ItemID) (core.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getItem(ctx, s.db, id)
}

func (s *Store) getItem(ctx context.Context, q querier, id core.ItemID) (core.StockItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, name, unit, opening_quantity, quantity_on_hand, average_cost, min_level, active, created_at, updated_at
		FROM stock_items WHERE id = ?`, id)

	item, err := scanItemRow(row.Scan)
	if err == sql.ErrNoRows {
		return core.StockItem{}, &core.NotFoundError{Kind: "item", ID: string(id)}
	}
	if err != nil {
		return core.StockItem{}, fmt.Errorf("failed to scan item: %w", err)
	}
	return item, nil
}

// scanItemRow works for both sql.Row and sql.Rows scan funcs.
func scanItemRow(scan func(dest ...any) error) (core.StockItem, error) {
	var (
		item                                                 core.StockItem
		opening, onHand, avgCost, minLevel, created, updated string
		active                                               int
	)
	err := scan(&item.ID, &item.Name, &item.Unit, &opening, &onHand, &avgCost, &minLevel, &active, &created, &updated)
	if err != nil {
		return core.StockItem{}, err
	}
	item.OpeningQuantity = mustDecimal(opening)
	item.QuantityOnHand = mustDecimal(onHand)
	item.AverageCost = mustDecimal(avgCost)
	item.MinLevel = mustDecimal(minLevel)
	item.Active = active != 0
	item.CreatedAt, _ = time.Parse(time.RFC3339, created)
	item.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return item, nil
}

func (s *Store) SaveItem(ctx context.Context, item core.StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveItem(ctx, s.db, item)
}

func (s *Store) saveItem(ctx context.Context, q querier, item core.StockItem) error {
	res, err := q.ExecContext(ctx, `
		UPDATE stock_items
		SET name = ?, unit = ?, quantity_on_hand = ?, average_cost = ?, min_level = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		item.Name, item.Unit,
		item.QuantityOnHand.String(),
		item.AverageCost.String(),
		item.MinLevel.String(),
		boolToInt(item.Active),
		item.UpdatedAt.Format(time.RFC3339),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "item", ID: string(item.ID)}
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context) ([]core.StockItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listItems(ctx, s.db)
}

func (s *Store) listItems(ctx context.Context, q querier) ([]core.StockItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, unit, opening_quantity, quantity_on_hand, average_cost, min_level, active, created_at, updated_at
		FROM stock_items ORDER BY active DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []core.StockItem
	for rows.Next() {
		item, err := scanItemRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) AppendStockTx(ctx context.Context, tx core.StockTransaction) (core.StockTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendStockTx(ctx, s.db, tx)
}

func (s *Store) appendStockTx(ctx context.Context, q querier, tx core.StockTransaction) (core.StockTransaction, error) {
	// Sequence assignment happens inside the INSERT so it stays strictly
	// increasing per item without a separate counter table.
	query := `
		INSERT INTO stock_transactions
		(id, item_id, kind, quantity, signed, unit_cost, reason, reference, date, seq, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM stock_transactions WHERE item_id = ?),
			?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID, tx.ItemID, tx.Kind,
		tx.Quantity.String(), tx.Signed.String(), tx.UnitCost.String(),
		tx.Reason, tx.Reference, tx.Date.String(),
		tx.ItemID,
		tx.CreatedBy, tx.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return core.StockTransaction{}, fmt.Errorf("failed to append stock transaction: %w", err)
	}

	var seq int64
	if err := q.QueryRowContext(ctx,
		"SELECT seq FROM stock_transactions WHERE id = ?", tx.ID).Scan(&seq); err != nil {
		return core.StockTransaction{}, fmt.Errorf("failed to read assigned sequence: %w", err)
	}
	tx.Sequence = seq
	return tx, nil
}

func (s *Store) StockTxs(ctx context.Context, itemID core.ItemID) ([]core.StockTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stockTxs(ctx, s.db, itemID)
}

func (s *Store) stockTxs(ctx context.Context, q querier, itemID core.ItemID) ([]core.StockTransaction, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, item_id, kind, quantity, signed, unit_cost, reason, reference, date, seq, created_by, created_at
		FROM stock_transactions
		WHERE item_id = ?
		ORDER BY seq ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.StockTransaction
	for rows.Next() {
		var (
			tx                           core.StockTransaction
			quantity, signed, unitCost   string
			reason, reference, createdBy sql.NullString
			date, createdAt              string
		)
		if err := rows.Scan(&tx.ID, &tx.ItemID, &tx.Kind, &quantity, &signed, &unitCost,
			&reason, &reference, &date, &tx.Sequence, &createdBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stock transaction: %w", err)
		}
		tx.Quantity = mustDecimal(quantity)
		tx.Signed = mustDecimal(signed)
		tx.UnitCost = mustDecimal(unitCost)
		tx.Reason = reason.String
		tx.Reference = reference.String
		tx.CreatedBy = createdBy.String
		tx.Date, _ = core.ParseDayDate(date)
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// LEDGER STORE (core.LedgerStore interface)
// =============================================================================

func (s *Store) CreateEntity(ctx context.Context, entity core.LedgerEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEntity(ctx, s.db, entity)
}

func (s *Store) createEntity(ctx context.Context, q querier, entity core.LedgerEntity) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_entities (id, kind, name, current_balance, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entity.ID, entity.Kind, entity.Name,
		entity.CurrentBalance.String(),
		entity.CreatedAt.Format(time.RFC3339),
		entity.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &core.ValidationError{Field: "id", Message: "already exists"}
		}
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

func (s *Store) GetEntity(ctx context.Context, id core.EntityID) (core.LedgerEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEntity(ctx, s.db, id)
}

func (s *Store) getEntity(ctx context.Context, q querier, id core.EntityID) (core.LedgerEntity, error) {
	var (
		entity                    core.LedgerEntity
		balance, created, updated string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, kind, name, current_balance, created_at, updated_at
		FROM ledger_entities WHERE id = ?`, id).
		Scan(&entity.ID, &entity.Kind, &entity.Name, &balance, &created, &updated)
	if err == sql.ErrNoRows {
		return core.LedgerEntity{}, &core.NotFoundError{Kind: "entity", ID: string(id)}
	}
	if err != nil {
		return core.LedgerEntity{}, fmt.Errorf("failed to scan entity: %w", err)
	}
	entity.CurrentBalance = mustDecimal(balance)
	entity.CreatedAt, _ = time.Parse(time.RFC3339, created)
	entity.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return entity, nil
}

func (s *Store) SaveEntity(ctx context.Context, entity core.LedgerEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveEntity(ctx, s.db, entity)
}

func (s *Store) saveEntity(ctx context.Context, q querier, entity core.LedgerEntity) error {
	res, err := q.ExecContext(ctx, `
		UPDATE ledger_entities SET kind = ?, name = ?, current_balance = ?, updated_at = ? WHERE id = ?`,
		entity.Kind, entity.Name,
		entity.CurrentBalance.String(),
		entity.UpdatedAt.Format(time.RFC3339),
		entity.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "entity", ID: string(entity.ID)}
	}
	return nil
}

func (s *Store) ListEntities(ctx context.Context) ([]core.LedgerEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listEntities(ctx, s.db)
}

func (s *Store) listEntities(ctx context.Context, q querier) ([]core.LedgerEntity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, kind, name, current_balance, created_at, updated_at
		FROM ledger_entities ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var entities []core.LedgerEntity
	for rows.Next() {
		var (
			entity                    core.LedgerEntity
			balance, created, updated string
		)
		if err := rows.Scan(&entity.ID, &entity.Kind, &entity.Name, &balance, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entity.CurrentBalance = mustDecimal(balance)
		entity.CreatedAt, _ = time.Parse(time.RFC3339, created)
		entity.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

func (s *Store) InsertLedgerTx(ctx context.Context, tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLedgerTx(ctx, s.db, tx)
}

func (s *Store) insertLedgerTx(ctx context.Context, q querier, tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	query := `
		INSERT INTO ledger_transactions
		(id, entity_id, date, seq, debit, credit, running_balance, kind, reference, created_by, created_at, updated_at)
		VALUES (?, ?, ?,
			(SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_transactions WHERE entity_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		tx.ID, tx.EntityID, tx.Date.String(),
		tx.EntityID,
		tx.Debit.String(), tx.Credit.String(), tx.RunningBalance.String(),
		tx.Kind, tx.Reference, tx.CreatedBy,
		tx.CreatedAt.Format(time.RFC3339),
		tx.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return core.LedgerTransaction{}, &core.ValidationError{Field: "id", Message: "already exists"}
		}
		return core.LedgerTransaction{}, fmt.Errorf("failed to insert ledger transaction: %w", err)
	}

	var seq int64
	if err := q.QueryRowContext(ctx,
		"SELECT seq FROM ledger_transactions WHERE id = ?", tx.ID).Scan(&seq); err != nil {
		return core.LedgerTransaction{}, fmt.Errorf("failed to read assigned sequence: %w", err)
	}
	tx.Sequence = seq
	return tx, nil
}

func (s *Store) GetLedgerTx(ctx context.Context, id core.TransactionID) (core.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLedgerTx(ctx, s.db, id)
}

func (s *Store) getLedgerTx(ctx context.Context, q querier, id core.TransactionID) (core.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx, ledgerTxSelect+" WHERE id = ?", id)
	if err != nil {
		return core.LedgerTransaction{}, fmt.Errorf("failed to query ledger transaction: %w", err)
	}
	defer rows.Close()

	txs, err := scanLedgerTxs(rows)
	if err != nil {
		return core.LedgerTransaction{}, err
	}
	if len(txs) == 0 {
		return core.LedgerTransaction{}, &core.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return txs[0], nil
}

func (s *Store) UpdateLedgerTx(ctx context.Context, tx core.LedgerTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLedgerTx(ctx, s.db, tx)
}

func (s *Store) updateLedgerTx(ctx context.Context, q querier, tx core.LedgerTransaction) error {
	res, err := q.ExecContext(ctx, `
		UPDATE ledger_transactions
		SET date = ?, debit = ?, credit = ?, running_balance = ?, kind = ?, reference = ?, updated_at = ?
		WHERE id = ?`,
		tx.Date.String(),
		tx.Debit.String(), tx.Credit.String(), tx.RunningBalance.String(),
		tx.Kind, tx.Reference,
		tx.UpdatedAt.Format(time.RFC3339),
		tx.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ledger transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	return nil
}

func (s *Store) DeleteLedgerTx(ctx context.Context, id core.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLedgerTx(ctx, s.db, id)
}

func (s *Store) deleteLedgerTx(ctx context.Context, q querier, id core.TransactionID) error {
	res, err := q.ExecContext(ctx, "DELETE FROM ledger_transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete ledger transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return nil
}

func (s *Store) LedgerTxs(ctx context.Context, entityID core.EntityID) ([]core.LedgerTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledgerTxs(ctx, s.db, entityID)
}

func (s *Store) ledgerTxs(ctx context.Context, q querier, entityID core.EntityID) ([]core.LedgerTransaction, error) {
	rows, err := q.QueryContext(ctx,
		ledgerTxSelect+" WHERE entity_id = ? ORDER BY date ASC, seq ASC", entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger transactions: %w", err)
	}
	defer rows.Close()
	return scanLedgerTxs(rows)
}

const ledgerTxSelect = `
	SELECT id, entity_id, date, seq, debit, credit, running_balance, kind, reference, created_by, created_at, updated_at
	FROM ledger_transactions`

func scanLedgerTxs(rows *sql.Rows) ([]core.LedgerTransaction, error) {
	var txs []core.LedgerTransaction
	for rows.Next() {
		var (
			tx                     core.LedgerTransaction
			date                   string
			debit, credit, running string
			reference, createdBy   sql.NullString
			createdAt, updatedAt   string
		)
		if err := rows.Scan(&tx.ID, &tx.EntityID, &date, &tx.Sequence,
			&debit, &credit, &running, &tx.Kind, &reference, &createdBy, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		tx.Date, _ = core.ParseDayDate(date)
		tx.Debit = mustDecimal(debit)
		tx.Credit = mustDecimal(credit)
		tx.RunningBalance = mustDecimal(running)
		tx.Reference = reference.String
		tx.CreatedBy = createdBy.String
		tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// =============================================================================
// DAY LOCK STORE (core.DayLockStore interface)
// =============================================================================

func (s *Store) GetDayLock(ctx context.Context, date core.DayDate, scope core.LockScope) (core.DayLock, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getDayLock(ctx, s.db, date, scope)
}

func (s *Store) getDayLock(ctx context.Context, q querier, date core.DayDate, scope core.LockScope) (core.DayLock, bool, error) {
	var (
		lock                                       core.DayLock
		dateStr                                    string
		closedBy, closedAt, reopenedBy, reopenedAt sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT date, scope, state, closed_by, closed_at, reopened_by, reopened_at
		FROM day_locks WHERE date = ? AND scope = ?`, date.String(), scope).
		Scan(&dateStr, &lock.Scope, &lock.State, &closedBy, &closedAt, &reopenedBy, &reopenedAt)
	if err == sql.ErrNoRows {
		return core.DayLock{}, false, nil
	}
	if err != nil {
		return core.DayLock{}, false, fmt.Errorf("failed to scan day lock: %w", err)
	}
	lock.Date, _ = core.ParseDayDate(dateStr)
	lock.ClosedBy = closedBy.String
	lock.ReopenedBy = reopenedBy.String
	if closedAt.Valid {
		lock.ClosedAt, _ = time.Parse(time.RFC3339, closedAt.String)
	}
	if reopenedAt.Valid {
		lock.ReopenedAt, _ = time.Parse(time.RFC3339, reopenedAt.String)
	}
	return lock, true, nil
}

func (s *Store) SaveDayLock(ctx context.Context, lock core.DayLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveDayLock(ctx, s.db, lock)
}

func (s *Store) saveDayLock(ctx context.Context, q querier, lock core.DayLock) error {
	query := `
		INSERT INTO day_locks (date, scope, state, closed_by, closed_at, reopened_by, reopened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, scope) DO UPDATE SET
			state = excluded.state,
			closed_by = excluded.closed_by,
			closed_at = excluded.closed_at,
			reopened_by = excluded.reopened_by,
			reopened_at = excluded.reopened_at
	`
	_, err := q.ExecContext(ctx, query,
		lock.Date.String(), lock.Scope, lock.State,
		nullString(lock.ClosedBy), nullTime(lock.ClosedAt),
		nullString(lock.ReopenedBy), nullTime(lock.ReopenedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save day lock: %w", err)
	}
	return nil
}

func (s *Store) ListDayLocks(ctx context.Context, scope core.LockScope) ([]core.DayLock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listDayLocks(ctx, s.db, scope)
}

func (s *Store) listDayLocks(ctx context.Context, q querier, scope core.LockScope) ([]core.DayLock, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT date, scope, state, closed_by, closed_at, reopened_by, reopened_at
		FROM day_locks WHERE scope = ? ORDER BY date ASC`, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to query day locks: %w", err)
	}
	defer rows.Close()

	var locks []core.DayLock
	for rows.Next() {
		var (
			lock                                       core.DayLock
			dateStr                                    string
			closedBy, closedAt, reopenedBy, reopenedAt sql.NullString
		)
		if err := rows.Scan(&dateStr, &lock.Scope, &lock.State, &closedBy, &closedAt, &reopenedBy, &reopenedAt); err != nil {
			return nil, fmt.Errorf("failed to scan day lock: %w", err)
		}
		lock.Date, _ = core.ParseDayDate(dateStr)
		lock.ClosedBy = closedBy.String
		lock.ReopenedBy = reopenedBy.String
		if closedAt.Valid {
			lock.ClosedAt, _ = time.Parse(time.RFC3339, closedAt.String)
		}
		if reopenedAt.Valid {
			lock.ReopenedAt, _ = time.Parse(time.RFC3339, reopenedAt.String)
		}
		locks = append(locks, lock)
	}
	return locks, rows.Err()
}

func (s *Store) LatestClosedAfter(ctx context.Context, date core.DayDate, scope core.LockScope) (core.DayDate, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latestClosedAfter(ctx, s.db, date, scope)
}

func (s *Store) latestClosedAfter(ctx context.Context, q querier, date core.DayDate, scope core.LockScope) (core.DayDate, bool, error) {
	var dateStr string
	err := q.QueryRowContext(ctx, `
		SELECT date FROM day_locks
		WHERE scope = ? AND state = ? AND date > ?
		ORDER BY date DESC LIMIT 1`, scope, core.DayClosed, date.String()).Scan(&dateStr)
	if err == sql.ErrNoRows {
		return core.DayDate{}, false, nil
	}
	if err != nil {
		return core.DayDate{}, false, fmt.Errorf("failed to query closed days: %w", err)
	}
	latest, perr := core.ParseDayDate(dateStr)
	if perr != nil {
		return core.DayDate{}, false, perr
	}
	return latest, true, nil
}

// =============================================================================
// TRANSACTIONAL STORE (core.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. Any error from fn
// rolls back every write made through the view.
func (s *Store) WithTx(ctx context.Context, fn func(core.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txView{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txView routes Store calls through the open sql.Tx.
type txView struct {
	tx     *sql.Tx
	parent *Store
}

func (v *txView) CreateItem(ctx context.Context, item core.StockItem) error {
	return v.parent.createItem(ctx, v.tx, item)
}
func (v *txView) GetItem(ctx context.Context, id core.ItemID) (core.StockItem, error) {
	return v.parent.getItem(ctx, v.tx, id)
}
func (v *txView) SaveItem(ctx context.Context, item core.StockItem) error {
	return v.parent.saveItem(ctx, v.tx, item)
}
func (v *txView) ListItems(ctx context.Context) ([]core.StockItem, error) {
	return v.parent.listItems(ctx, v.tx)
}
func (v *txView) AppendStockTx(ctx context.Context, tx core.StockTransaction) (core.StockTransaction, error) {
	return v.parent.appendStockTx(ctx, v.tx, tx)
}
func (v *txView) StockTxs(ctx context.Context, itemID core.ItemID) ([]core.StockTransaction, error) {
	return v.parent.stockTxs(ctx, v.tx, itemID)
}
func (v *txView) CreateEntity(ctx context.Context, entity core.LedgerEntity) error {
	return v.parent.createEntity(ctx, v.tx, entity)
}
func (v *txView) GetEntity(ctx context.Context, id core.EntityID) (core.LedgerEntity, error) {
	return v.parent.getEntity(ctx, v.tx, id)
}
func (v *txView) SaveEntity(ctx context.Context, entity core.LedgerEntity) error {
	return v.parent.saveEntity(ctx, v.tx, entity)
}
func (v *txView) ListEntities(ctx context.Context) ([]core.LedgerEntity, error) {
	return v.parent.listEntities(ctx, v.tx)
}
func (v *txView) InsertLedgerTx(ctx context.Context, tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	return v.parent.insertLedgerTx(ctx, v.tx, tx)
}
func (v *txView) GetLedgerTx(ctx context.Context, id core.TransactionID) (core.LedgerTransaction, error) {
	return v.parent.getLedgerTx(ctx, v.tx, id)
}
func (v *txView) UpdateLedgerTx(ctx context.Context, tx core.LedgerTransaction) error {
	return v.parent.updateLedgerTx(ctx, v.tx, tx)
}
func (v *txView) DeleteLedgerTx(ctx context.Context, id core.TransactionID) error {
	return v.parent.deleteLedgerTx(ctx, v.tx, id)
}
func (v *txView) LedgerTxs(ctx context.Context, entityID core.EntityID) ([]core.LedgerTransaction, error) {
	return v.parent.ledgerTxs(ctx, v.tx, entityID)
}
func (v *txView) GetDayLock(ctx context.Context, date core.DayDate, scope core.LockScope) (core.DayLock, bool, error) {
	return v.parent.getDayLock(ctx, v.tx, date, scope)
}
func (v *txView) SaveDayLock(ctx context.Context, lock core.DayLock) error {
	return v.parent.saveDayLock(ctx, v.tx, lock)
}
func (v *txView) ListDayLocks(ctx context.Context, scope core.LockScope) ([]core.DayLock, error) {
	return v.parent.listDayLocks(ctx, v.tx, scope)
}
func (v *txView) LatestClosedAfter(ctx context.Context, date core.DayDate, scope core.LockScope) (core.DayDate, bool, error) {
	return v.parent.latestClosedAfter(ctx, v.tx, date, scope)
}

// =============================================================================
// RECIPE STORE
// =============================================================================

// RecipeRecord is a stored recipe with its JSON config.
type RecipeRecord struct {
	ProductID  string
	Name       string
	ConfigJSON string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SaveRecipe upserts a recipe config.
func (s *Store) SaveRecipe(ctx context.Context, r RecipeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recipes (product_id, name, config_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_id) DO UPDATE SET
			name = excluded.name,
			config_json = excluded.config_json,
			updated_at = excluded.updated_at`,
		r.ProductID, r.Name, r.ConfigJSON, now, now,
	)
	return err
}

// GetRecipe returns a recipe record, or nil when absent.
func (s *Store) GetRecipe(ctx context.Context, productID string) (*RecipeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var r RecipeRecord
	var created, updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT product_id, name, config_json, created_at, updated_at FROM recipes WHERE product_id = ?",
		productID,
	).Scan(&r.ProductID, &r.Name, &r.ConfigJSON, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt, _ = time.Parse(time.RFC3339, created)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &r, nil
}

// ListRecipes returns all recipe records ordered by name.
func (s *Store) ListRecipes(ctx context.Context) ([]RecipeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT product_id, name, config_json, created_at, updated_at FROM recipes ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RecipeRecord
	for rows.Next() {
		var r RecipeRecord
		var created, updated string
		if err := rows.Scan(&r.ProductID, &r.Name, &r.ConfigJSON, &created, &updated); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Reset deletes every row from every table. Demo scenario loading only;
// never reachable from normal request paths.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Logs before aggregates, to respect foreign keys.
	tables := []string{
		"stock_transactions",
		"ledger_transactions",
		"stock_items",
		"ledger_entities",
		"day_locks",
		"recipes",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
