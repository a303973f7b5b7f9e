// Package store provides the in-memory Store implementation used by
// tests and dev mode.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/ovenworks/bakery-engine/core"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	items     map[core.ItemID]core.StockItem
	stockTxs  map[core.ItemID][]core.StockTransaction
	stockSeq  map[core.ItemID]int64
	entities  map[core.EntityID]core.LedgerEntity
	ledgerTxs map[core.TransactionID]core.LedgerTransaction
	ledgerSeq map[core.EntityID]int64
	dayLocks  map[dayKey]core.DayLock
}

type dayKey struct {
	Date  string
	Scope core.LockScope
}

func NewMemory() *Memory {
	return &Memory{
		items:     make(map[core.ItemID]core.StockItem),
		stockTxs:  make(map[core.ItemID][]core.StockTransaction),
		stockSeq:  make(map[core.ItemID]int64),
		entities:  make(map[core.EntityID]core.LedgerEntity),
		ledgerTxs: make(map[core.TransactionID]core.LedgerTransaction),
		ledgerSeq: make(map[core.EntityID]int64),
		dayLocks:  make(map[dayKey]core.DayLock),
	}
}

// =============================================================================
// STOCK STORE
// =============================================================================

func (m *Memory) CreateItem(_ context.Context, item core.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createItemLocked(item)
}

func (m *Memory) createItemLocked(item core.StockItem) error {
	if _, exists := m.items[item.ID]; exists {
		return &core.ValidationError{Field: "id", Message: "already exists"}
	}
	m.items[item.ID] = item
	return nil
}

func (m *Memory) GetItem(_ context.Context, id core.ItemID) (core.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getItemLocked(id)
}

func (m *Memory) getItemLocked(id core.ItemID) (core.StockItem, error) {
	item, ok := m.items[id]
	if !ok {
		return core.StockItem{}, &core.NotFoundError{Kind: "item", ID: string(id)}
	}
	return item, nil
}

func (m *Memory) SaveItem(_ context.Context, item core.StockItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveItemLocked(item)
}

func (m *Memory) saveItemLocked(item core.StockItem) error {
	if _, ok := m.items[item.ID]; !ok {
		return &core.NotFoundError{Kind: "item", ID: string(item.ID)}
	}
	m.items[item.ID] = item
	return nil
}

func (m *Memory) ListItems(_ context.Context) ([]core.StockItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listItemsLocked(), nil
}

func (m *Memory) listItemsLocked() []core.StockItem {
	out := make([]core.StockItem, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Active != out[j].Active {
			return out[i].Active
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (m *Memory) AppendStockTx(_ context.Context, tx core.StockTransaction) (core.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendStockTxLocked(tx)
}

func (m *Memory) appendStockTxLocked(tx core.StockTransaction) (core.StockTransaction, error) {
	if _, ok := m.items[tx.ItemID]; !ok {
		return core.StockTransaction{}, &core.NotFoundError{Kind: "item", ID: string(tx.ItemID)}
	}
	m.stockSeq[tx.ItemID]++
	tx.Sequence = m.stockSeq[tx.ItemID]
	m.stockTxs[tx.ItemID] = append(m.stockTxs[tx.ItemID], tx)
	return tx, nil
}

func (m *Memory) StockTxs(_ context.Context, itemID core.ItemID) ([]core.StockTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stockTxsLocked(itemID), nil
}

func (m *Memory) stockTxsLocked(itemID core.ItemID) []core.StockTransaction {
	txs := m.stockTxs[itemID]
	out := make([]core.StockTransaction, len(txs))
	copy(out, txs)
	return out
}

// =============================================================================
// LEDGER STORE
// =============================================================================

func (m *Memory) CreateEntity(_ context.Context, entity core.LedgerEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createEntityLocked(entity)
}

func (m *Memory) createEntityLocked(entity core.LedgerEntity) error {
	if _, exists := m.entities[entity.ID]; exists {
		return &core.ValidationError{Field: "id", Message: "already exists"}
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *Memory) GetEntity(_ context.Context, id core.EntityID) (core.LedgerEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getEntityLocked(id)
}

func (m *Memory) getEntityLocked(id core.EntityID) (core.LedgerEntity, error) {
	entity, ok := m.entities[id]
	if !ok {
		return core.LedgerEntity{}, &core.NotFoundError{Kind: "entity", ID: string(id)}
	}
	return entity, nil
}

func (m *Memory) SaveEntity(_ context.Context, entity core.LedgerEntity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEntityLocked(entity)
}

func (m *Memory) saveEntityLocked(entity core.LedgerEntity) error {
	if _, ok := m.entities[entity.ID]; !ok {
		return &core.NotFoundError{Kind: "entity", ID: string(entity.ID)}
	}
	m.entities[entity.ID] = entity
	return nil
}

func (m *Memory) ListEntities(_ context.Context) ([]core.LedgerEntity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listEntitiesLocked(), nil
}

func (m *Memory) listEntitiesLocked() []core.LedgerEntity {
	out := make([]core.LedgerEntity, 0, len(m.entities))
	for _, entity := range m.entities {
		out = append(out, entity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Memory) InsertLedgerTx(_ context.Context, tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLedgerTxLocked(tx)
}

func (m *Memory) insertLedgerTxLocked(tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	if _, ok := m.entities[tx.EntityID]; !ok {
		return core.LedgerTransaction{}, &core.NotFoundError{Kind: "entity", ID: string(tx.EntityID)}
	}
	if _, exists := m.ledgerTxs[tx.ID]; exists {
		return core.LedgerTransaction{}, &core.ValidationError{Field: "id", Message: "already exists"}
	}
	m.ledgerSeq[tx.EntityID]++
	tx.Sequence = m.ledgerSeq[tx.EntityID]
	m.ledgerTxs[tx.ID] = tx
	return tx, nil
}

func (m *Memory) GetLedgerTx(_ context.Context, id core.TransactionID) (core.LedgerTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLedgerTxLocked(id)
}

func (m *Memory) getLedgerTxLocked(id core.TransactionID) (core.LedgerTransaction, error) {
	tx, ok := m.ledgerTxs[id]
	if !ok {
		return core.LedgerTransaction{}, &core.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	return tx, nil
}

func (m *Memory) UpdateLedgerTx(_ context.Context, tx core.LedgerTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLedgerTxLocked(tx)
}

func (m *Memory) updateLedgerTxLocked(tx core.LedgerTransaction) error {
	if _, ok := m.ledgerTxs[tx.ID]; !ok {
		return &core.NotFoundError{Kind: "transaction", ID: string(tx.ID)}
	}
	m.ledgerTxs[tx.ID] = tx
	return nil
}

func (m *Memory) DeleteLedgerTx(_ context.Context, id core.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLedgerTxLocked(id)
}

func (m *Memory) deleteLedgerTxLocked(id core.TransactionID) error {
	if _, ok := m.ledgerTxs[id]; !ok {
		return &core.NotFoundError{Kind: "transaction", ID: string(id)}
	}
	delete(m.ledgerTxs, id)
	return nil
}

func (m *Memory) LedgerTxs(_ context.Context, entityID core.EntityID) ([]core.LedgerTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ledgerTxsLocked(entityID), nil
}

// ledgerTxsLocked returns the entity's transactions in (date, sequence)
// replay order.
func (m *Memory) ledgerTxsLocked(entityID core.EntityID) []core.LedgerTransaction {
	var out []core.LedgerTransaction
	for _, tx := range m.ledgerTxs {
		if tx.EntityID == entityID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// =============================================================================
// DAY LOCK STORE
// =============================================================================

func (m *Memory) GetDayLock(_ context.Context, date core.DayDate, scope core.LockScope) (core.DayLock, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lock, ok := m.dayLocks[dayKey{Date: date.String(), Scope: scope}]
	return lock, ok, nil
}

func (m *Memory) SaveDayLock(_ context.Context, lock core.DayLock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveDayLockLocked(lock)
}

func (m *Memory) saveDayLockLocked(lock core.DayLock) error {
	m.dayLocks[dayKey{Date: lock.Date.String(), Scope: lock.Scope}] = lock
	return nil
}

func (m *Memory) ListDayLocks(_ context.Context, scope core.LockScope) ([]core.DayLock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []core.DayLock
	for _, lock := range m.dayLocks {
		if lock.Scope == scope {
			out = append(out, lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *Memory) LatestClosedAfter(_ context.Context, date core.DayDate, scope core.LockScope) (core.DayDate, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest core.DayDate
	found := false
	for _, lock := range m.dayLocks {
		if lock.Scope == scope && lock.State == core.DayClosed && lock.Date.After(date) {
			if !found || lock.Date.After(latest) {
				latest = lock.Date
				found = true
			}
		}
	}
	return latest, found, nil
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx simulates a transaction with a snapshot + rollback on error.
// The view passed to fn writes straight into the store while the outer
// lock is held.
func (m *Memory) WithTx(_ context.Context, fn func(core.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	if err := fn(&memView{m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	items     map[core.ItemID]core.StockItem
	stockTxs  map[core.ItemID][]core.StockTransaction
	stockSeq  map[core.ItemID]int64
	entities  map[core.EntityID]core.LedgerEntity
	ledgerTxs map[core.TransactionID]core.LedgerTransaction
	ledgerSeq map[core.EntityID]int64
	dayLocks  map[dayKey]core.DayLock
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		items:     make(map[core.ItemID]core.StockItem, len(m.items)),
		stockTxs:  make(map[core.ItemID][]core.StockTransaction, len(m.stockTxs)),
		stockSeq:  make(map[core.ItemID]int64, len(m.stockSeq)),
		entities:  make(map[core.EntityID]core.LedgerEntity, len(m.entities)),
		ledgerTxs: make(map[core.TransactionID]core.LedgerTransaction, len(m.ledgerTxs)),
		ledgerSeq: make(map[core.EntityID]int64, len(m.ledgerSeq)),
		dayLocks:  make(map[dayKey]core.DayLock, len(m.dayLocks)),
	}
	for k, v := range m.items {
		s.items[k] = v
	}
	for k, v := range m.stockTxs {
		s.stockTxs[k] = append([]core.StockTransaction{}, v...)
	}
	for k, v := range m.stockSeq {
		s.stockSeq[k] = v
	}
	for k, v := range m.entities {
		s.entities[k] = v
	}
	for k, v := range m.ledgerTxs {
		s.ledgerTxs[k] = v
	}
	for k, v := range m.ledgerSeq {
		s.ledgerSeq[k] = v
	}
	for k, v := range m.dayLocks {
		s.dayLocks[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.items = s.items
	m.stockTxs = s.stockTxs
	m.stockSeq = s.stockSeq
	m.entities = s.entities
	m.ledgerTxs = s.ledgerTxs
	m.ledgerSeq = s.ledgerSeq
	m.dayLocks = s.dayLocks
}

// memView routes Store calls to the locked internals while WithTx holds
// the outer mutex.
type memView struct {
	parent *Memory
}

func (v *memView) CreateItem(_ context.Context, item core.StockItem) error {
	return v.parent.createItemLocked(item)
}
func (v *memView) GetItem(_ context.Context, id core.ItemID) (core.StockItem, error) {
	return v.parent.getItemLocked(id)
}
func (v *memView) SaveItem(_ context.Context, item core.StockItem) error {
	return v.parent.saveItemLocked(item)
}
func (v *memView) ListItems(_ context.Context) ([]core.StockItem, error) {
	return v.parent.listItemsLocked(), nil
}
func (v *memView) AppendStockTx(_ context.Context, tx core.StockTransaction) (core.StockTransaction, error) {
	return v.parent.appendStockTxLocked(tx)
}
func (v *memView) StockTxs(_ context.Context, itemID core.ItemID) ([]core.StockTransaction, error) {
	return v.parent.stockTxsLocked(itemID), nil
}
func (v *memView) CreateEntity(_ context.Context, entity core.LedgerEntity) error {
	return v.parent.createEntityLocked(entity)
}
func (v *memView) GetEntity(_ context.Context, id core.EntityID) (core.LedgerEntity, error) {
	return v.parent.getEntityLocked(id)
}
func (v *memView) SaveEntity(_ context.Context, entity core.LedgerEntity) error {
	return v.parent.saveEntityLocked(entity)
}
func (v *memView) ListEntities(_ context.Context) ([]core.LedgerEntity, error) {
	return v.parent.listEntitiesLocked(), nil
}
func (v *memView) InsertLedgerTx(_ context.Context, tx core.LedgerTransaction) (core.LedgerTransaction, error) {
	return v.parent.insertLedgerTxLocked(tx)
}
func (v *memView) GetLedgerTx(_ context.Context, id core.TransactionID) (core.LedgerTransaction, error) {
	return v.parent.getLedgerTxLocked(id)
}
func (v *memView) UpdateLedgerTx(_ context.Context, tx core.LedgerTransaction) error {
	return v.parent.updateLedgerTxLocked(tx)
}
func (v *memView) DeleteLedgerTx(_ context.Context, id core.TransactionID) error {
	return v.parent.deleteLedgerTxLocked(id)
}
func (v *memView) LedgerTxs(_ context.Context, entityID core.EntityID) ([]core.LedgerTransaction, error) {
	return v.parent.ledgerTxsLocked(entityID), nil
}
func (v *memView) GetDayLock(_ context.Context, date core.DayDate, scope core.LockScope) (core.DayLock, bool, error) {
	lock, ok := v.parent.dayLocks[dayKey{Date: date.String(), Scope: scope}]
	return lock, ok, nil
}
func (v *memView) SaveDayLock(_ context.Context, lock core.DayLock) error {
	return v.parent.saveDayLockLocked(lock)
}
func (v *memView) ListDayLocks(ctx context.Context, scope core.LockScope) ([]core.DayLock, error) {
	var out []core.DayLock
	for _, lock := range v.parent.dayLocks {
		if lock.Scope == scope {
			out = append(out, lock)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
func (v *memView) LatestClosedAfter(_ context.Context, date core.DayDate, scope core.LockScope) (core.DayDate, bool, error) {
	var latest core.DayDate
	found := false
	for _, lock := range v.parent.dayLocks {
		if lock.Scope == scope && lock.State == core.DayClosed && lock.Date.After(date) {
			if !found || lock.Date.After(latest) {
				latest = lock.Date
				found = true
			}
		}
	}
	return latest, found, nil
}
