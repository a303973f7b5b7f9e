/*
engine.go - Component wiring

PURPOSE:
  Builds the engine's components over one store, sharing the lock table,
  hold registry, event sink, and clock so that stock and ledger halves
  agree about who is locked, who is held, and what time it is.

USAGE:
  store := memory.New()           // or sqlite.New(path)
  eng := core.NewEngine(store, core.WithEventSink(sink))
  eng.Costing.RecordPurchase(ctx, ...)
  eng.Ledger.Append(ctx, ...)
*/
package core

import "time"

// =============================================================================
// ENGINE
// =============================================================================

// Engine bundles the engine components wired over a single store.
type Engine struct {
	Costing    *CostingEngine
	Production *RecipeConsumptionCoordinator
	Ledger     *LedgerLog
	Recalc     *RunningBalanceRecalculator
	Days       *DayCloseController
	Checker    *ConsistencyChecker
	Holds      *HoldRegistry
}

type engineConfig struct {
	sink        EventSink
	lockTimeout time.Duration
	now         func() time.Time
	newID       func() TransactionID
}

type Option func(*engineConfig)

// WithEventSink injects the sink the engine publishes domain events to.
func WithEventSink(sink EventSink) Option {
	return func(c *engineConfig) { c.sink = sink }
}

// WithLockTimeout overrides the per-record lock acquisition timeout.
func WithLockTimeout(d time.Duration) Option {
	return func(c *engineConfig) { c.lockTimeout = d }
}

// WithClock overrides the engine clock. Tests use this for stable
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *engineConfig) { c.now = now }
}

// WithIDGenerator overrides transaction ID generation. Tests use this
// for predictable IDs.
func WithIDGenerator(newID func() TransactionID) Option {
	return func(c *engineConfig) { c.newID = newID }
}

// NewEngine wires all components over the given store.
func NewEngine(store TxStore, opts ...Option) *Engine {
	cfg := engineConfig{
		sink:        NopSink{},
		lockTimeout: DefaultLockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       newTransactionID,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	locks := NewLockTable(cfg.lockTimeout)
	holds := NewHoldRegistry()
	days := NewDayCloseController(store, cfg.sink)
	days.now = cfg.now

	costing := &CostingEngine{
		store: store,
		locks: locks,
		days:  days,
		holds: holds,
		sink:  cfg.sink,
		now:   cfg.now,
		newID: cfg.newID,
	}

	production := &RecipeConsumptionCoordinator{
		store:   store,
		locks:   locks,
		costing: costing,
		days:    days,
		holds:   holds,
		sink:    cfg.sink,
		now:     cfg.now,
	}

	recalc := &RunningBalanceRecalculator{
		store: store,
		locks: locks,
		holds: holds,
		sink:  cfg.sink,
		now:   cfg.now,
	}

	ledger := &LedgerLog{
		store:  store,
		locks:  locks,
		days:   days,
		holds:  holds,
		sink:   cfg.sink,
		recalc: recalc,
		now:    cfg.now,
		newID:  cfg.newID,
	}

	checker := NewConsistencyChecker(store, holds, cfg.sink)

	return &Engine{
		Costing:    costing,
		Production: production,
		Ledger:     ledger,
		Recalc:     recalc,
		Days:       days,
		Checker:    checker,
		Holds:      holds,
	}
}
