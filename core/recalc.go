/*
recalc.go - Running balance replay

PURPOSE:
  Rebuilds an entity's entire sequence of running balances from its
  transaction log:

    runningBalance_0 = 0
    runningBalance_i = runningBalance_{i-1} + debit_i - credit_i

  in (date, sequence) order, rewriting only the stored values that
  differ, and finally setting the entity's cached current balance to
  the last running balance (zero when the history is empty).

FULL REPLAY:
  The replay is deliberately O(n) over the whole history rather than
  incremental from the edit point. Every mutation pays the same cost,
  the code has one path to audit, and the replay law is re-established
  from first principles each time. Entities here are bakery customers
  and suppliers with hundreds of transactions, not millions.

SELF-CHECK:
  After rewriting, the replay re-reads the log and verifies the law
  against what the store now returns. A failure means the log itself is
  corrupt (or the store is lying); the entity is placed on hold and
  every further write is rejected until resolved out-of-band.

SEE ALSO:
  - ledger.go: Calls replayInTx after every mutation
  - checker.go: The same law checked without rewriting
*/
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECALCULATOR
// =============================================================================

type RunningBalanceRecalculator struct {
	store TxStore
	locks *LockTable
	holds *HoldRegistry
	sink  EventSink
	now   func() time.Time
}

// Recalculate replays an entity's history under its lock. Exposed for
// recovery; normal mutations replay inline via ledger.go.
func (r *RunningBalanceRecalculator) Recalculate(ctx context.Context, entityID EntityID) error {
	return withRetry(ctx, func() error {
		release, err := r.locks.Acquire(ctx, lockKeyEntity(entityID))
		if err != nil {
			return err
		}
		defer release()

		return r.store.WithTx(ctx, func(s Store) error {
			_, err := r.replayInTx(ctx, s, entityID)
			return err
		})
	})
}

// replayInTx runs the replay inside the caller's store transaction and
// entity lock. Returns the number of rewritten running balances.
func (r *RunningBalanceRecalculator) replayInTx(ctx context.Context, s Store, entityID EntityID) (int, error) {
	entity, err := s.GetEntity(ctx, entityID)
	if err != nil {
		return 0, err
	}

	txs, err := s.LedgerTxs(ctx, entityID)
	if err != nil {
		return 0, err
	}

	rewritten := 0
	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.Net())
		if !tx.RunningBalance.Equal(balance) {
			tx.RunningBalance = balance
			if err := s.UpdateLedgerTx(ctx, tx); err != nil {
				return rewritten, err
			}
			rewritten++
		}
	}

	if !entity.CurrentBalance.Equal(balance) {
		entity.CurrentBalance = balance
		entity.UpdatedAt = r.now()
		if err := s.SaveEntity(ctx, entity); err != nil {
			return rewritten, err
		}
	}

	if err := r.verifyReplay(ctx, s, entityID, balance); err != nil {
		return rewritten, err
	}

	r.sink.Publish(BalanceRecalculated{EntityID: entityID, Rewritten: rewritten, NewBalance: balance})
	return rewritten, nil
}

// verifyReplay re-reads the log and checks the replay law against what
// the store now holds. A mismatch at this point is log corruption.
func (r *RunningBalanceRecalculator) verifyReplay(ctx context.Context, s Store, entityID EntityID, expectedFinal decimal.Decimal) error {
	txs, err := s.LedgerTxs(ctx, entityID)
	if err != nil {
		return err
	}

	balance := decimal.Zero
	for _, tx := range txs {
		balance = balance.Add(tx.Net())
		if !tx.RunningBalance.Equal(balance) {
			cerr := &ConsistencyError{
				Kind:     "entity",
				ID:       string(entityID),
				Stored:   tx.RunningBalance,
				Computed: balance,
				Detail:   "running balance of " + string(tx.ID) + " does not satisfy the replay law",
			}
			r.holds.Hold("entity", string(entityID), cerr.Error())
			r.sink.Publish(ConsistencyViolation{Kind: "entity", ID: string(entityID), Detail: cerr.Error()})
			return cerr
		}
	}
	if !balance.Equal(expectedFinal) {
		cerr := &ConsistencyError{
			Kind:     "entity",
			ID:       string(entityID),
			Stored:   expectedFinal,
			Computed: balance,
			Detail:   "final balance drifted between rewrite and verification",
		}
		r.holds.Hold("entity", string(entityID), cerr.Error())
		r.sink.Publish(ConsistencyViolation{Kind: "entity", ID: string(entityID), Detail: cerr.Error()})
		return cerr
	}
	return nil
}
