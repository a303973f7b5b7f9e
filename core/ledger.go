/*
ledger.go - Financial transaction log with running balances

PURPOSE:
  Records every debit/credit against a customer or supplier and keeps
  the running balance of every transaction - and the entity's cached
  current balance - correct across appends, edits, and deletions.

WHY THIS IS HARD:
  LedgerTransaction is the one mutable record in the system. A
  back-dated insert, an edited amount, or a deletion invalidates the
  running balance of every later transaction for that entity. Every
  mutation here therefore ends with a replay (see recalc.go) inside
  the same store transaction, so no caller ever observes a ledger
  whose stored balances disagree with the log.

ORDERING:
  Replay order is (date, sequence). Sequence is store-assigned and
  strictly increasing per entity, so two same-day transactions replay
  in insertion order even when timestamps collide.

SEE ALSO:
  - recalc.go: The replay itself
  - dayclose.go: Closed dates reject all three mutations
*/
package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

type RegisterEntityInput struct {
	ID   EntityID // optional; generated when empty
	Kind EntityKind
	Name string
}

type LedgerAppendInput struct {
	EntityID  EntityID
	Date      DayDate
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Kind      LedgerTxKind
	Reference string
	ActorID   string
}

type LedgerUpdateInput struct {
	Debit   decimal.Decimal
	Credit  decimal.Decimal
	NewDate *DayDate // nil keeps the current date
	ActorID string
}

// =============================================================================
// LEDGER LOG
// =============================================================================

type LedgerLog struct {
	store  TxStore
	locks  *LockTable
	days   *DayCloseController
	holds  *HoldRegistry
	sink   EventSink
	recalc *RunningBalanceRecalculator
	now    func() time.Time
	newID  func() TransactionID
}

// RegisterEntity creates a customer or party with a zero balance.
func (l *LedgerLog) RegisterEntity(ctx context.Context, in RegisterEntityInput) (LedgerEntity, error) {
	if in.Name == "" {
		return LedgerEntity{}, &ValidationError{Field: "name", Message: "is required"}
	}
	if in.Kind != EntityCustomer && in.Kind != EntityParty {
		return LedgerEntity{}, &ValidationError{Field: "kind", Message: "must be customer or party"}
	}

	id := in.ID
	if id == "" {
		id = EntityID(newTransactionID())
	}
	now := l.now()
	entity := LedgerEntity{
		ID:             id,
		Kind:           in.Kind,
		Name:           in.Name,
		CurrentBalance: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := l.store.CreateEntity(ctx, entity); err != nil {
		return LedgerEntity{}, err
	}
	return entity, nil
}

// =============================================================================
// APPEND
// =============================================================================

// Append records one financial movement. Exactly one of debit and credit
// must be positive. A back-dated append lands in the middle of history;
// the trailing replay fixes every later running balance.
func (l *LedgerLog) Append(ctx context.Context, in LedgerAppendInput) (LedgerTransaction, error) {
	if err := validateAmounts(in.Debit, in.Credit); err != nil {
		return LedgerTransaction{}, err
	}
	if !validLedgerKind(in.Kind) {
		return LedgerTransaction{}, &ValidationError{Field: "kind", Message: "is not a known transaction kind"}
	}
	if in.Date.IsZero() {
		in.Date = Today()
	}

	var stored LedgerTransaction
	err := withRetry(ctx, func() error {
		release, err := l.locks.Acquire(ctx, lockKeyEntity(in.EntityID))
		if err != nil {
			return err
		}
		defer release()

		if err := l.guardLedgerMutation(ctx, in.EntityID, in.Date); err != nil {
			return err
		}
		if _, err := l.store.GetEntity(ctx, in.EntityID); err != nil {
			return err
		}

		now := l.now()
		tx := LedgerTransaction{
			ID:        l.newID(),
			EntityID:  in.EntityID,
			Date:      in.Date,
			Debit:     in.Debit,
			Credit:    in.Credit,
			Kind:      in.Kind,
			Reference: in.Reference,
			CreatedBy: in.ActorID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		return l.store.WithTx(ctx, func(s Store) error {
			inserted, err := s.InsertLedgerTx(ctx, tx)
			if err != nil {
				return err
			}
			if _, err := l.recalc.replayInTx(ctx, s, in.EntityID); err != nil {
				return err
			}
			stored, err = s.GetLedgerTx(ctx, inserted.ID)
			return err
		})
	})
	return stored, err
}

// =============================================================================
// UPDATE / DELETE
// =============================================================================

// Update rewrites a transaction's amounts and optionally its date, then
// replays the entity's history.
func (l *LedgerLog) Update(ctx context.Context, id TransactionID, in LedgerUpdateInput) error {
	if err := validateAmounts(in.Debit, in.Credit); err != nil {
		return err
	}

	return withRetry(ctx, func() error {
		tx, err := l.store.GetLedgerTx(ctx, id)
		if err != nil {
			return err
		}

		release, err := l.locks.Acquire(ctx, lockKeyEntity(tx.EntityID))
		if err != nil {
			return err
		}
		defer release()

		// Re-read under the lock; the record may have moved.
		tx, err = l.store.GetLedgerTx(ctx, id)
		if err != nil {
			return err
		}

		// Both the day the record sits on and the day it moves to must
		// be open.
		if err := l.guardLedgerMutation(ctx, tx.EntityID, tx.Date); err != nil {
			return err
		}
		if in.NewDate != nil && !in.NewDate.Equal(tx.Date) {
			if err := l.days.guardOpen(ctx, *in.NewDate, ScopeLedger); err != nil {
				return err
			}
			tx.Date = *in.NewDate
		}

		tx.Debit = in.Debit
		tx.Credit = in.Credit
		tx.UpdatedAt = l.now()

		return l.store.WithTx(ctx, func(s Store) error {
			if err := s.UpdateLedgerTx(ctx, tx); err != nil {
				return err
			}
			_, err := l.recalc.replayInTx(ctx, s, tx.EntityID)
			return err
		})
	})
}

// Delete removes a transaction and replays the entity's history.
func (l *LedgerLog) Delete(ctx context.Context, id TransactionID) error {
	return withRetry(ctx, func() error {
		tx, err := l.store.GetLedgerTx(ctx, id)
		if err != nil {
			return err
		}

		release, err := l.locks.Acquire(ctx, lockKeyEntity(tx.EntityID))
		if err != nil {
			return err
		}
		defer release()

		tx, err = l.store.GetLedgerTx(ctx, id)
		if err != nil {
			return err
		}
		if err := l.guardLedgerMutation(ctx, tx.EntityID, tx.Date); err != nil {
			return err
		}

		return l.store.WithTx(ctx, func(s Store) error {
			if err := s.DeleteLedgerTx(ctx, id); err != nil {
				return err
			}
			_, err := l.recalc.replayInTx(ctx, s, tx.EntityID)
			return err
		})
	})
}

// =============================================================================
// READ QUERIES
// =============================================================================

// GetEntityBalance returns the cached current balance.
func (l *LedgerLog) GetEntityBalance(ctx context.Context, id EntityID) (decimal.Decimal, error) {
	entity, err := l.store.GetEntity(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return entity.CurrentBalance, nil
}

// GetLedgerHistory returns all transactions for an entity in replay order.
func (l *LedgerLog) GetLedgerHistory(ctx context.Context, id EntityID) ([]LedgerTransaction, error) {
	if _, err := l.store.GetEntity(ctx, id); err != nil {
		return nil, err
	}
	return l.store.LedgerTxs(ctx, id)
}

// ListEntities returns all customers and parties.
func (l *LedgerLog) ListEntities(ctx context.Context) ([]LedgerEntity, error) {
	return l.store.ListEntities(ctx)
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func validateAmounts(debit, credit decimal.Decimal) error {
	if debit.IsNegative() {
		return &ValidationError{Field: "debit", Message: "must not be negative"}
	}
	if credit.IsNegative() {
		return &ValidationError{Field: "credit", Message: "must not be negative"}
	}
	if debit.IsPositive() == credit.IsPositive() {
		return &ValidationError{Field: "debit/credit", Message: "exactly one must be positive"}
	}
	return nil
}

func validLedgerKind(kind LedgerTxKind) bool {
	switch kind {
	case LedgerSale, LedgerPurchase, LedgerPaymentIn, LedgerPaymentOut, LedgerAdjustment:
		return true
	}
	return false
}

func lockKeyEntity(id EntityID) string { return "entity:" + string(id) }

func (l *LedgerLog) guardLedgerMutation(ctx context.Context, id EntityID, date DayDate) error {
	if err := l.holds.Check("entity", string(id)); err != nil {
		return err
	}
	return l.days.guardOpen(ctx, date, ScopeLedger)
}
