/*
locks.go - Per-record lock table

PURPOSE:
  Every mutation reads current state and writes derived state; without
  serialization, two concurrent purchases on the same item are a classic
  lost update. The lock table hands out one mutex per item/entity key,
  acquired with a bounded wait so a stuck caller cannot block a record
  forever.

ACQUISITION:
  Acquire waits up to the configured timeout (or the context deadline,
  whichever ends first) and returns ErrConcurrencyConflict on timeout.
  AcquireAll locks a set of keys in sorted order, which is what makes
  multi-ingredient production deadlock-free.

SEE ALSO:
  - costing.go: per-item locks
  - ledger.go: per-entity locks
  - production.go: AcquireAll over all ingredients
*/
package core

import (
	"context"
	"sort"
	"sync"
	"time"
)

// DefaultLockTimeout bounds how long a mutation waits for a record lock.
const DefaultLockTimeout = 3 * time.Second

// =============================================================================
// LOCK TABLE
// =============================================================================

// LockTable hands out one channel-based mutex per key. Entries are created
// on first use and kept for the table's lifetime; the key space (items and
// entities) is small and bounded.
type LockTable struct {
	mu      sync.Mutex
	locks   map[string]chan struct{}
	Timeout time.Duration
}

func NewLockTable(timeout time.Duration) *LockTable {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	return &LockTable{
		locks:   make(map[string]chan struct{}),
		Timeout: timeout,
	}
}

func (lt *LockTable) lockFor(key string) chan struct{} {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	ch, ok := lt.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		lt.locks[key] = ch
	}
	return ch
}

// Acquire takes the lock for key, waiting up to the table timeout.
// The returned release function must be called exactly once.
func (lt *LockTable) Acquire(ctx context.Context, key string) (func(), error) {
	ch := lt.lockFor(key)

	timer := time.NewTimer(lt.Timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-timer.C:
		return nil, ErrConcurrencyConflict
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AcquireAll takes locks for every key in sorted order so that two
// productions sharing ingredients always lock in the same sequence.
// On failure, locks taken so far are released before returning.
func (lt *LockTable) AcquireAll(ctx context.Context, keys []string) (func(), error) {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	// Drop duplicates; double-locking the same key would self-deadlock.
	uniq := sorted[:0]
	for i, k := range sorted {
		if i == 0 || k != sorted[i-1] {
			uniq = append(uniq, k)
		}
	}

	var releases []func()
	for _, key := range uniq {
		release, err := lt.Acquire(ctx, key)
		if err != nil {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
			return nil, err
		}
		releases = append(releases, release)
	}

	return func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}, nil
}

// =============================================================================
// BOUNDED RETRY
// =============================================================================

// maxConflictRetries bounds internal retries on lock contention before the
// conflict surfaces to the caller.
const maxConflictRetries = 2

// withRetry runs fn, retrying a small bounded number of times when it
// reports a concurrency conflict. Terminal errors pass through untouched.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond << attempt):
		}
	}
	return err
}
