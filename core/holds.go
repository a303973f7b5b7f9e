package core

import (
	"fmt"
	"sync"
)

// =============================================================================
// HOLD REGISTRY - Blocks writes to records that failed a consistency check
// =============================================================================

// HoldRegistry tracks items and entities whose derived aggregates were
// caught disagreeing with their logs. A held record rejects every further
// mutation until an operator resolves the hold out-of-band. Holds are
// process-local: a restart clears them, and the next consistency sweep
// re-detects any corruption that is still there.
type HoldRegistry struct {
	mu    sync.RWMutex
	holds map[string]string // key -> detail
}

func NewHoldRegistry() *HoldRegistry {
	return &HoldRegistry{holds: make(map[string]string)}
}

func holdKey(kind, id string) string { return kind + ":" + id }

// Hold blocks further writes to a record.
func (h *HoldRegistry) Hold(kind, id, detail string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.holds[holdKey(kind, id)] = detail
}

// Resolve lifts a hold after out-of-band correction.
func (h *HoldRegistry) Resolve(kind, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.holds, holdKey(kind, id))
}

// Check returns an ErrConsistency-wrapping error if the record is held.
func (h *HoldRegistry) Check(kind, id string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if detail, held := h.holds[holdKey(kind, id)]; held {
		return fmt.Errorf("%w: %s %s is blocked: %s", ErrConsistency, kind, id, detail)
	}
	return nil
}

// Held lists all active holds as "kind:id" -> detail.
func (h *HoldRegistry) Held() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string, len(h.holds))
	for k, v := range h.holds {
		out[k] = v
	}
	return out
}
