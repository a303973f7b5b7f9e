/*
events.go - Structured logging sink for engine events

PURPOSE:
  Bridges core.EventSink to logrus. The engine publishes domain events
  (low stock, rejected consumptions, day closes, balance recalculations,
  consistency violations); this sink turns each into a structured log
  line with the event's fields.

LEVELS:
  ConsistencyViolation     -> error
  InsufficientStockRejected -> warn
  LowStockDetected          -> warn
  everything else           -> info

SEE ALSO:
  - core/events.go: Event definitions
*/
package api

import (
	"github.com/sirupsen/logrus"

	"github.com/ovenworks/bakery-engine/core"
)

// LogSink publishes engine events as structured log entries.
type LogSink struct {
	Logger *logrus.Logger
}

// NewLogSink creates a sink over the given logger.
func NewLogSink(logger *logrus.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// Publish implements core.EventSink.
func (s *LogSink) Publish(event core.Event) {
	entry := s.Logger.WithField("event", event.EventName())

	switch e := event.(type) {
	case core.LowStockDetected:
		entry.WithFields(logrus.Fields{
			"item_id":          e.ItemID,
			"quantity_on_hand": e.QuantityOnHand.String(),
			"min_level":        e.MinLevel.String(),
		}).Warn("stock below minimum level")

	case core.InsufficientStockRejected:
		entry.WithFields(logrus.Fields{
			"item_id":   e.ItemID,
			"required":  e.Required.String(),
			"available": e.Available.String(),
			"reference": e.Reference,
		}).Warn("consumption rejected")

	case core.DayClosedEvent:
		entry.WithFields(logrus.Fields{
			"date":      e.Date.String(),
			"scope":     e.Scope,
			"closed_by": e.ClosedBy,
		}).Info("day closed")

	case core.DayReopenedEvent:
		entry.WithFields(logrus.Fields{
			"date":  e.Date.String(),
			"scope": e.Scope,
		}).Info("day reopened")

	case core.BalanceRecalculated:
		entry.WithFields(logrus.Fields{
			"entity_id":   e.EntityID,
			"rewritten":   e.Rewritten,
			"new_balance": e.NewBalance.String(),
		}).Info("running balances recalculated")

	case core.ConsistencyViolation:
		entry.WithFields(logrus.Fields{
			"kind":   e.Kind,
			"id":     e.ID,
			"detail": e.Detail,
		}).Error("consistency violation, record held")

	default:
		entry.Info("engine event")
	}
}
