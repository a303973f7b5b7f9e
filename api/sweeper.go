/*
sweeper.go - Background consistency sweeper

PURPOSE:
  Periodically runs the full consistency check so drifted records get
  held shortly after corruption instead of at the next manual check.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start
  - Violations are logged; the checker itself registers the holds

CONFIGURATION:
  - Interval: How often to sweep (default: 15 minutes)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewConsistencySweeper(engine, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - core/checker.go: ConsistencyChecker
  - handlers.go: RunConsistencyCheck endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ovenworks/bakery-engine/core"
)

// ConsistencySweeper runs periodic full consistency checks.
type ConsistencySweeper struct {
	Engine   *core.Engine
	Logger   *logrus.Logger
	Interval time.Duration
	Enabled  bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewConsistencySweeper creates a new sweeper.
func NewConsistencySweeper(engine *core.Engine, logger *logrus.Logger) *ConsistencySweeper {
	return &ConsistencySweeper{
		Engine:   engine,
		Logger:   logger,
		Interval: 15 * time.Minute,
		Enabled:  true,
		stop:     make(chan bool),
	}
}

// Start begins the sweeper.
func (cs *ConsistencySweeper) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.Enabled {
		cs.Logger.Info("sweeper disabled, not starting")
		return
	}

	cs.ticker = time.NewTicker(cs.Interval)
	cs.wg.Add(1)

	go cs.run()

	cs.Logger.WithField("interval", cs.Interval).Info("consistency sweeper started")
}

// Stop stops the sweeper.
func (cs *ConsistencySweeper) Stop() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.ticker != nil {
		cs.ticker.Stop()
		close(cs.stop)
		cs.wg.Wait()
		cs.Logger.Info("consistency sweeper stopped")
	}
}

func (cs *ConsistencySweeper) run() {
	defer cs.wg.Done()

	// Run immediately on start
	cs.sweep()

	for {
		select {
		case <-cs.ticker.C:
			cs.sweep()
		case <-cs.stop:
			return
		}
	}
}

func (cs *ConsistencySweeper) sweep() {
	ctx := context.Background()

	violations := cs.Engine.Checker.CheckAll(ctx)
	if len(violations) == 0 {
		cs.Logger.Debug("consistency sweep clean")
		return
	}

	for _, v := range violations {
		cs.Logger.WithField("violation", v.Error()).Error("consistency sweep found drift")
	}
	cs.Logger.WithFields(logrus.Fields{
		"violations": len(violations),
		"held":       len(cs.Engine.Holds.Held()),
	}).Warn("consistency sweep completed with violations")
}

// RunNow triggers an immediate sweep (for testing/admin).
func (cs *ConsistencySweeper) RunNow() {
	cs.sweep()
}
