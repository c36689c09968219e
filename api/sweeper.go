/*
sweeper.go - Vote deadline sweeper

PURPOSE:
  Periodically tallies pending entries whose vote deadline has passed. The
  ledger engine itself never reads the clock; this is the caller-side timer
  that feeds it `now`.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick calls the service's ExpireDue, which rejects (or approves,
    if the votes already cleared the bar) every overdue pending entry
  - Failures on individual entries are logged and skipped; the next tick
    retries them

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 minute)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewDeadlineSweeper(service, log)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - handlers.go: TallyEntry endpoint (manual tally)
  - vaca/withdrawal.go: ExpireDue
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/lavaca/ledger-engine/logger"
	"github.com/lavaca/ledger-engine/vaca"
)

// DeadlineSweeper closes out overdue votes on a timer.
type DeadlineSweeper struct {
	Service       *vaca.PoolService
	Log           logger.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewDeadlineSweeper creates a new sweeper.
func NewDeadlineSweeper(service *vaca.PoolService, log logger.Logger) *DeadlineSweeper {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &DeadlineSweeper{
		Service:       service,
		Log:           log,
		CheckInterval: 1 * time.Minute,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the sweeper.
func (ds *DeadlineSweeper) Start() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if !ds.Enabled {
		ds.Log.Info("deadline sweeper disabled, not starting")
		return
	}

	ds.ticker = time.NewTicker(ds.CheckInterval)
	ds.wg.Add(1)

	go ds.run()

	ds.Log.Info("deadline sweeper started", "interval", ds.CheckInterval.String())
}

// Stop stops the sweeper.
func (ds *DeadlineSweeper) Stop() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.ticker != nil {
		ds.ticker.Stop()
		close(ds.stop)
		ds.wg.Wait()
		ds.Log.Info("deadline sweeper stopped")
	}
}

func (ds *DeadlineSweeper) run() {
	defer ds.wg.Done()

	// Run immediately on start
	ds.sweep()

	for {
		select {
		case <-ds.ticker.C:
			ds.sweep()
		case <-ds.stop:
			return
		}
	}
}

func (ds *DeadlineSweeper) sweep() {
	ctx := context.Background()
	decided, err := ds.Service.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		ds.Log.Error("deadline sweep failed", "err", err)
		return
	}
	if decided > 0 {
		ds.Log.Info("deadline sweep decided entries", "count", decided)
	}
}
