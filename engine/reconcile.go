/*
reconcile.go - Detection sweep for unbridged supports

PURPOSE:
  A bridge failure after the local insert leaves a support permanently
  at ContractIndex == -1. Repairing those records (re-promising, or
  writing them off) is an externally-owned decision; this sweep only
  makes them visible: a background goroutine periodically lists supports
  stuck unbridged past a grace period, logs each one and exports the
  count as a gauge.

DESIGN:
  - Background goroutine with a configurable check interval
  - Grace period filters out supports whose promise is simply in flight
  - No writes: detection only

USAGE:
  sweep := engine.NewSweeper(store, logger)
  sweep.Start()
  // ... later
  sweep.Stop()
*/
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/warp/microcredit-engine/credit"
)

var unbridgedSupports = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "unbridged_supports",
	Help: "Supports older than the grace period still without a contract index",
})

// Sweeper periodically reports supports stuck at ContractIndex == -1.
type Sweeper struct {
	Supports      credit.SupportStore
	CheckInterval time.Duration
	GracePeriod   time.Duration
	Logger        *zap.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a sweeper with hourly checks and a 10-minute grace
// period.
func NewSweeper(supports credit.SupportStore, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		Supports:      supports,
		CheckInterval: 1 * time.Hour,
		GracePeriod:   10 * time.Minute,
		Logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start begins the background sweep.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.ticker = time.NewTicker(sw.CheckInterval)
	sw.wg.Add(1)
	go sw.run()

	sw.Logger.Info("reconciliation sweep started",
		zap.Duration("interval", sw.CheckInterval),
		zap.Duration("grace", sw.GracePeriod))
}

// Stop stops the sweep and waits for an in-flight pass to finish.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	if sw.ticker != nil {
		sw.ticker.Stop()
	}
	close(sw.stop)
	sw.mu.Unlock()

	sw.wg.Wait()
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()
	for {
		select {
		case <-sw.ticker.C:
			sw.Sweep(context.Background())
		case <-sw.stop:
			return
		}
	}
}

// Sweep runs one detection pass and returns the stuck supports.
func (sw *Sweeper) Sweep(ctx context.Context) []*credit.Support {
	cutoff := time.Now().Add(-sw.GracePeriod)
	stuck, err := sw.Supports.ListUnbridged(ctx, cutoff)
	if err != nil {
		sw.Logger.Error("reconciliation sweep failed", zap.Error(err))
		return nil
	}

	unbridgedSupports.Set(float64(len(stuck)))
	for _, s := range stuck {
		sw.Logger.Warn("support stuck unbridged",
			zap.String("support", string(s.ID)),
			zap.String("campaign", string(s.CampaignID)),
			zap.String("backer", string(s.BackerID)),
			zap.Time("created_at", s.CreatedAt))
	}
	return stuck
}
