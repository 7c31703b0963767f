// Package metrics periodically samples resource usage of running instances
// and persists the samples as queryable history.
package metrics

import (
	"log/slog"
	"sync"
	"time"

	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/instance"
)

// Collector drives the sampling loop. Only instances in the Running state
// are sampled; stopped instances produce no rows.
type Collector struct {
	manager   *instance.Manager
	db        *database.DB
	interval  time.Duration
	retention time.Duration

	stopCh      chan struct{}
	wg          sync.WaitGroup
	lastCleanup time.Time
}

// NewCollector creates a collector. Interval defaults to 30 seconds,
// retention to 7 days.
func NewCollector(manager *instance.Manager, db *database.DB, interval, retention time.Duration) *Collector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Collector{
		manager:   manager,
		db:        db,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sampling loop.
func (c *Collector) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collectAll(time.Now())
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for it to exit.
func (c *Collector) Stop() {
	close(c.stopCh)
	c.wg.Wait()
}

func (c *Collector) collectAll(now time.Time) {
	for _, sup := range c.manager.List() {
		if sup.State() != instance.StateRunning {
			continue
		}

		report := sup.Monitor()
		sample := database.MetricSample{
			InstanceID:  sup.ID(),
			CPUPercent:  report.CPUPercent,
			MemoryBytes: report.MemoryBytes,
			DiskIOBytes: report.DiskIOBytes,
			PlayerCount: len(sup.Players()),
			SampledAt:   now.UTC(),
		}
		if err := c.db.RecordMetric(sample); err != nil {
			slog.Error("failed to record metric sample", "instance", sup.ID(), "error", err)
		}
	}

	c.cleanupOld(now)
}

func (c *Collector) cleanupOld(now time.Time) {
	if !c.lastCleanup.IsZero() && now.Sub(c.lastCleanup) < 6*time.Hour {
		return
	}
	c.lastCleanup = now

	if err := c.db.PruneMetrics(now.Add(-c.retention)); err != nil {
		slog.Warn("failed to prune old metrics", "error", err)
	}
}
