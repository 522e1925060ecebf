package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

const (
	// DefaultGCInterval is how often orphaned relation documents are looked for
	DefaultGCInterval = 6 * time.Hour
)

// OrphanCollector removes relation documents left behind by deleted entries
type OrphanCollector struct {
	sweeper  Sweeper
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewOrphanCollector creates a new garbage collector
func NewOrphanCollector(sweeper Sweeper, log logger.Logger, interval time.Duration) *OrphanCollector {
	if interval == 0 {
		interval = DefaultGCInterval
	}

	return &OrphanCollector{
		sweeper:  sweeper,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic garbage collection process
func (gc *OrphanCollector) Start(ctx context.Context) error {
	// Run immediately on start
	if err := gc.Collect(ctx); err != nil {
		gc.logger.Warn("initial garbage collection failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(gc.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := gc.Collect(ctx); err != nil {
					gc.logger.Error("garbage collection failed",
						logger.Error(err))
				}
			case <-gc.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the garbage collector
func (gc *OrphanCollector) Stop() {
	close(gc.stopCh)
}

// Collect deletes relation documents whose entry is gone
func (gc *OrphanCollector) Collect(ctx context.Context) error {
	gc.logger.Debug("running garbage collection for orphaned relation documents")

	removed, err := gc.sweeper.CollectOrphans(ctx)
	if err != nil {
		return err
	}

	if len(removed) > 0 {
		gc.logger.Info("garbage collection completed",
			logger.Int("entries_cleaned", len(removed)))
	} else {
		gc.logger.Debug("no items to garbage collect")
	}

	return nil
}
