package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
)

// Sweeper is the part of the registry the background jobs drive.
type Sweeper interface {
	RefreshAll(ctx context.Context) (*registry.SweepReport, error)
	CheckAll(ctx context.Context) (*registry.SweepReport, error)
	ReindexAll(ctx context.Context) (int, error)
	CollectOrphans(ctx context.Context) ([]string, error)
}

// Refresher handles periodic re-download of every registered document
type Refresher struct {
	sweeper       Sweeper
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewRefresher creates a new refresher. Sends on manualTrigger run a refresh at once.
func NewRefresher(
	sweeper Sweeper,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Refresher {
	return &Refresher{
		sweeper:       sweeper,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic refresh. The first scheduled pass happens one interval after start.
func (r *Refresher) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Refresh(ctx)
			case <-r.manualTrigger:
				r.logger.Info("manual refresh triggered")
				r.Refresh(ctx)
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresher
func (r *Refresher) Stop() {
	close(r.stopCh)
}

// Refresh runs one pass over all entries
func (r *Refresher) Refresh(ctx context.Context) {
	r.logger.Info("refreshing registered documents")

	report, err := r.sweeper.RefreshAll(ctx)
	if err != nil {
		r.logger.Error("failed to refresh documents",
			logger.Error(err))
		return
	}

	r.logger.Info("documents refreshed",
		logger.Int("entries", report.Total),
		logger.Int("failed", report.Failed),
		logger.Any("statuses", report.Statuses))
}
