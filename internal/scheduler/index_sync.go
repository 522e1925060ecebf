package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// IndexSyncer rebuilds the relation index from the store on startup
type IndexSyncer struct {
	sweeper Sweeper
	logger  logger.Logger
}

// NewIndexSyncer creates a new index syncer
func NewIndexSyncer(sweeper Sweeper, log logger.Logger) *IndexSyncer {
	return &IndexSyncer{
		sweeper: sweeper,
		logger:  log,
	}
}

// Sync re-projects every stored entry into the index
func (s *IndexSyncer) Sync(ctx context.Context) error {
	s.logger.Info("syncing relation index from store")

	n, err := s.sweeper.ReindexAll(ctx)
	if err != nil {
		return err
	}

	if n == 0 {
		s.logger.Info("no entries found in store")
		return nil
	}

	s.logger.Info("synced relation index",
		logger.Int("count", n))

	return nil
}
