package registry

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

// SweepReport summarizes a pass over every entry.
type SweepReport struct {
	Total    int
	Failed   int
	Statuses map[domain.WebStatus]int
}

func (r *SweepReport) record(mu *sync.Mutex, status domain.WebStatus, err error) {
	mu.Lock()
	defer mu.Unlock()
	if err != nil {
		r.Failed++
		return
	}
	r.Statuses[status]++
}

// RefreshAll refreshes every entry with no acting user. Per-entry failures are counted,
// not returned; only listing the entries can fail the sweep.
func (c *Controller) RefreshAll(ctx context.Context) (*SweepReport, error) {
	return c.sweep(ctx, "refresh", func(ctx context.Context, e *domain.Entry) (domain.WebStatus, error) {
		out := c.timedFetch(ctx, "refresh", e.URL)
		res, err := c.ApplyRefresh(ctx, e, out)
		if err != nil {
			return "", err
		}
		return res.Status, nil
	})
}

// CheckAll probes every entry URL and records the status.
func (c *Controller) CheckAll(ctx context.Context) (*SweepReport, error) {
	return c.sweep(ctx, "uptime", func(ctx context.Context, e *domain.Entry) (domain.WebStatus, error) {
		res, err := c.checkStatus(ctx, e)
		if err != nil {
			return "", err
		}
		return res.Status, nil
	})
}

func (c *Controller) sweep(ctx context.Context, name string, fn func(context.Context, *domain.Entry) (domain.WebStatus, error)) (*SweepReport, error) {
	start := time.Now()
	entries, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	c.metrics.SetEntries(len(entries))

	report := &SweepReport{Total: len(entries), Statuses: make(map[domain.WebStatus]int)}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(c.concurrency)

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			status, err := fn(ctx, e)
			if err != nil && !domain.IsKind(err, domain.KindNotFound) {
				c.log.Warn("sweep step failed",
					logger.String("sweep", name), logger.String("id", e.ID), logger.Error(err))
			}
			report.record(&mu, status, err)
			return nil
		})
	}
	_ = g.Wait()

	c.metrics.ObserveSweep(name, time.Since(start))
	c.log.Info("sweep finished",
		logger.String("sweep", name),
		logger.Int("entries", report.Total),
		logger.Int("failed", report.Failed),
		logger.Duration("took", time.Since(start)),
	)
	return report, ctx.Err()
}

// ReindexAll rebuilds the relation documents of every entry from its stored content.
// It returns the number of entries indexed.
func (c *Controller) ReindexAll(ctx context.Context) (int, error) {
	if c.index == nil {
		return 0, nil
	}
	start := time.Now()
	entries, err := c.store.List(ctx)
	if err != nil {
		return 0, err
	}

	indexed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		doc, err := validator.Parse(e.Raw)
		if err != nil {
			c.log.Warn("stored content is unreadable", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		if err := c.index.Put(ctx, e.ID, c.project(ctx, e, doc)); err != nil {
			c.log.Error("reindex failed", logger.String("id", e.ID), logger.Error(err))
			continue
		}
		indexed++
	}

	c.metrics.SetIndexedEntries(indexed)
	c.metrics.ObserveSweep("reindex", time.Since(start))
	return indexed, nil
}

// CollectOrphans removes relation documents whose entry no longer exists.
// It returns the ids that were cleaned up.
func (c *Controller) CollectOrphans(ctx context.Context) ([]string, error) {
	if c.index == nil {
		return nil, nil
	}
	indexed, err := c.index.EntryIDs(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range indexed {
		_, err := c.store.Get(ctx, id)
		if err == nil {
			continue
		}
		if !domain.IsKind(err, domain.KindNotFound) {
			return removed, err
		}
		if err := c.index.DeleteByEntry(ctx, id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}

	c.metrics.SetIndexedEntries(len(indexed) - len(removed))
	if len(removed) > 0 {
		c.log.Info("orphaned relation documents removed", logger.Strings("ids", removed))
	}
	return removed, nil
}
