package registry

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
)

// UptimeResult reports a liveness probe. Code is nil when the URL could not be reached.
type UptimeResult struct {
	Status domain.WebStatus `json:"status"`
	Code   *int             `json:"code"`
}

// SetSlug assigns, changes or (with "") clears the alias of an entry.
func (c *Controller) SetSlug(ctx context.Context, id, actor, slug string) (*domain.Entry, error) {
	e, err := c.setSlug(ctx, id, actor, slug)
	c.observe("set_slug", err)
	return e, err
}

func (c *Controller) setSlug(ctx context.Context, id, actor, slug string) (*domain.Entry, error) {
	if _, err := c.owned(ctx, id, actor); err != nil {
		return nil, err
	}
	normalized, err := domain.NormalizeSlug(slug)
	if err != nil {
		return nil, err
	}

	updated, err := c.store.SetSlug(ctx, id, normalized)
	if err != nil {
		return nil, err
	}
	c.log.Info("slug updated", logger.String("id", id), logger.String("slug", normalized))
	return updated, nil
}

// CheckUptime probes the entry URL and records the observed status. Content is never touched.
func (c *Controller) CheckUptime(ctx context.Context, id, actor string) (*UptimeResult, error) {
	e, err := c.owned(ctx, id, actor)
	if err != nil {
		c.observe("uptime", err)
		return nil, err
	}
	res, err := c.checkStatus(ctx, e)
	c.observe("uptime", err)
	return res, err
}

func (c *Controller) checkStatus(ctx context.Context, e *domain.Entry) (*UptimeResult, error) {
	start := time.Now()
	code, perr := c.fetcher.Probe(ctx, e.URL)
	c.metrics.ObserveFetch("uptime", time.Since(start))

	res := &UptimeResult{Status: domain.StatusUnreachable}
	if perr == nil {
		res.Status = domain.StatusFromCode(code)
		res.Code = domain.CodePtr(code)
	} else {
		c.log.Info("uptime probe failed", logger.String("id", e.ID), logger.Error(perr))
	}

	now := c.now()
	if _, err := c.store.Update(ctx, e.ID, func(cur *domain.Entry) error {
		cur.WebStatus = res.Status
		cur.LastCheckedCode = copyCode(res.Code)
		cur.CheckedAt = now
		return nil
	}); err != nil {
		return nil, err
	}

	c.log.Debug("uptime recorded",
		logger.String("id", e.ID),
		logger.String("status", string(res.Status)),
		logger.Code("code", res.Code))
	c.metrics.Status("uptime", string(res.Status))
	return res, nil
}

// Delete removes an entry and its relation documents, returning the deleted id.
func (c *Controller) Delete(ctx context.Context, id, actor string) (string, error) {
	deleted, err := c.delete(ctx, id, actor)
	c.observe("delete", err)
	return deleted, err
}

func (c *Controller) delete(ctx context.Context, id, actor string) (string, error) {
	e, err := c.owned(ctx, id, actor)
	if err != nil {
		return "", err
	}
	if err := c.store.Delete(ctx, e.ID); err != nil {
		return "", err
	}

	if c.index != nil {
		if err := c.index.DeleteByEntry(ctx, e.ID); err != nil {
			// the orphan collector removes what is left behind
			c.log.Error("removing relation documents failed", logger.String("id", e.ID), logger.Error(err))
		}
	}

	c.log.Info("entry deleted", logger.String("id", e.ID), logger.String("url", e.URL))
	return e.ID, nil
}
