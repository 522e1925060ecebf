package registry

import (
	"context"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

// RefreshResult is what a refresh reports. Code is nil when no response was received.
type RefreshResult struct {
	Status domain.WebStatus `json:"status"`
	Code   *int             `json:"code"`
}

// Refresh re-downloads the entry's document on behalf of its owner.
func (c *Controller) Refresh(ctx context.Context, id, actor string) (*RefreshResult, error) {
	e, err := c.owned(ctx, id, actor)
	if err != nil {
		c.observe("refresh", err)
		return nil, err
	}

	out := c.timedFetch(ctx, "refresh", e.URL)
	res, err := c.ApplyRefresh(ctx, e, out)
	c.observe("refresh", err)
	return res, err
}

// ApplyRefresh folds the outcome of fetching snapshot.URL into the stored entry.
//
// A 2xx response whose body validates replaces the content and sets the status from the code.
// Anything else keeps the previous content and records nofile. A failed fetch is an expected
// outcome and is reported through the result, never as an error.
//
// The fetch happened outside any lock, so the write is one read-modify-write on the freshest
// copy. If content was replaced after snapshot was read, the fetched body may be older than
// what is stored and only the status fields are written.
func (c *Controller) ApplyRefresh(ctx context.Context, snapshot *domain.Entry, out fetch.Outcome) (*RefreshResult, error) {
	res := &RefreshResult{Status: domain.StatusNoFile, Code: out.CodePtr()}

	var validated *validator.Result
	if out.Succeeded() {
		v, err := c.validator.Validate(out.Body)
		if err != nil {
			c.log.Info("refreshed document no longer validates",
				logger.String("id", snapshot.ID), logger.String("reason", domain.ReasonOf(err)))
		} else {
			validated = v
			res.Status = domain.StatusFromCode(out.Code)
		}
	} else if out.Err != nil {
		c.log.Info("refresh fetch failed", logger.String("id", snapshot.ID), logger.Error(out.Err))
	}

	now := c.now()
	replaced := false
	updated, err := c.store.Update(ctx, snapshot.ID, func(e *domain.Entry) error {
		replaced = false
		e.WebStatus = res.Status
		e.LastCheckedCode = copyCode(res.Code)
		e.CheckedAt = now

		if validated == nil || e.RefreshedAt.After(snapshot.RefreshedAt) {
			return nil
		}
		hash := domain.HashContent(out.Body)
		if hash == e.ContentHash {
			return nil
		}
		e.Raw = append([]byte(nil), out.Body...)
		e.ContentHash = hash
		e.Family = validated.Family
		e.Version = validated.Version
		e.Title = validated.Title
		e.Description = validated.Description
		e.RefreshedAt = now
		replaced = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replaced {
		c.log.Info("entry content replaced", logger.String("id", updated.ID), logger.String("version", updated.Version))
		c.reindex(ctx, updated, validated.Document)
	}
	c.log.Debug("refresh recorded",
		logger.String("id", snapshot.ID),
		logger.String("status", string(res.Status)),
		logger.Code("code", res.Code))
	c.metrics.Status("refresh", string(res.Status))
	return res, nil
}

func copyCode(code *int) *int {
	if code == nil {
		return nil
	}
	return domain.CodePtr(*code)
}
