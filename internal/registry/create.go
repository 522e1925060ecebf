package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/notify"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

// CreateResult describes a registration. For dry runs ID is empty.
type CreateResult struct {
	ID      string
	Version string
	DryRun  bool
}

// Create registers raw as the document served at url.
//
// The URL pre-check fails fast; the store enforces uniqueness again atomically, so of two
// concurrent creates for one URL exactly one wins. A dry run validates and returns the
// version without persisting anything, and does not need an owner.
func (c *Controller) Create(ctx context.Context, url string, raw []byte, owner string, dryrun bool) (*CreateResult, error) {
	res, err := c.create(ctx, url, raw, owner, dryrun, nil)
	c.observe(createOp(dryrun), err)
	return res, err
}

// Submit downloads url and registers what it serves.
func (c *Controller) Submit(ctx context.Context, url, owner string, dryrun bool) (*CreateResult, error) {
	res, err := c.submit(ctx, url, owner, dryrun)
	c.observe(createOp(dryrun), err)
	return res, err
}

func (c *Controller) submit(ctx context.Context, url, owner string, dryrun bool) (*CreateResult, error) {
	url = strings.TrimSpace(url)
	if err := c.checkCreate(ctx, url, owner, dryrun); err != nil {
		return nil, err
	}

	out := c.timedFetch(ctx, "create", url)
	if out.Err != nil {
		return nil, domain.Wrap(domain.KindUpstreamFetch, out.Err, "could not download "+url)
	}
	if !out.Succeeded() {
		return nil, domain.Errorf(domain.KindUpstreamFetch, "could not download %s: HTTP %d", url, out.Code)
	}

	return c.create(ctx, url, out.Body, owner, dryrun, domain.CodePtr(out.Code))
}

func (c *Controller) checkCreate(ctx context.Context, url, owner string, dryrun bool) error {
	if url == "" {
		return domain.InvalidArgument("missing required field: url")
	}
	if !dryrun && owner == "" {
		return domain.Unauthenticated("login required")
	}

	_, err := c.store.GetByURL(ctx, url)
	switch {
	case err == nil:
		return domain.Conflict("API with url %s already exists", url)
	case domain.IsKind(err, domain.KindNotFound):
		return nil
	default:
		return err
	}
}

func (c *Controller) create(ctx context.Context, url string, raw []byte, owner string, dryrun bool, code *int) (*CreateResult, error) {
	url = strings.TrimSpace(url)
	if err := c.checkCreate(ctx, url, owner, dryrun); err != nil {
		return nil, err
	}

	res, err := c.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	if dryrun {
		return &CreateResult{Version: res.Version, DryRun: true}, nil
	}

	now := c.now()
	e := &domain.Entry{
		ID:              c.newID(),
		URL:             url,
		Owner:           owner,
		CreatedAt:       now,
		Raw:             append([]byte(nil), raw...),
		ContentHash:     domain.HashContent(raw),
		Family:          res.Family,
		Version:         res.Version,
		Title:           res.Title,
		Description:     res.Description,
		RefreshedAt:     now,
		WebStatus:       domain.StatusValid,
		LastCheckedCode: code,
		CheckedAt:       now,
	}
	if err := c.store.Create(ctx, e); err != nil {
		return nil, err
	}

	c.log.Info("entry registered",
		logger.String("id", e.ID),
		logger.String("url", e.URL),
		logger.String("owner", e.Owner),
		logger.String("version", e.Version),
	)

	c.reindex(ctx, e, res.Document)
	c.announce(e, res.Document)

	return &CreateResult{ID: e.ID, Version: res.Version}, nil
}

// announce fires the registration notification on a detached goroutine. Its outcome is
// only logged and counted; the caller has already got its answer.
func (c *Controller) announce(e *domain.Entry, doc map[string]any) {
	ev := notify.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Owner:       e.Owner,
		UIURL:       strings.TrimRight(c.uiBaseURL, "/") + "/" + e.ID,
		Translator:  hasTranslatorInfo(doc),
	}

	c.pending.Add(1)
	go func() {
		defer c.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Error("notifier panicked", logger.String("id", ev.ID), logger.Any("panic", r))
				c.metrics.Notification("failed")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), c.notifyTimeout)
		defer cancel()

		if err := c.notifier.NotifyCreated(ctx, ev); err != nil {
			c.log.Warn("notification failed", logger.String("id", ev.ID), logger.Error(err))
			c.metrics.Notification("failed")
			return
		}
		c.metrics.Notification("sent")
	}()
}

func hasTranslatorInfo(doc map[string]any) bool {
	info, _ := doc["info"].(map[string]any)
	_, ok := info["x-translator"]
	return ok
}

func (c *Controller) timedFetch(ctx context.Context, op, url string) fetch.Outcome {
	start := time.Now()
	out := c.fetcher.Fetch(ctx, url)
	c.metrics.ObserveFetch(op, time.Since(start))
	return out
}

func createOp(dryrun bool) string {
	if dryrun {
		return "dryrun"
	}
	return "create"
}

// DryRunDetails is the message returned for a successful dry run.
func DryRunDetails(version string) string {
	return fmt.Sprintf("[Dryrun] Valid %s Metadata", version)
}

// ValidDetails is the message returned by the validation-only endpoint.
func ValidDetails(version string) string {
	return fmt.Sprintf("valid SmartAPI (%s) metadata.", version)
}

// ValidateURL downloads url and validates what it serves without registering anything.
func (c *Controller) ValidateURL(ctx context.Context, url string) (*validator.Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, domain.InvalidArgument("missing required field: url")
	}
	out := c.timedFetch(ctx, "validate", url)
	if out.Err != nil {
		return nil, domain.Wrap(domain.KindUpstreamFetch, out.Err, "could not download "+url)
	}
	if !out.Succeeded() {
		return nil, domain.Errorf(domain.KindUpstreamFetch, "could not download %s: HTTP %d", url, out.Code)
	}
	return c.Validate(out.Body)
}
