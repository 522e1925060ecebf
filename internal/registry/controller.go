// Package registry owns the lifecycle of registered API documents: creation, refresh,
// aliasing, liveness checks and deletion, together with their search projection.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/apiregistry/internal/domain"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/metrics"
	"github.com/MrSnakeDoc/apiregistry/internal/notify"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
	"github.com/MrSnakeDoc/apiregistry/internal/validator"
)

const (
	DefaultNotifyTimeout    = 15 * time.Second
	DefaultSweepConcurrency = 4
)

// DocumentValidator checks raw document bytes.
type DocumentValidator interface {
	Validate(raw []byte) (*validator.Result, error)
}

type Options struct {
	Store     store.Store
	Validator DocumentValidator
	Fetcher   fetch.Fetcher
	Index     search.Index
	Projector *search.Projector
	Notifier  notify.Notifier
	Logger    logger.Logger
	Metrics   *metrics.Metrics

	// UIBaseURL prefixes entry links in notifications.
	UIBaseURL        string
	NotifyTimeout    time.Duration
	SweepConcurrency int

	// Clock and NewID are replaced in tests.
	Clock func() time.Time
	NewID func() string
}

// Controller runs every lifecycle operation. It keeps no per-request state and is safe
// for concurrent use; the store is the only shared mutable resource.
type Controller struct {
	store     store.Store
	validator DocumentValidator
	fetcher   fetch.Fetcher
	index     search.Index
	projector *search.Projector
	notifier  notify.Notifier
	log       logger.Logger
	metrics   *metrics.Metrics

	uiBaseURL     string
	notifyTimeout time.Duration
	concurrency   int
	now           func() time.Time
	newID         func() string

	pending sync.WaitGroup
}

func New(opts Options) *Controller {
	c := &Controller{
		store:         opts.Store,
		validator:     opts.Validator,
		fetcher:       opts.Fetcher,
		index:         opts.Index,
		projector:     opts.Projector,
		notifier:      opts.Notifier,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		uiBaseURL:     opts.UIBaseURL,
		notifyTimeout: opts.NotifyTimeout,
		concurrency:   opts.SweepConcurrency,
		now:           opts.Clock,
		newID:         opts.NewID,
	}
	if c.validator == nil {
		c.validator = validator.New()
	}
	if c.projector == nil {
		c.projector = search.NewProjector(opts.UIBaseURL)
	}
	if c.notifier == nil {
		c.notifier = notify.Nop{}
	}
	if c.log == nil {
		c.log = logger.NewNop()
	}
	if c.notifyTimeout <= 0 {
		c.notifyTimeout = DefaultNotifyTimeout
	}
	if c.concurrency <= 0 {
		c.concurrency = DefaultSweepConcurrency
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Wait blocks until every detached notification has finished.
func (c *Controller) Wait() {
	c.pending.Wait()
}

// Validate runs the validator alone. No URL, owner or persistence is involved.
func (c *Controller) Validate(raw []byte) (*validator.Result, error) {
	res, err := c.validator.Validate(raw)
	c.observe("validate", err)
	return res, err
}

// Get resolves an entry by id, then by slug.
func (c *Controller) Get(ctx context.Context, idOrSlug string) (*domain.Entry, error) {
	e, err := c.store.Get(ctx, idOrSlug)
	if err == nil || !domain.IsKind(err, domain.KindNotFound) {
		return e, err
	}

	slug, serr := domain.NormalizeSlug(idOrSlug)
	if serr != nil || slug == "" {
		return nil, err
	}
	e, serr = c.store.GetBySlug(ctx, slug)
	if serr != nil {
		if domain.IsKind(serr, domain.KindNotFound) {
			return nil, domain.NotFound("no entry with id or slug %q", idOrSlug)
		}
		return nil, serr
	}
	return e, nil
}

// List returns every entry, oldest first.
func (c *Controller) List(ctx context.Context) ([]*domain.Entry, error) {
	entries, err := c.store.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Authorize resolves id and checks that actor owns it. Callers run it before reading request
// arguments so ownership failures come first.
func (c *Controller) Authorize(ctx context.Context, id, actor string) (*domain.Entry, error) {
	return c.owned(ctx, id, actor)
}

// owned loads id and checks the acting user. Existence is checked before ownership and
// ownership before anything else the caller does.
func (c *Controller) owned(ctx context.Context, id, actor string) (*domain.Entry, error) {
	if actor == "" {
		return nil, domain.Unauthenticated("login required")
	}
	e, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.IsOwnedBy(actor) {
		return nil, domain.Forbidden("%s is not the owner of %s", actor, id)
	}
	return e, nil
}

// reindex replaces the relation documents of e. Index failures are logged; the entry itself
// is already persisted and the next index sync repairs the projection.
func (c *Controller) reindex(ctx context.Context, e *domain.Entry, doc map[string]any) {
	if c.index == nil {
		return
	}
	docs := c.project(ctx, e, doc)
	if err := c.index.Put(ctx, e.ID, docs); err != nil {
		c.log.Error("index update failed", logger.String("id", e.ID), logger.Error(err))
		return
	}
	c.log.Debug("entry indexed", logger.String("id", e.ID), logger.Int("documents", len(docs)))
}

// project derives the relation documents of e. TRAPI services publish their relations on a
// meta_knowledge_graph endpoint, so that endpoint is downloaded first. When it cannot be
// read only the relations declared in the document are kept until the next reindex.
func (c *Controller) project(ctx context.Context, e *domain.Entry, doc map[string]any) []search.Document {
	url, ok := search.MetaKGURL(doc)
	if !ok || c.fetcher == nil {
		return c.projector.Project(e, doc, nil)
	}

	out := c.fetcher.Fetch(ctx, url)
	if !out.Succeeded() {
		c.log.Warn("meta knowledge graph unavailable",
			logger.String("id", e.ID),
			logger.String("url", url),
			logger.Code("code", out.CodePtr()),
			logger.Error(out.Err),
		)
		return c.projector.Project(e, doc, nil)
	}
	kg, err := search.ParseMetaKG(out.Body)
	if err != nil {
		c.log.Warn("meta knowledge graph unreadable", logger.String("id", e.ID), logger.String("url", url), logger.Error(err))
		return c.projector.Project(e, doc, nil)
	}
	return c.projector.Project(e, doc, kg)
}

func (c *Controller) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	c.metrics.Operation(op, outcome)
}
