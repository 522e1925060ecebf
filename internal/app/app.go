package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/apiregistry/internal/config"
	"github.com/MrSnakeDoc/apiregistry/internal/expansion"
	"github.com/MrSnakeDoc/apiregistry/internal/fetch"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver"
	"github.com/MrSnakeDoc/apiregistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/metrics"
	"github.com/MrSnakeDoc/apiregistry/internal/notify"
	"github.com/MrSnakeDoc/apiregistry/internal/redis"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/scheduler"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
	"github.com/MrSnakeDoc/apiregistry/internal/search/bleveindex"
	"github.com/MrSnakeDoc/apiregistry/internal/search/elastic"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
	"github.com/MrSnakeDoc/apiregistry/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/apiregistry/internal/store/redis"
	"github.com/MrSnakeDoc/apiregistry/internal/taxonomy"
	"github.com/MrSnakeDoc/apiregistry/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	index       search.Index
	controller  *registry.Controller
	syncer      *scheduler.IndexSyncer
	refresher   *scheduler.Refresher
	uptime      *scheduler.UptimeSweeper
	gc          *scheduler.OrphanCollector
}

func New(cfg *config.Config) (*App, error) {
	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a := &App{cfg: cfg, logger: loggerClient}

	st, err := a.openStore()
	if err != nil {
		return nil, err
	}

	idx, err := a.openIndex()
	if err != nil {
		a.closeRedis()
		return nil, err
	}
	a.index = idx

	notifier, err := a.newNotifier()
	if err != nil {
		a.closeAll()
		return nil, err
	}

	lookup, err := a.newTaxonomy()
	if err != nil {
		a.closeAll()
		return nil, err
	}

	m := metrics.New()

	a.controller = registry.New(registry.Options{
		Store:            st,
		Fetcher:          fetch.New(fetch.Options{Timeout: cfg.FetchTimeout, MaxBytes: cfg.FetchMaxBytes}),
		Index:            idx,
		Notifier:         notifier,
		Logger:           loggerClient,
		Metrics:          m,
		UIBaseURL:        cfg.UIBaseURL,
		NotifyTimeout:    cfg.NotifyTimeout,
		SweepConcurrency: cfg.SweepConcurrency,
	})

	// Rebuild the relation index from the store; the store is the source of truth
	a.syncer = scheduler.NewIndexSyncer(a.controller, loggerClient)

	// Create manual refresh trigger channel
	var reloadTrigger chan struct{}
	if cfg.RefreshInterval > 0 {
		reloadTrigger = make(chan struct{}, 1)
		a.refresher = scheduler.NewRefresher(a.controller, loggerClient, cfg.RefreshInterval, reloadTrigger)
	} else {
		loggerClient.Info("periodic refresh disabled")
	}

	if cfg.UptimeSchedule != "" && cfg.UptimeSchedule != "off" {
		a.uptime = scheduler.NewUptimeSweeper(a.controller, loggerClient, cfg.UptimeSchedule)
	} else {
		loggerClient.Info("uptime sweep disabled")
	}

	a.gc = scheduler.NewOrphanCollector(a.controller, loggerClient, cfg.GCInterval)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:         loggerClient,
		StartTime:      time.Now(),
		Version:        version.Version,
		Commit:         version.Commit,
		BuildDate:      version.BuildDate,
		GoVersion:      version.GoVersion,
		TimeNow:        time.Now,
		AllowedHosts:   cfg.AllowedHosts,
		AllowedCIDRS:   cfg.AllowedCIDRS,
		TrustProxy:     cfg.TrustProxy,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
		JWTSecret:      cfg.JWTSecret,
		RateBurst:      cfg.RateBurst,
		RatePerMin:     cfg.RatePerMin,
		Controller:     a.controller,
		Expander:       expansion.New(lookup),
		Index:          idx,
		Store:          st,
		StoreBackend:   cfg.StoreBackend,
		IndexBackend:   cfg.IndexBackend,
		Metrics:        m,
		ReloadTrigger:  reloadTrigger,
	}

	a.server = httpserver.New(cfg, loggerClient, d)

	return a, nil
}

func (a *App) openStore() (store.Store, error) {
	if a.cfg.StoreBackend == config.StoreMemory {
		a.logger.Warn("using in-memory store, entries are lost on restart")
		return memory.New(), nil
	}

	// Fail fast if Redis never answers
	client, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           a.cfg.RedisAddr,
		User:           a.cfg.RedisUser,
		Password:       a.cfg.RedisPassword,
		RedisDB:        a.cfg.RedisDB,
		DialTimeout:    a.cfg.RedisDT,
		ReadTimeout:    a.cfg.RedisRT,
		WriteTimeout:   a.cfg.RedisWT,
		PoolSize:       a.cfg.RedisPoolSize,
		ConnectTimeout: a.cfg.RedisConnectTimeout,
		RetryInterval:  a.cfg.RedisRetryInterval,
		MaxWait:        a.cfg.RedisMaxWait,
		PingTimeout:    a.cfg.RedisPingTimeout,
		WarnThreshold:  a.cfg.RedisWarnThreshold,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redisClient = client
	return redisstore.NewStore(client), nil
}

func (a *App) openIndex() (search.Index, error) {
	if a.cfg.IndexBackend == config.IndexElastic {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		idx, err := elastic.Open(ctx, elastic.Config{
			Addresses: a.cfg.ElasticAddresses,
			Username:  a.cfg.ElasticUsername,
			Password:  a.cfg.ElasticPassword,
			Index:     a.cfg.ElasticIndex,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open elasticsearch index: %w", err)
		}
		a.logger.Info("elasticsearch index ready", logger.String("index", a.cfg.ElasticIndex))
		return idx, nil
	}

	idx, err := bleveindex.Open(a.cfg.BlevePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open bleve index: %w", err)
	}
	if a.cfg.BlevePath == "" {
		a.logger.Info("bleve index ready (in-memory)")
	} else {
		a.logger.Info("bleve index ready", logger.String("path", a.cfg.BlevePath))
	}
	return idx, nil
}

func (a *App) newNotifier() (notify.Notifier, error) {
	if a.cfg.WebhooksFile == "" {
		a.logger.Info("no webhooks file configured, notifications disabled")
		return notify.Nop{}, nil
	}
	ncfg, err := notify.LoadConfig(a.cfg.WebhooksFile)
	if err != nil {
		return nil, err
	}
	ncfg.Debug = a.cfg.Debug
	a.logger.Info("notifications configured",
		logger.Int("targets", len(ncfg.Targets)),
		logger.Bool("debug", ncfg.Debug))
	return notify.NewWebhook(ncfg, nil, a.logger), nil
}

func (a *App) newTaxonomy() (taxonomy.Lookup, error) {
	switch {
	case a.cfg.TaxonomyURL != "":
		a.logger.Info("using remote taxonomy", logger.String("url", a.cfg.TaxonomyURL))
		client := &http.Client{Timeout: a.cfg.FetchTimeout}
		return taxonomy.NewHTTPLookup(a.cfg.TaxonomyURL, client, a.cfg.TaxonomyCacheTTL), nil
	case a.cfg.TaxonomyFile != "":
		a.logger.Info("using taxonomy file", logger.String("file", a.cfg.TaxonomyFile))
		lookup, err := taxonomy.LoadStatic(a.cfg.TaxonomyFile)
		if err != nil {
			return nil, err
		}
		return lookup, nil
	default:
		return taxonomy.Default(), nil
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting API registry v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("apiregistry %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.syncer.Sync(ctx); err != nil {
		a.logger.Warn("failed to sync relation index on startup, searches may be incomplete",
			logger.Error(err))
	}

	if a.refresher != nil {
		if err := a.refresher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start refresher: %w", err)
		}
		a.logger.Info("refresher started",
			logger.Duration("interval", a.cfg.RefreshInterval))
	}

	if a.uptime != nil {
		if err := a.uptime.Start(ctx); err != nil {
			return fmt.Errorf("failed to start uptime sweeper: %w", err)
		}
	}

	// Start garbage collector
	if err := a.gc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start garbage collector: %w", err)
	}
	a.logger.Info("garbage collector started",
		logger.Duration("interval", a.cfg.GCInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.refresher != nil {
		a.refresher.Stop()
	}
	if a.uptime != nil {
		a.uptime.Stop()
	}
	a.gc.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Let in-flight notifications finish
	a.controller.Wait()

	a.closeAll()

	if runErr == nil {
		a.logger.Info("✅ API registry stopped cleanly")
	}
	return runErr
}

func (a *App) closeAll() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warnf("failed to close index: %v", err)
		}
	}
	a.closeRedis()
	_ = a.logger.Sync()
}

func (a *App) closeRedis() {
	if a.redisClient == nil {
		return
	}
	if err := a.redisClient.Close(); err != nil {
		a.logger.Warnf("failed to close redis: %v", err)
	} else {
		a.logger.Info("✅ Redis closed cleanly")
	}
}
