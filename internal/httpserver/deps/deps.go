package deps

import (
	"time"

	"github.com/MrSnakeDoc/apiregistry/internal/expansion"
	"github.com/MrSnakeDoc/apiregistry/internal/logger"
	"github.com/MrSnakeDoc/apiregistry/internal/metrics"
	"github.com/MrSnakeDoc/apiregistry/internal/registry"
	"github.com/MrSnakeDoc/apiregistry/internal/search"
	"github.com/MrSnakeDoc/apiregistry/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time     // for testing, defaults to time.Now
	AllowedHosts   []string             // Host headers allowed to access admin endpoints
	AllowedCIDRS   []string             // IPs allowed to access readyz/infra/reload/metrics
	TrustProxy     bool                 // true if running behind a trusted reverse proxy (e.g., cloudflared)
	CORSOrigins    []string             // origins allowed by CORS, empty = any
	RequestTimeout time.Duration        // per-request timeout, must cover one document download
	JWTSecret      string               // HMAC secret for bearer tokens
	RateBurst      int                  // per-IP burst on write endpoints (0 disables limiting)
	RatePerMin     int                  // per-IP refill rate on write endpoints
	Controller     *registry.Controller // lifecycle operations
	Expander       *expansion.Service   // metakg query expansion
	Index          search.Index         // relation index
	Store          store.Store          // entry store, used for health checks
	StoreBackend   string               // "redis" or "memory"
	IndexBackend   string               // "bleve" or "elastic"
	Metrics        *metrics.Metrics     // nil disables /metrics
	ReloadTrigger  chan struct{}        // Channel to trigger a manual refresh of every entry
}
