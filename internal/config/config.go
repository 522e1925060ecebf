package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Backends accepted by REGISTRY_STORE and REGISTRY_INDEX.
const (
	StoreRedis   = "redis"
	StoreMemory  = "memory"
	IndexBleve   = "bleve"
	IndexElastic = "elastic"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout, must cover one document download

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	StoreBackend string // "redis" | "memory"
	IndexBackend string // "bleve" | "elastic"
	BlevePath    string // on-disk bleve index, empty = in-memory

	// Elasticsearch (IndexBackend == "elastic")
	ElasticAddresses []string
	ElasticUsername  string
	ElasticPassword  string
	ElasticIndex     string

	FetchTimeout  time.Duration // bound on every document download (default: 10s)
	FetchMaxBytes int64         // largest accepted document (default: 8MiB)

	JWTSecret     string        // HMAC secret for bearer tokens
	UIBaseURL     string        // prefix of entry links in notifications and relation hits
	WebhooksFile  string        // YAML list of notification targets, empty = no notifications
	NotifyTimeout time.Duration // bound on one notification fan-out
	Debug         bool          // true => notifications are skipped

	TaxonomyURL      string        // remote descendants service, takes precedence over TaxonomyFile
	TaxonomyFile     string        // YAML taxonomy, empty = built-in biolink subset
	TaxonomyCacheTTL time.Duration // cache lifetime of remote lookups

	RefreshInterval  time.Duration // interval between full refresh sweeps (default: 24h, 0 = disabled)
	UptimeSchedule   string        // cron spec of the uptime sweep (default: hourly)
	GCInterval       time.Duration // interval between orphan collections (default: 6h)
	SweepConcurrency int           // parallel fetches during sweeps

	// Redis (StoreBackend == "redis")
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict admin endpoints to specific Host headers
	AllowedCIDRS []string // optional, restrict admin endpoints to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins  []string // optional, empty = any origin
	RateBurst    int      // per-IP burst on write endpoints, 0 disables limiting
	RatePerMin   int      // per-IP refill rate on write endpoints
}

// LoadDotEnv loads ENV_FILE, or .env.local then .env, into the process environment.
// Variables already set win. Missing files are ignored.
func LoadDotEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("REGISTRY_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("REGISTRY_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("REGISTRY_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("REGISTRY_LOG_LEVEL", "info"),
		PrettyLog: mustBool("REGISTRY_PRETTY_LOG", true),

		// Backends
		StoreBackend: oneOf("REGISTRY_STORE", StoreRedis, StoreRedis, StoreMemory),
		IndexBackend: oneOf("REGISTRY_INDEX", IndexBleve, IndexBleve, IndexElastic),
		BlevePath:    getenv("REGISTRY_BLEVE_PATH", ""),

		ElasticUsername: getenv("REGISTRY_ELASTIC_USERNAME", ""),
		ElasticPassword: getenv("REGISTRY_ELASTIC_PASSWORD", ""),
		ElasticIndex:    getenv("REGISTRY_ELASTIC_INDEX", "apiregistry_metakg"),

		// Downloads
		FetchTimeout:  mustDuration("REGISTRY_FETCH_TIMEOUT", 10*time.Second),
		FetchMaxBytes: int64(getenvInt("REGISTRY_FETCH_MAX_BYTES", 8<<20)),

		// Users and notifications
		JWTSecret:     requireEnv("REGISTRY_JWT_SECRET"),
		UIBaseURL:     getenv("REGISTRY_UI_BASE_URL", "http://localhost:8080/ui"),
		WebhooksFile:  getenv("REGISTRY_WEBHOOKS_FILE", ""),
		NotifyTimeout: mustDuration("REGISTRY_NOTIFY_TIMEOUT", 15*time.Second),
		Debug:         mustBool("REGISTRY_DEBUG", false),

		// Taxonomy
		TaxonomyURL:      getenv("REGISTRY_TAXONOMY_URL", ""),
		TaxonomyFile:     getenv("REGISTRY_TAXONOMY_FILE", ""),
		TaxonomyCacheTTL: mustDuration("REGISTRY_TAXONOMY_CACHE_TTL", time.Hour),

		// Background jobs
		RefreshInterval:  mustDuration("REGISTRY_REFRESH_INTERVAL", 24*time.Hour),
		UptimeSchedule:   getenv("REGISTRY_UPTIME_SCHEDULE", "0 * * * *"),
		GCInterval:       mustDuration("REGISTRY_GC_INTERVAL", 6*time.Hour),
		SweepConcurrency: getenvInt("REGISTRY_SWEEP_CONCURRENCY", 4),

		// Access restrictions
		AllowedHosts: parseAllowedIPs(getenv("REGISTRY_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("REGISTRY_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("REGISTRY_TRUST_PROXY", true),
		CORSOrigins:  splitAndTrim(getenv("REGISTRY_CORS_ORIGINS", "")),
		RateBurst:    getenvInt("REGISTRY_RATE_BURST", 20),
		RatePerMin:   getenvInt("REGISTRY_RATE_PER_MIN", 60),
	}

	if cfg.StoreBackend == StoreRedis {
		cfg.RedisAddr = requireEnv("REGISTRY_REDIS_ADDR")
		cfg.RedisUser = getenv("REGISTRY_REDIS_USERNAME", "default")
		cfg.RedisPasswordRequired = mustBool("REGISTRY_REDIS_PASSWORD_REQUIRED", true)
		cfg.RedisPassword = getenv("REGISTRY_REDIS_PASSWORD", "")
		cfg.RedisDB = requireEnvInt("REGISTRY_REDIS_DB")
		cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
		cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
		cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
		cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
		cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
		cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
		cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
		cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
		cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: REGISTRY_REDIS_PASSWORD is required when REGISTRY_REDIS_PASSWORD_REQUIRED=true")
		}
	}

	if cfg.IndexBackend == IndexElastic {
		cfg.ElasticAddresses = requireEnvSlice("REGISTRY_ELASTIC_ADDRESSES")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.ElasticPassword = "***REDACTED***"
		cfgCopy.JWTSecret = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func requireEnvSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return splitAndTrim(v)
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

// oneOf reads key and panics unless the value is one of allowed.
func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: %s must be one of %v, got %q", key, allowed, v))
}
