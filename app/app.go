// Package app assembles queuecore's singletons — persistence, cache,
// rate limiting, circuit breaking, encryption, tenant gating, audit, and
// the broker/worker pool/scheduler built on top of them — into a single
// CoreContext, created once at startup and passed by reference. There is
// no package-level mutable state anywhere in queuecore; every component
// that needs one of these singletons receives it through CoreContext.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"

	"github.com/vqmcore/queuecore/audit"
	"github.com/vqmcore/queuecore/breaker"
	"github.com/vqmcore/queuecore/broker"
	"github.com/vqmcore/queuecore/cache"
	"github.com/vqmcore/queuecore/clock"
	"github.com/vqmcore/queuecore/config"
	"github.com/vqmcore/queuecore/crypt"
	"github.com/vqmcore/queuecore/metrics"
	"github.com/vqmcore/queuecore/ports"
	"github.com/vqmcore/queuecore/ratelimit"
	"github.com/vqmcore/queuecore/retry"
	"github.com/vqmcore/queuecore/scheduler"
	sqlstore "github.com/vqmcore/queuecore/store/sql"
	"github.com/vqmcore/queuecore/tenant"
	"github.com/vqmcore/queuecore/worker"
)

// noopUsageProvider reports zero usage for every tenant, so quota
// enforcement never blocks an enqueue until a real UsageProvider
// (reading from the host application's own tenant records) is wired in.
type noopUsageProvider struct{}

func (noopUsageProvider) Usage(context.Context, uuid.UUID) (tenant.Usage, error) {
	return tenant.Usage{}, nil
}

// CoreContext holds every long-lived singleton a queuecore deployment
// needs, constructed once by New and handed out by reference. Nothing
// here is a package-level var; a process embedding queuecore is free to
// run more than one CoreContext (e.g. one per test).
type CoreContext struct {
	Config *config.Config
	Log    *slog.Logger

	DB    *bun.DB
	Store *sqlstore.Store

	Cache      cache.Cache
	RateLimit  ratelimit.Store
	Gate       *tenant.Gate
	Encryption *crypt.EncryptionService
	AuditRing  *audit.Ring

	Broker    *broker.Broker
	Reclaim   *broker.ReclaimLoop
	Workers   *worker.Pool
	Scheduler *scheduler.Scheduler

	breakers map[string]breaker.Breaker
}

// New wires a CoreContext from cfg. db, if non-nil, is used as the
// persistence backend instead of opening one from cfg.DatabaseDsn —
// callers that already manage a *sql.DB (tests, multi-tenant hosts)
// should pass it in directly.
func New(ctx context.Context, cfg *config.Config, db *sql.DB) (*CoreContext, error) {
	log := newLogger(cfg)

	bunDB, err := openBunDB(cfg, db)
	if err != nil {
		return nil, fmt.Errorf("app: opening database: %w", err)
	}
	if err := sqlstore.InitDB(ctx, bunDB); err != nil {
		return nil, fmt.Errorf("app: initializing schema: %w", err)
	}
	store := sqlstore.NewStore(bunDB)

	rateStore, err := newRateLimitStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: constructing rate limit store: %w", err)
	}
	c, err := newCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: constructing cache: %w", err)
	}

	gate := tenant.NewGate(noopUsageProvider{}, rateStore, cfg.TenantEnforceQuotas)

	var encryption *crypt.EncryptionService
	if cfg.EncryptionEnabled {
		encryption = crypt.NewEncryptionService(crypt.NewMemoryKeyStore(), crypt.NewLocalProvider())
	}

	auditRing := audit.NewRing(cfg.AuditBufferSize, parseSeverity(cfg.AuditMinSeverity))

	metricsSink, err := newMetricsSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("app: constructing metrics sink: %w", err)
	}

	defaultPolicy := retry.New(
		cfg.DefaultMaxAttempts,
		retry.ExponentialWithJitter{Base: time.Second, Cap: time.Minute, Multiplier: 2, Jitter: 0.2},
		nil, nil,
	)

	b := broker.New(broker.Config{
		Store:         store,
		Clock:         clock.System{},
		IdGen:         clock.UUIDGen{},
		Metrics:       metricsSink,
		Encryption:    encryption,
		Gate:          gate,
		Audit:         auditRing,
		DefaultPolicy: defaultPolicy,
	})

	reclaim := broker.NewReclaimLoop(store, cfg.ReclaimInterval, log)

	sched := scheduler.New(b, scheduler.Config{
		CheckInterval: cfg.SchedulerCheckInterval,
		Log:           log,
	})

	return &CoreContext{
		Config:     cfg,
		Log:        log,
		DB:         bunDB,
		Store:      store,
		Cache:      c,
		RateLimit:  rateStore,
		Gate:       gate,
		Encryption: encryption,
		AuditRing:  auditRing,
		Broker:     b,
		Reclaim:    reclaim,
		Scheduler:  sched,
		breakers:   make(map[string]breaker.Breaker),
	}, nil
}

// InitWorkers constructs the worker pool once the queues it should lease
// from are known — typically right after the caller finishes calling
// Broker.RegisterQueue for each queue it owns. Must be called before
// Start if the deployment processes any queues at all.
func (c *CoreContext) InitWorkers(queues []string) *worker.Pool {
	c.Workers = worker.New(c.Broker, worker.Config{
		Queues:            queues,
		Slots:             c.Config.WorkerConcurrency,
		LeasePollInterval: c.Config.WorkerPollInterval,
		ShutdownTimeout:   c.Config.ShutdownTimeout,
		Log:               c.Log,
	})
	return c.Workers
}

// Breaker returns the shared circuit breaker registered under name,
// constructing a default CountBased one on first use so every (queue,
// kind) handler gets isolated failure tracking without explicit setup.
func (c *CoreContext) Breaker(name string) breaker.Breaker {
	if b, ok := c.breakers[name]; ok {
		return b
	}
	b := breaker.NewCountBased(breaker.CountBasedConfig{
		FailureThreshold: c.Config.BreakerFailureThreshold,
		SuccessThreshold: c.Config.BreakerSuccessThreshold,
		OpenTimeout:      c.Config.BreakerOpenTimeout,
	})
	c.breakers[name] = b
	return b
}

// Start brings up the background loops: lease reclaim sweep, worker
// pool, and scheduler. RegisterQueue/RegisterHandler calls must happen
// before Start.
func (c *CoreContext) Start(ctx context.Context) error {
	if err := c.Reclaim.Start(ctx); err != nil {
		return fmt.Errorf("app: starting reclaim loop: %w", err)
	}
	if c.Workers != nil {
		if err := c.Workers.Start(ctx); err != nil {
			return fmt.Errorf("app: starting worker pool: %w", err)
		}
	}
	if err := c.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("app: starting scheduler: %w", err)
	}
	return nil
}

// Stop gracefully winds the background loops down in reverse dependency
// order, using cfg.ShutdownTimeout for each.
func (c *CoreContext) Stop() error {
	timeout := c.Config.ShutdownTimeout
	if err := c.Scheduler.Stop(timeout); err != nil {
		c.Log.Error("scheduler stop failed", "error", err)
	}
	if c.Workers != nil {
		if err := c.Workers.Stop(timeout); err != nil {
			c.Log.Error("worker pool stop failed", "error", err)
		}
	}
	if err := c.Reclaim.Stop(timeout); err != nil {
		c.Log.Error("reclaim loop stop failed", "error", err)
	}
	return c.DB.Close()
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func openBunDB(cfg *config.Config, existing *sql.DB) (*bun.DB, error) {
	sqldb := existing
	if sqldb == nil {
		db, err := sql.Open("sqlite", cfg.DatabaseDsn)
		if err != nil {
			return nil, err
		}
		sqldb = db
	}
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func newRateLimitStore(cfg *config.Config) (ratelimit.Store, error) {
	if cfg.RateLimitBackend == "redis" {
		opt, err := redis.ParseURL(cfg.RedisUrl)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisStore(redis.NewClient(opt)), nil
	}
	return ratelimit.NewMemoryStore(), nil
}

// newMetricsSink returns a metrics.PrometheusSink registered against the
// default registerer when enabled, or metrics.Noop otherwise. The label
// set covers every label any RecordEvent call site across broker/worker
// populates; PrometheusSink fills in whichever ones a given call omits.
func newMetricsSink(cfg *config.Config) (ports.Metrics, error) {
	if cfg.MetricsBackend != "prometheus" {
		return metrics.Noop{}, nil
	}
	return metrics.NewPrometheusSink(prometheus.DefaultRegisterer, []string{"queue", "worker", "error_code"}), nil
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.CacheBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisUrl)
		if err != nil {
			return nil, err
		}
		return cache.NewRedis(redis.NewClient(opt)), nil
	case "null":
		return cache.Null{}, nil
	default:
		return cache.NewMemory(cfg.CacheMaxMemoryMb), nil
	}
}

func parseSeverity(s string) audit.Severity {
	switch s {
	case "Medium", "medium":
		return audit.Medium
	case "High", "high":
		return audit.High
	case "Critical", "critical":
		return audit.Critical
	default:
		return audit.Low
	}
}
