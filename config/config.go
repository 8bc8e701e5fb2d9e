// Package config loads queuecore's runtime configuration from the
// environment using github.com/caarlos0/env/v11 struct tags.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full set of environment-driven settings for a queuecore
// deployment. Every field has a workable default so a bare environment
// still produces a runnable single-process configuration.
type Config struct {
	LogLevel  string `env:"QUEUECORE_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"QUEUECORE_LOG_FORMAT" envDefault:"json"`

	DatabaseDsn string `env:"QUEUECORE_DATABASE_DSN" envDefault:"file:queuecore.db?cache=shared"`
	RedisUrl    string `env:"QUEUECORE_REDIS_URL" envDefault:""`

	DefaultVisibilityTimeout time.Duration `env:"QUEUECORE_DEFAULT_VISIBILITY_TIMEOUT" envDefault:"30s"`
	DefaultMaxAttempts       uint32        `env:"QUEUECORE_DEFAULT_MAX_ATTEMPTS" envDefault:"5"`
	ReclaimInterval          time.Duration `env:"QUEUECORE_RECLAIM_INTERVAL" envDefault:"10s"`

	WorkerConcurrency  int           `env:"QUEUECORE_WORKER_CONCURRENCY" envDefault:"8"`
	WorkerBatchSize    int           `env:"QUEUECORE_WORKER_BATCH_SIZE" envDefault:"1"`
	WorkerPollInterval time.Duration `env:"QUEUECORE_WORKER_POLL_INTERVAL" envDefault:"250ms"`
	ShutdownTimeout    time.Duration `env:"QUEUECORE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	SchedulerCheckInterval time.Duration `env:"QUEUECORE_SCHEDULER_CHECK_INTERVAL" envDefault:"1s"`

	BreakerFailureThreshold int           `env:"QUEUECORE_BREAKER_FAILURE_THRESHOLD" envDefault:"5"`
	BreakerSuccessThreshold int           `env:"QUEUECORE_BREAKER_SUCCESS_THRESHOLD" envDefault:"2"`
	BreakerOpenTimeout      time.Duration `env:"QUEUECORE_BREAKER_OPEN_TIMEOUT" envDefault:"30s"`

	RateLimitBackend        string `env:"QUEUECORE_RATE_LIMIT_BACKEND" envDefault:"memory"`
	RateLimitDefaultMax     int64  `env:"QUEUECORE_RATE_LIMIT_DEFAULT_MAX_REQUESTS" envDefault:"100"`
	RateLimitDefaultWindow  time.Duration `env:"QUEUECORE_RATE_LIMIT_DEFAULT_WINDOW" envDefault:"1m"`
	RateLimitDefaultSliding bool   `env:"QUEUECORE_RATE_LIMIT_DEFAULT_SLIDING" envDefault:"false"`

	CacheBackend     string        `env:"QUEUECORE_CACHE_BACKEND" envDefault:"memory"`
	CacheMaxMemoryMb int           `env:"QUEUECORE_CACHE_MAX_MEMORY_MB" envDefault:"256"`
	CacheDefaultTtl  time.Duration `env:"QUEUECORE_CACHE_DEFAULT_TTL" envDefault:"5m"`

	EncryptionEnabled      bool          `env:"QUEUECORE_ENCRYPTION_ENABLED" envDefault:"false"`
	EncryptionAlgorithm    string        `env:"QUEUECORE_ENCRYPTION_ALGORITHM" envDefault:"Aes256Gcm"`
	KeyRotationInterval    time.Duration `env:"QUEUECORE_KEY_ROTATION_INTERVAL" envDefault:"720h"`
	EncryptionActiveKeyId  string        `env:"QUEUECORE_ENCRYPTION_ACTIVE_KEY_ID" envDefault:""`

	TenantEnforceQuotas bool `env:"QUEUECORE_TENANT_ENFORCE_QUOTAS" envDefault:"true"`

	AuditBufferSize    int           `env:"QUEUECORE_AUDIT_BUFFER_SIZE" envDefault:"10000"`
	AuditMinSeverity   string        `env:"QUEUECORE_AUDIT_MIN_SEVERITY" envDefault:"Low"`
	AuditFlushInterval time.Duration `env:"QUEUECORE_AUDIT_FLUSH_INTERVAL" envDefault:"2s"`

	MetricsBackend string `env:"QUEUECORE_METRICS_BACKEND" envDefault:"noop"`
}

// Load parses environment variables into a Config, applying defaults for
// anything unset.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
