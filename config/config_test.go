package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %q", cfg.LogLevel)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Errorf("expected default worker concurrency 8, got %d", cfg.WorkerConcurrency)
	}
	if cfg.DefaultVisibilityTimeout != 30*time.Second {
		t.Errorf("expected default visibility timeout 30s, got %v", cfg.DefaultVisibilityTimeout)
	}
	if cfg.MetricsBackend != "noop" {
		t.Errorf("expected default metrics backend noop, got %q", cfg.MetricsBackend)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("QUEUECORE_WORKER_CONCURRENCY", "32")
	t.Setenv("QUEUECORE_CACHE_BACKEND", "redis")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WorkerConcurrency != 32 {
		t.Errorf("expected overridden worker concurrency 32, got %d", cfg.WorkerConcurrency)
	}
	if cfg.CacheBackend != "redis" {
		t.Errorf("expected overridden cache backend redis, got %q", cfg.CacheBackend)
	}
}
