package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.App.IsDev() {
		t.Fatalf("default env should be dev, got %q", cfg.App.Env)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Fatalf("unexpected default timeout %s", cfg.API.Timeout)
	}
	if !cfg.API.TunnelBypass {
		t.Fatal("tunnel bypass should default on")
	}
	if cfg.API.RequestLogSize != 50 {
		t.Fatalf("unexpected request log size %d", cfg.API.RequestLogSize)
	}
	if cfg.Storage.Path != "kirana.db" {
		t.Fatalf("unexpected storage path %q", cfg.Storage.Path)
	}
	if cfg.Catalog.CacheTTL != 5*time.Minute {
		t.Fatalf("unexpected catalog ttl %s", cfg.Catalog.CacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KIRANA_API_BASE_URL", "http://localhost:9090")
	t.Setenv("KIRANA_API_TIMEOUT", "3s")
	t.Setenv("KIRANA_APP_ENV", "prod")
	t.Setenv("KIRANA_CATALOG_PRODUCT_LIMIT", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "http://localhost:9090" {
		t.Fatalf("unexpected base url %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.API.Timeout)
	}
	if !cfg.App.IsProd() {
		t.Fatalf("expected prod env, got %q", cfg.App.Env)
	}
	if cfg.Catalog.ProductLimit != 250 {
		t.Fatalf("unexpected product limit %d", cfg.Catalog.ProductLimit)
	}
}

func TestLoadRejectsRelativeBaseURL(t *testing.T) {
	t.Setenv("KIRANA_API_BASE_URL", "/just/a/path")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for relative base url")
	}
}

func TestLoadRejectsZeroTimeout(t *testing.T) {
	t.Setenv("KIRANA_API_TIMEOUT", "0s")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}
