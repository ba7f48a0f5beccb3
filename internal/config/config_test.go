package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Parse(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.RateLimit.UserCapacity != 10 || cfg.RateLimit.UserWindowSeconds != 12 {
		t.Fatalf("unexpected user bucket defaults: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.ContentCapacity != 15 || cfg.RateLimit.ContentWindowSeconds != 17 {
		t.Fatalf("unexpected content bucket defaults: %+v", cfg.RateLimit)
	}
	if cfg.Spam.FlushDelaySeconds != 300 {
		t.Fatalf("expected 300s flush delay, got %d", cfg.Spam.FlushDelaySeconds)
	}
	if cfg.Actions.DefaultAction != "none" {
		t.Fatalf("expected default action none, got %q", cfg.Actions.DefaultAction)
	}
}

func TestParseFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("log_level: debug\nstorage:\n  driver: REDIS\n  redis_url: redis://localhost:6379/0\nactions:\n  default_action: Kick\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CACHE_SIZE", "128")
	t.Setenv("EXPORT_DRIVER", "bogus")
	t.Setenv("AUDIT_RETENTION_DAYS", "7")

	cfg, err := Parse(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Storage.Driver != "redis" {
		t.Fatalf("expected redis driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Actions.DefaultAction != "kick" {
		t.Fatalf("expected kick, got %q", cfg.Actions.DefaultAction)
	}
	if cfg.Cache.Size != 128 {
		t.Fatalf("expected cache size 128, got %d", cfg.Cache.Size)
	}
	if cfg.Export.Driver != "file" {
		t.Fatalf("expected file export fallback, got %q", cfg.Export.Driver)
	}
	if cfg.Audit.RetentionDays != 7 {
		t.Fatalf("expected 7 day retention, got %d", cfg.Audit.RetentionDays)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected missing token error")
	}
}
