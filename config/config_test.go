package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
database:
  driver: sqlite
  path: test.db
jwt:
  secret: s3cret
archive:
  max_total_bytes: 1024
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	previous := AppConfig
	defer func() { AppConfig = previous }()

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if AppConfig != cfg {
		t.Fatalf("expected AppConfig to point at loaded config")
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Archive.Enabled {
		t.Fatalf("expected archive packaging enabled by default")
	}
	if cfg.Archive.MaxTotalBytes != 1024 {
		t.Fatalf("expected explicit archive ceiling to survive defaults, got %d", cfg.Archive.MaxTotalBytes)
	}
	if cfg.Share.GrantSecret != "s3cret" {
		t.Fatalf("expected grant secret to fall back to jwt secret, got %q", cfg.Share.GrantSecret)
	}
	if cfg.Share.TokenLength != 32 {
		t.Fatalf("expected token length 32, got %d", cfg.Share.TokenLength)
	}
	if cfg.Hierarchy.MaxDepth != 20 || cfg.Hierarchy.DisambiguateLimit != 10000 {
		t.Fatalf("unexpected hierarchy defaults: %+v", cfg.Hierarchy)
	}
	if cfg.Webhook.MaxAttempts != 3 || cfg.Webhook.RetryDelayMs != 2000 {
		t.Fatalf("unexpected webhook defaults: %+v", cfg.Webhook)
	}
}

func TestLoadConfigArchiveCanBeDisabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("archive:\n  enabled: false\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	previous := AppConfig
	defer func() { AppConfig = previous }()

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Archive.Enabled {
		t.Fatalf("expected archive packaging to be disabled")
	}
}

func TestDefaultDoesNotTouchGlobal(t *testing.T) {
	previous := AppConfig
	AppConfig = nil
	defer func() { AppConfig = previous }()

	cfg := Default()
	if AppConfig != nil {
		t.Fatalf("expected Default to leave AppConfig untouched")
	}
	if cfg.Share.TokenLength < 32 {
		t.Fatalf("token length below minimum: %d", cfg.Share.TokenLength)
	}
	if cfg.Storage.TempDir != filepath.Join("./data", "temp") {
		t.Fatalf("unexpected temp dir %q", cfg.Storage.TempDir)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
