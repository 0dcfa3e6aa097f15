package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8084" {
		t.Fatalf("expected default listen addr, got %q", cfg.ListenAddr)
	}
}

func TestLoadFileWithEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_HOST", "db.internal")
	path := writeConfig(t, `
listen_addr: ":9000"
database_url: "postgres://svc@${TEST_DB_HOST}:5432/approvals"
policy_seed_path: "/etc/approvals/policies.yaml"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("listen addr: %q", cfg.ListenAddr)
	}
	if cfg.DatabaseURL != "postgres://svc@db.internal:5432/approvals" {
		t.Fatalf("database url not expanded: %q", cfg.DatabaseURL)
	}
	if cfg.PolicySeedPath != "/etc/approvals/policies.yaml" {
		t.Fatalf("seed path: %q", cfg.PolicySeedPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
redis_url: "redis://file:6379"
`)
	t.Setenv("SERVICE_PORT", "7070")
	t.Setenv("REDIS_URL", "redis://env:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":7070" {
		t.Fatalf("env port should win: %q", cfg.ListenAddr)
	}
	if cfg.RedisURL != "redis://env:6379" {
		t.Fatalf("env redis should win: %q", cfg.RedisURL)
	}
}

func TestWebhookSecretRequired(t *testing.T) {
	t.Setenv("WEBHOOK_URL", "https://hooks.example.com/approvals")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when webhook url set without secret")
	}
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	if _, err := Load(""); err != nil {
		t.Fatalf("load with secret: %v", err)
	}
}
