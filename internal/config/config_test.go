package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.AI.ModelFallback[0].Provider != "gemini" {
		t.Errorf("first candidate = %+v, want gemini", cfg.AI.ModelFallback[0])
	}
}

func TestLoad_YAMLAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
http:
  port: "9090"
storage:
  backend: sqlite
  sqlite_path: /tmp/test.db
ai:
  model_fallback:
    - provider: anthropic
      model: claude-3-5-haiku-latest
    - provider: gemini
      model: gemini-2.0-flash
admin_ids:
  - admin-1
`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("PORT", "7070")
	t.Setenv("DEDUP_TTL_SECONDS", "30")
	t.Setenv("GEMINI_API_KEY", "key-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != "7070" {
		t.Errorf("Port = %q, want env override 7070", cfg.HTTP.Port)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Storage.Backend)
	}
	if cfg.DedupTTL() != 30*time.Second {
		t.Errorf("TTL = %v, want 30s", cfg.DedupTTL())
	}
	if len(cfg.AI.ModelFallback) != 2 || cfg.AI.ModelFallback[0].Provider != "anthropic" {
		t.Errorf("ModelFallback = %+v, want configured order preserved", cfg.AI.ModelFallback)
	}
	if cfg.GeminiAPIKey != "key-123" {
		t.Errorf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
	if len(cfg.AdminIDs) != 1 || cfg.AdminIDs[0] != "admin-1" {
		t.Errorf("AdminIDs = %v", cfg.AdminIDs)
	}
}

func TestLoad_RejectsEmptyFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  model_fallback: []\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty model_fallback")
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: redis\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
