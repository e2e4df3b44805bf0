package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("GRC_DATABASE_URL", "postgres://localhost/grc")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.ConflictPolicy != "exclusion_wins" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://localhost/grc" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_EnvCoversKeysWithoutDefaults(t *testing.T) {
	t.Setenv("GRC_DATABASE_URL", "postgres://localhost/grc")
	t.Setenv("GRC_ALLOWLIST_PATH", "/etc/grc/allowlist.yaml")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.AllowlistPath != "/etc/grc/allowlist.yaml" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grc.yaml")
	body := "http_addr: ':9090'\ndatabase_url: postgres://db/grc\nconflict_policy: inclusion_wins\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.ConflictPolicy != "inclusion_wins" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestLoad_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("GRC_DATABASE_URL", "")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoad_RejectsUnknownConflictPolicy(t *testing.T) {
	t.Setenv("GRC_DATABASE_URL", "postgres://localhost/grc")
	t.Setenv("GRC_CONFLICT_POLICY", "coin_flip")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error")
	}
}
