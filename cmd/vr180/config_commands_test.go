package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vr180/internal/config"
)

func TestConfigInitWritesSample(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}

	if _, err := runCLI(t, "config", "init", "--path", target); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected refusal without --overwrite, got %v", err)
	}
	if _, err := runCLI(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	env.cfg.Store.Backend = config.StoreBackendSQLite
	configPath := writeTestConfig(t, env.cfg)

	out, err := runCLI(t, "--config", configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, `backend = 'sqlite'`)
	requireContains(t, out, env.cfg.Paths.WorkDir)
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := runCLI(t, "--config", env.configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Configuration valid")

	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("[pipeline]\nheartbeat_step = 500\n"), 0o644); err != nil {
		t.Fatalf("write bad config: %v", err)
	}
	if _, err := runCLI(t, "--config", bad, "config", "validate"); err == nil {
		t.Fatal("expected validation failure")
	}
}
