package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"vr180/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("VR180_API_BIND", "")
	t.Setenv("VR180_NTFY_TOPIC", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "vr180", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	wantUploads := filepath.Join(tempHome, ".local", "share", "vr180", "uploads")
	if cfg.Paths.UploadDir != wantUploads {
		t.Fatalf("unexpected upload dir: got %q want %q", cfg.Paths.UploadDir, wantUploads)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Store.Backend != config.StoreBackendMemory {
		t.Fatalf("expected memory store by default, got %q", cfg.Store.Backend)
	}
	if cfg.DepthAnalysisDuration().Milliseconds() != 1000 {
		t.Fatalf("unexpected depth analysis duration: %s", cfg.DepthAnalysisDuration())
	}
	if cfg.QualityEnhancementDuration().Milliseconds() != 1500 {
		t.Fatalf("unexpected quality enhancement duration: %s", cfg.QualityEnhancementDuration())
	}
	if cfg.HeartbeatInterval().Milliseconds() != 1000 || cfg.Pipeline.HeartbeatStep != 5 {
		t.Fatalf("unexpected heartbeat settings: %s step %d", cfg.HeartbeatInterval(), cfg.Pipeline.HeartbeatStep)
	}
	if cfg.Upload.MaxBytes != 500*1024*1024 {
		t.Fatalf("unexpected upload cap: %d", cfg.Upload.MaxBytes)
	}
	if cfg.Notifications.NtfyTopic != "" {
		t.Fatalf("expected empty ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
	if got := cfg.SQLitePath(); got != filepath.Join(cfg.Paths.LogDir, "jobs.db") {
		t.Fatalf("unexpected sqlite path: %q", got)
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("VR180_API_BIND", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	payload := struct {
		Paths struct {
			WorkDir string `toml:"work_dir"`
			LogDir  string `toml:"log_dir"`
		} `toml:"paths"`
		Pipeline struct {
			DepthAnalysisMS int `toml:"depth_analysis_ms"`
		} `toml:"pipeline"`
		Upload struct {
			AllowedExtensions []string `toml:"allowed_extensions"`
		} `toml:"upload"`
		Store struct {
			Backend string `toml:"backend"`
		} `toml:"store"`
	}{}
	payload.Paths.WorkDir = "~/renders"
	payload.Paths.LogDir = "~/logs"
	payload.Pipeline.DepthAnalysisMS = 10
	payload.Upload.AllowedExtensions = []string{"MP4", ".mkv", ".mp4"}
	payload.Store.Backend = "SQLite"

	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "renders") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Pipeline.DepthAnalysisMS != 10 {
		t.Fatalf("unexpected depth analysis ms: %d", cfg.Pipeline.DepthAnalysisMS)
	}
	if cfg.Pipeline.QualityEnhancementMS != 1500 {
		t.Fatalf("expected default quality enhancement ms, got %d", cfg.Pipeline.QualityEnhancementMS)
	}
	if got := strings.Join(cfg.Upload.AllowedExtensions, ","); got != ".mp4,.mkv" {
		t.Fatalf("unexpected extensions: %q", got)
	}
	if !cfg.IsAllowedExtension(".MKV") {
		t.Fatal("expected .MKV to be accepted")
	}
	if cfg.IsAllowedExtension(".avi") {
		t.Fatal("expected .avi to be rejected by custom whitelist")
	}
	if cfg.Store.Backend != config.StoreBackendSQLite {
		t.Fatalf("unexpected backend: %q", cfg.Store.Backend)
	}
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VR180_API_BIND", "0.0.0.0:9000")
	t.Setenv("VR180_NTFY_TOPIC", "https://ntfy.example/vr180")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIBind != "0.0.0.0:9000" {
		t.Fatalf("expected env api bind, got %q", cfg.Paths.APIBind)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.example/vr180" {
		t.Fatalf("expected env ntfy topic, got %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"heartbeat interval", func(c *config.Config) { c.Pipeline.HeartbeatIntervalMS = 0 }, "pipeline.heartbeat_interval_ms"},
		{"heartbeat step", func(c *config.Config) { c.Pipeline.HeartbeatStep = 101 }, "pipeline.heartbeat_step"},
		{"negative wait", func(c *config.Config) { c.Pipeline.DepthAnalysisMS = -1 }, "pipeline.depth_analysis_ms"},
		{"upload cap", func(c *config.Config) { c.Upload.MaxBytes = 0 }, "upload.max_bytes"},
		{"backend", func(c *config.Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "bare-topic" }, "notifications.ntfy_topic"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error to mention %q, got %v", tc.want, err)
			}
		})
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.UploadDir = filepath.Join(base, "uploads")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkDir, cfg.Paths.UploadDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", dir)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("VR180_NTFY_TOPIC", "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	defaults := config.Default()
	if cfg.Pipeline != defaults.Pipeline {
		t.Fatalf("sample pipeline differs from defaults: %+v", cfg.Pipeline)
	}
	if cfg.Store.Backend != defaults.Store.Backend {
		t.Fatalf("sample backend differs from defaults: %q", cfg.Store.Backend)
	}

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(encoded), "heartbeat_step = 5") {
		t.Fatalf("encoded config missing heartbeat_step:\n%s", encoded)
	}
}
