package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"vr180/internal/config"
)

// ProbeJSON is the ffprobe payload emitted by the default stub: one 1280x720
// video stream and a 12.6 second container.
const ProbeJSON = `{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1280,"height":720}],"format":{"duration":"12.6","size":"1000"}}`

// FFmpegSuccessScript writes a small file at the last argument and exits 0.
const FFmpegSuccessScript = "for last; do :; done\necho rendered > \"$last\"\nexit 0"

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// short stage timings and a fast heartbeat. Directories are created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.WorkDir = filepath.Join(base, "work")
	cfgVal.Paths.UploadDir = filepath.Join(base, "uploads")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Pipeline.DepthAnalysisMS = 1
	cfgVal.Pipeline.QualityEnhancementMS = 1
	cfgVal.Pipeline.HeartbeatIntervalMS = 5
	cfgVal.Pipeline.HeartbeatStep = 25
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithStubbedBinaries installs an ffmpeg stub that succeeds and an ffprobe stub
// that prints ProbeJSON.
func WithStubbedBinaries() ConfigOption {
	return func(b *configBuilder) {
		WithFFmpegScript(FFmpegSuccessScript)(b)
		WithFFprobeOutput(ProbeJSON, 0)(b)
	}
}

// WithFFmpegScript installs an ffmpeg stub whose body is script.
func WithFFmpegScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Tools.FFmpegBinary = writeStub(b, "ffmpeg", script)
	}
}

// WithFFprobeOutput installs an ffprobe stub that prints payload and exits
// with code.
func WithFFprobeOutput(payload string, code int) ConfigOption {
	return func(b *configBuilder) {
		dataPath := filepath.Join(b.baseDir, "bin", "ffprobe.json")
		if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		if err := os.WriteFile(dataPath, []byte(payload), 0o644); err != nil {
			b.t.Fatalf("write ffprobe payload: %v", err)
		}
		script := "cat '" + dataPath + "'\nexit " + strconv.Itoa(code)
		b.cfg.Tools.FFprobeBinary = writeStub(b, "ffprobe", script)
	}
}

// WithSQLiteStore selects the sqlite backend inside the test's temp dir.
func WithSQLiteStore() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Store.Backend = config.StoreBackendSQLite
		b.cfg.Store.SQLitePath = filepath.Join(b.baseDir, "logs", "jobs.db")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkDir)
}

func writeStub(b *configBuilder, name, body string) string {
	binDir := filepath.Join(b.baseDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		b.t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(binDir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		b.t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}
