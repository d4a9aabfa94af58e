package stage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/media/ffmpeg"
	"vr180/internal/services"
	"vr180/internal/stage"
)

type progressLog struct {
	mu     sync.Mutex
	values []int
}

func (p *progressLog) report(_ context.Context, percent int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values = append(p.values, percent)
	return nil
}

func (p *progressLog) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.values)
}

func writeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestHeartbeatStepsAndCaps(t *testing.T) {
	var log progressLog
	hb := stage.Heartbeat{Interval: 5 * time.Millisecond, Step: 40}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.StartLoop(ctx, &wg, log.report, nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if values := log.snapshot(); len(values) > 0 && values[len(values)-1] == 100 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)
	cancel()
	wg.Wait()

	if got := log.snapshot(); !slices.Equal(got, []int{40, 80, 100}) {
		t.Fatalf("unexpected progress sequence %v", got)
	}
}

func TestHeartbeatStopsOnCancel(t *testing.T) {
	var log progressLog
	hb := stage.Heartbeat{Interval: time.Hour, Step: 5}
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.StartLoop(ctx, &wg, log.report, nil)
	cancel()
	wg.Wait()
	if len(log.snapshot()) != 0 {
		t.Fatalf("expected no reports, got %v", log.snapshot())
	}
}

func TestWaitHonoursDurationAndContext(t *testing.T) {
	wait := stage.NewWait(jobs.StageDepthAnalysis, 20*time.Millisecond)
	start := time.Now()
	if _, err := wait.Execute(context.Background(), stage.Request{}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("wait returned after %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := stage.NewWait(jobs.StageQualityEnhancement, time.Hour).Execute(ctx, stage.Request{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTranscodeWritesOutputAndJoinsHeartbeat(t *testing.T) {
	binary := writeFFmpeg(t, "for last; do :; done\nsleep 0.2\necho rendered > \"$last\"\nexit 0")
	workDir := filepath.Join(t.TempDir(), "work")
	var log progressLog
	handler := &stage.Transcode{
		Name:      jobs.StageStereoscopicGeneration,
		Binary:    binary,
		WorkDir:   workDir,
		Suffix:    stage.VRSuffix,
		Args:      ffmpeg.StereoscopicArgs,
		Heartbeat: stage.Heartbeat{Interval: 10 * time.Millisecond, Step: 5},
	}

	result, err := handler.Execute(context.Background(), stage.Request{
		Job:    &jobs.Job{ID: "job-1"},
		Input:  "/uploads/clip.mp4",
		Report: log.report,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	want := filepath.Join(workDir, "job-1_vr180.mp4")
	if result.OutputPath != want {
		t.Fatalf("expected output %q, got %q", want, result.OutputPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected output file: %v", err)
	}

	reported := log.snapshot()
	if len(reported) == 0 {
		t.Fatal("expected heartbeat progress while ffmpeg ran")
	}
	for i, value := range reported {
		if value > 100 || (i > 0 && value < reported[i-1]) {
			t.Fatalf("progress must rise monotonically to at most 100: %v", reported)
		}
	}
	time.Sleep(40 * time.Millisecond)
	if after := log.snapshot(); len(after) != len(reported) {
		t.Fatalf("heartbeat kept reporting after exit: %v then %v", reported, after)
	}
}

func TestTranscodeFailure(t *testing.T) {
	binary := writeFFmpeg(t, "echo 'Conversion failed!' >&2\nexit 1")
	handler := &stage.Transcode{
		Name:    jobs.StageFinalRendering,
		Binary:  binary,
		WorkDir: t.TempDir(),
		Suffix:  stage.MobileSuffix,
		Args:    ffmpeg.MobileArgs,
	}
	_, err := handler.Execute(context.Background(), stage.Request{Job: &jobs.Job{ID: "job-2"}, Input: "/work/job-2_vr180.mp4"})
	var transcodeErr *ffmpeg.TranscodeError
	if !errors.As(err, &transcodeErr) || transcodeErr.ExitCode != 1 {
		t.Fatalf("expected TranscodeError with exit 1, got %v", err)
	}
}

func TestTranscodeRejectsMissingInput(t *testing.T) {
	handler := &stage.Transcode{Name: jobs.StageFinalRendering, WorkDir: t.TempDir(), Args: ffmpeg.MobileArgs}
	_, err := handler.Execute(context.Background(), stage.Request{Job: &jobs.Job{ID: "job-3"}})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegistryCoversEveryStage(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFmpegBinary = filepath.Join(t.TempDir(), "missing-ffmpeg")
	registry := stage.NewRegistry(&cfg, nil)
	for _, name := range jobs.AllStageNames() {
		if registry[name] == nil {
			t.Fatalf("missing handler for %s", name)
		}
	}
	health := registry.HealthCheck(context.Background())
	if len(health) != 4 {
		t.Fatalf("expected 4 health records, got %d", len(health))
	}
	if stage.AllReady(health) {
		t.Fatal("expected missing ffmpeg to make the registry unhealthy")
	}
	if !health[0].Ready || health[1].Ready {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestLabel(t *testing.T) {
	tests := map[jobs.StageName]string{
		jobs.StageDepthAnalysis:          "Depth Analysis",
		jobs.StageStereoscopicGeneration: "Stereoscopic Generation",
		jobs.StageFinalRendering:         "Final Rendering",
	}
	for name, want := range tests {
		if got := stage.Label(name); got != want {
			t.Fatalf("Label(%s) = %q, want %q", name, got, want)
		}
	}
}
