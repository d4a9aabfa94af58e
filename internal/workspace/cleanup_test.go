package workspace_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/stage"
	"vr180/internal/testsupport"
	"vr180/internal/workspace"
)

func writeAged(t *testing.T, path string, age time.Duration) string {
	t.Helper()
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
	return path
}

func createJob(t *testing.T, store jobs.Store, cfg *config.Config, final jobs.Status) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	upload := writeAged(t, filepath.Join(cfg.Paths.UploadDir, uuid.NewString()+".mp4"), 2*time.Hour)
	job, err := store.CreateJob(ctx, jobs.NewJob{OriginalFilename: "clip.mp4", OriginalPath: upload, FileSize: 4})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if final == jobs.StatusUploaded {
		return job
	}
	if _, err := store.UpdateJob(ctx, job.ID, jobs.JobUpdate{Status: jobs.Ptr(jobs.StatusProcessing)}); err != nil {
		t.Fatalf("UpdateJob processing: %v", err)
	}
	patch := jobs.JobUpdate{Status: jobs.Ptr(final)}
	switch final {
	case jobs.StatusCompleted:
		vr := writeAged(t, stage.OutputPath(cfg.Paths.WorkDir, job.ID, stage.VRSuffix), 2*time.Hour)
		mobile := writeAged(t, stage.OutputPath(cfg.Paths.WorkDir, job.ID, stage.MobileSuffix), 2*time.Hour)
		patch.Progress = jobs.Ptr(100)
		patch.VRPath = &vr
		patch.MobileVRPath = &mobile
	case jobs.StatusFailed:
		patch.ErrorMessage = jobs.Ptr("render failed")
	}
	updated, err := store.UpdateJob(ctx, job.ID, patch)
	if err != nil {
		t.Fatalf("UpdateJob %s: %v", final, err)
	}
	return updated
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCleanOrphansRemovesOnlyUnreferencedDaemonFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	completed := createJob(t, store, cfg, jobs.StatusCompleted)
	failed := createJob(t, store, cfg, jobs.StatusFailed)
	waiting := createJob(t, store, cfg, jobs.StatusUploaded)

	partial := writeAged(t, stage.OutputPath(cfg.Paths.WorkDir, failed.ID, stage.MobileSuffix), 2*time.Hour)
	activeRender := writeAged(t, stage.OutputPath(cfg.Paths.WorkDir, waiting.ID, stage.VRSuffix), 2*time.Hour)
	orphanUpload := writeAged(t, filepath.Join(cfg.Paths.UploadDir, uuid.NewString()+".mov"), 2*time.Hour)
	orphanRender := writeAged(t, stage.OutputPath(cfg.Paths.WorkDir, uuid.NewString(), stage.VRSuffix), 2*time.Hour)
	freshUpload := writeAged(t, filepath.Join(cfg.Paths.UploadDir, uuid.NewString()+".mp4"), time.Minute)
	unrelated := writeAged(t, filepath.Join(cfg.Paths.WorkDir, "notes.txt"), 2*time.Hour)
	oddName := writeAged(t, filepath.Join(cfg.Paths.WorkDir, "holiday_vr180.mp4"), 2*time.Hour)

	result, err := workspace.CleanOrphans(context.Background(), cfg, store, time.Hour, logging.NewNop())
	if err != nil {
		t.Fatalf("CleanOrphans: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}

	want := []string{partial, orphanUpload, orphanRender}
	sort.Strings(want)
	got := append([]string(nil), result.Removed...)
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("removed %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("removed %v, want %v", got, want)
		}
	}

	for _, kept := range []string{
		completed.OriginalPath, completed.VRPath, completed.MobileVRPath,
		failed.OriginalPath, waiting.OriginalPath,
		activeRender, freshUpload, unrelated, oddName,
	} {
		if !exists(kept) {
			t.Fatalf("expected %s kept", kept)
		}
	}
}

func TestCleanOrphansMissingDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	cfg.Paths.UploadDir = filepath.Join(t.TempDir(), "absent")
	cfg.Paths.WorkDir = ""

	result, err := workspace.CleanOrphans(context.Background(), cfg, store, time.Hour, nil)
	if err != nil {
		t.Fatalf("CleanOrphans: %v", err)
	}
	if len(result.Removed) != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestCleanOrphansRequiresStore(t *testing.T) {
	if _, err := workspace.CleanOrphans(context.Background(), testsupport.NewConfig(t), nil, time.Hour, nil); err == nil {
		t.Fatal("expected error without store")
	}
}
