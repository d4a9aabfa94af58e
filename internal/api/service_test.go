package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/media/ffprobe"
	"vr180/internal/services"
	"vr180/internal/testsupport"
	"vr180/internal/workflow"
)

type fixture struct {
	cfg     *config.Config
	store   jobs.Store
	manager *workflow.Manager
	svc     *api.Service
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithStubbedBinaries()}, opts...)...)
	store := testsupport.MustOpenStore(t, cfg)
	manager := workflow.NewManager(cfg, store, nil)
	return &fixture{cfg: cfg, store: store, manager: manager, svc: api.NewService(cfg, store, manager, nil)}
}

func (f *fixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := f.manager.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestCreateJobStartsUploaded(t *testing.T) {
	f := newFixture(t)
	job, err := f.svc.CreateJob(context.Background(), api.CreateJobRequest{
		OriginalFilename: "clip.mp4",
		OriginalPath:     "/uploads/abc",
		FileSize:         1000,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if job.Status != "uploaded" || job.Progress != 0 || job.FileSize != 1000 {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.VRPath != nil || job.MobileVRPath != nil || job.ErrorMessage != nil {
		t.Fatalf("expected null paths and message, got %+v", job)
	}

	raw, err := json.Marshal(job)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, fragment := range []string{`"vrPath":null`, `"mobileVrPath":null`, `"status":"uploaded"`, `"originalFilename":"clip.mp4"`} {
		if !strings.Contains(string(raw), fragment) {
			t.Fatalf("expected %s in %s", fragment, raw)
		}
	}
}

func TestCreateJobRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateJob(context.Background(), api.CreateJobRequest{OriginalPath: "/uploads/abc"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRunsPipeline(t *testing.T) {
	f := newFixture(t)
	path := testsupport.WriteUpload(t, f.cfg.Paths.UploadDir, "upload-1.mp4", 1000)

	job, err := f.svc.Submit(context.Background(), "beach.mp4", path, 1000)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if job.Status != "uploaded" {
		t.Fatalf("expected the returned job to be uploaded, got %s", job.Status)
	}
	if job.Duration == nil || *job.Duration != 13 || job.Resolution == nil || *job.Resolution != "1280x720" {
		t.Fatalf("expected probe metadata on job, got %+v", job)
	}
	f.wait(t)

	done, err := f.svc.GetJob(context.Background(), job.ID)
	if err != nil || done == nil {
		t.Fatalf("GetJob: %v %v", done, err)
	}
	if done.Status != "completed" || done.Progress != 100 || done.VRPath == nil || done.MobileVRPath == nil {
		t.Fatalf("expected completed job with both paths, got %+v", done)
	}
	stages, err := f.svc.ListStages(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	if len(stages) != 4 {
		t.Fatalf("expected 4 stages, got %d", len(stages))
	}
	for _, s := range stages {
		if s.Status != "completed" || s.Progress != 100 || s.StartedAt == nil || s.CompletedAt == nil {
			t.Fatalf("unexpected stage %+v", s)
		}
	}
	if stages[0].Name != "depth_analysis" || stages[0].Label != "Depth Analysis" {
		t.Fatalf("expected depth analysis first, got %+v", stages[0])
	}
}

func TestSubmitWithoutVideoStreamCreatesNoJob(t *testing.T) {
	f := newFixture(t, testsupport.WithFFprobeOutput(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.0"}}`, 0))
	path := testsupport.WriteUpload(t, f.cfg.Paths.UploadDir, "audio-only.mp4", 10)

	_, err := f.svc.Submit(context.Background(), "audio-only.mp4", path, 10)
	var metaErr *ffprobe.MetadataError
	if !errors.As(err, &metaErr) || metaErr.Reason != ffprobe.ReasonNoVideoStream {
		t.Fatalf("expected no-video MetadataError, got %v", err)
	}
	list, err := f.svc.ListJobs(context.Background())
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected no jobs, got %d", len(list))
	}
}

func TestReadsAreIdempotent(t *testing.T) {
	f := newFixture(t)
	path := testsupport.WriteUpload(t, f.cfg.Paths.UploadDir, "upload-2.mp4", 1000)
	job, err := f.svc.Submit(context.Background(), "clip.mp4", path, 1000)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.wait(t)

	first, _ := f.svc.GetJob(context.Background(), job.ID)
	second, _ := f.svc.GetJob(context.Background(), job.ID)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("GetJob not idempotent:\n%+v\n%+v", first, second)
	}
	stagesA, _ := f.svc.ListStages(context.Background(), job.ID)
	stagesB, _ := f.svc.ListStages(context.Background(), job.ID)
	if !reflect.DeepEqual(stagesA, stagesB) {
		t.Fatalf("ListStages not idempotent")
	}

	missing, err := f.svc.GetJob(context.Background(), "missing")
	if missing != nil || err != nil {
		t.Fatalf("expected nil, nil for missing job, got %v %v", missing, err)
	}
	none, err := f.svc.ListStages(context.Background(), "missing")
	if err != nil || len(none) != 0 {
		t.Fatalf("expected empty stages for missing job, got %v %v", none, err)
	}
}

func TestDeleteJobRemovesFilesAndRecords(t *testing.T) {
	f := newFixture(t)
	path := testsupport.WriteUpload(t, f.cfg.Paths.UploadDir, "upload-3.mp4", 1000)
	job, err := f.svc.Submit(context.Background(), "clip.mp4", path, 1000)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	f.wait(t)
	done, _ := f.svc.GetJob(context.Background(), job.ID)

	removed, err := f.svc.DeleteJob(context.Background(), job.ID)
	if err != nil || !removed {
		t.Fatalf("DeleteJob = %v, %v", removed, err)
	}
	for _, p := range []string{path, *done.VRPath, *done.MobileVRPath} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("expected %s removed, stat err %v", p, err)
		}
	}
	if got, _ := f.svc.GetJob(context.Background(), job.ID); got != nil {
		t.Fatalf("expected job record removed")
	}
	if removed, err := f.svc.DeleteJob(context.Background(), job.ID); removed || err != nil {
		t.Fatalf("second delete = %v, %v", removed, err)
	}
}

func TestDeleteJobRefusesProcessingJob(t *testing.T) {
	f := newFixture(t)
	created, err := f.store.CreateJob(context.Background(), jobs.NewJob{OriginalFilename: "clip.mp4", OriginalPath: "/uploads/x", FileSize: 1})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if _, err := f.store.UpdateJob(context.Background(), created.ID, jobs.JobUpdate{Status: jobs.Ptr(jobs.StatusProcessing)}); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if _, err := f.svc.DeleteJob(context.Background(), created.ID); !errors.Is(err, api.ErrJobBusy) {
		t.Fatalf("expected ErrJobBusy, got %v", err)
	}
}

func TestStartPipelineWithoutPipeline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := api.NewService(cfg, testsupport.MustOpenStore(t, cfg), nil, nil)
	if err := svc.StartPipeline(context.Background(), "any"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestValidateUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.MaxBytes = 100
	tests := []struct {
		name     string
		filename string
		size     int64
		reason   string
	}{
		{"accepted mp4", "clip.mp4", 10, ""},
		{"accepted upper-case mov", "CLIP.MOV", 100, ""},
		{"missing file", "", 10, api.ReasonMissingFile},
		{"bad extension", "clip.mkv", 10, api.ReasonBadType},
		{"too large", "clip.avi", 101, api.ReasonTooLarge},
		{"unknown size", "clip.avi", -1, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := api.ValidateUpload(cfg, tc.filename, tc.size)
			if tc.reason == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var uploadErr *api.UploadValidationError
			if !errors.As(err, &uploadErr) || uploadErr.Reason != tc.reason {
				t.Fatalf("expected reason %q, got %v", tc.reason, err)
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatal("expected upload errors to classify as validation")
			}
		})
	}
}

func TestSaveUpload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Upload.MaxBytes = 8

	path, size, err := api.SaveUpload(cfg, "clip.MP4", strings.NewReader("12345678"))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if size != 8 || filepath.Dir(path) != cfg.Paths.UploadDir || filepath.Ext(path) != ".mp4" {
		t.Fatalf("unexpected saved upload %s (%d bytes)", path, size)
	}

	_, _, err = api.SaveUpload(cfg, "big.mp4", strings.NewReader("123456789"))
	var uploadErr *api.UploadValidationError
	if !errors.As(err, &uploadErr) || uploadErr.Reason != api.ReasonTooLarge {
		t.Fatalf("expected too-large error, got %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.UploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected rejected upload to be removed, found %d files", len(entries))
	}
}

func TestDownloadTarget(t *testing.T) {
	vr := "/work/j_vr180.mp4"
	job := &api.Job{OriginalFilename: "holiday.clip.mov", VRPath: &vr}

	path, name := api.DownloadTarget(job, api.DownloadVR)
	if path != vr || name != "holiday.clip_VR180.mp4" {
		t.Fatalf("unexpected vr target %q %q", path, name)
	}
	if path, _ := api.DownloadTarget(job, api.DownloadMobile); path != "" {
		t.Fatalf("expected no mobile target, got %q", path)
	}
	mobile := "/work/j_vr180_mobile.mp4"
	job.MobileVRPath = &mobile
	if _, name := api.DownloadTarget(job, api.DownloadMobile); name != "holiday.clip_VR180_Mobile.mp4" {
		t.Fatalf("unexpected mobile name %q", name)
	}
	if path, _ := api.DownloadTarget(job, api.Download("other")); path != "" {
		t.Fatalf("expected unknown kind to resolve nothing")
	}

	job.OriginalFilename = `"what?".mov`
	if _, name := api.DownloadTarget(job, api.DownloadVR); name != "what_VR180.mp4" {
		t.Fatalf("expected sanitized name, got %q", name)
	}
	job.OriginalFilename = "?.mov"
	if _, name := api.DownloadTarget(job, api.DownloadVR); name != "video_VR180.mp4" {
		t.Fatalf("expected fallback name, got %q", name)
	}
}
