package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/media/ffprobe"
	"vr180/internal/services"
	"vr180/internal/textutil"
)

// ErrJobBusy is returned when deleting a job whose pipeline is still running.
var ErrJobBusy = errors.New("job is processing")

// PipelineStarter launches a background pipeline for a job.
type PipelineStarter interface {
	Start(ctx context.Context, jobID string) error
}

// CreateJobRequest carries the fields recorded when an upload is registered.
type CreateJobRequest struct {
	OriginalFilename string
	OriginalPath     string
	FileSize         int64
	Duration         *int
	Resolution       string
}

// Service exposes job operations returning API DTOs.
type Service struct {
	cfg      *config.Config
	store    jobs.Store
	pipeline PipelineStarter
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(cfg *config.Config, store jobs.Store, pipeline PipelineStarter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		pipeline: pipeline,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// CreateJob registers an upload as a job in the uploaded state.
func (s *Service) CreateJob(ctx context.Context, req CreateJobRequest) (Job, error) {
	job, err := s.store.CreateJob(ctx, jobs.NewJob{
		OriginalFilename: req.OriginalFilename,
		OriginalPath:     req.OriginalPath,
		FileSize:         req.FileSize,
		Duration:         req.Duration,
		Resolution:       req.Resolution,
	})
	if err != nil {
		if errors.Is(err, jobs.ErrInvalidInput) {
			return Job{}, services.Wrap(services.ErrValidation, "api", "create job", "invalid job", err)
		}
		return Job{}, fmt.Errorf("create job: %w", err)
	}
	logging.WithContext(services.WithJobID(ctx, job.ID), s.logger).Info("job created",
		logging.String(logging.FieldEventType, "job_created"),
		logging.String("original_filename", job.OriginalFilename),
		logging.Int64("file_size", job.FileSize),
	)
	return FromJob(job), nil
}

// StartPipeline launches the pipeline for id and returns without waiting.
func (s *Service) StartPipeline(ctx context.Context, id string) error {
	if s.pipeline == nil {
		return services.Wrap(services.ErrConfiguration, "api", "start pipeline", "pipeline is not configured", nil)
	}
	return s.pipeline.Start(ctx, id)
}

// GetJob returns the job, or nil when it does not exist.
func (s *Service) GetJob(ctx context.Context, id string) (*Job, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// ListJobs returns every job, newest first.
func (s *Service) ListJobs(ctx context.Context) ([]Job, error) {
	records, err := s.store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	return FromJobs(records), nil
}

// ListStages returns the job's stage records ordered by start time. Unknown
// jobs yield an empty list.
func (s *Service) ListStages(ctx context.Context, id string) ([]Stage, error) {
	records, err := s.store.ListStages(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromStages(records), nil
}

// ProbeMetadata describes the media file at path. Failures are
// *ffprobe.MetadataError.
func (s *Service) ProbeMetadata(ctx context.Context, path string) (Metadata, error) {
	meta, err := ffprobe.Probe(ctx, s.cfg.Tools.FFprobeBinary, path)
	if err != nil {
		return Metadata{}, err
	}
	return FromMetadata(meta), nil
}

// Submit probes the uploaded file, registers it and starts its pipeline, as
// the upload route does. No job is created when the probe fails.
func (s *Service) Submit(ctx context.Context, filename, path string, size int64) (Job, error) {
	meta, err := s.ProbeMetadata(ctx, path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "metadata probe failed", "probe_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "upload rejected"),
		)
		return Job{}, err
	}
	duration := meta.Duration
	job, err := s.CreateJob(ctx, CreateJobRequest{
		OriginalFilename: filename,
		OriginalPath:     path,
		FileSize:         size,
		Duration:         &duration,
		Resolution:       meta.Resolution,
	})
	if err != nil {
		return Job{}, err
	}
	if err := s.StartPipeline(ctx, job.ID); err != nil {
		return job, fmt.Errorf("start pipeline: %w", err)
	}
	return job, nil
}

// DeleteJob removes the job's files and records. It reports false when the
// job does not exist and ErrJobBusy while its pipeline is running.
func (s *Service) DeleteJob(ctx context.Context, id string) (bool, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil || job == nil {
		return false, err
	}
	if job.Status == jobs.StatusProcessing {
		return false, fmt.Errorf("delete job %s: %w", id, ErrJobBusy)
	}

	logger := logging.WithContext(services.WithJobID(ctx, id), s.logger)
	for _, path := range []string{job.OriginalPath, job.VRPath, job.MobileVRPath} {
		if strings.TrimSpace(path) == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove job file", "file_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "file left on disk"),
			)
		}
	}

	removed, err := s.store.DeleteJob(ctx, id)
	if err != nil {
		return false, err
	}
	if removed {
		logger.Info("job deleted", logging.String(logging.FieldEventType, "job_deleted"))
	}
	return removed, nil
}

// Download identifies which derivative to serve.
type Download string

const (
	DownloadVR     Download = "vr"
	DownloadMobile Download = "mobile"
)

// DownloadTarget resolves the file and attachment name for a download of
// kind. It returns an empty path when the derivative does not exist yet.
func DownloadTarget(job *Job, kind Download) (path, filename string) {
	if job == nil {
		return "", ""
	}
	base := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(job.OriginalFilename), filepath.Ext(job.OriginalFilename)))
	if base == "" {
		base = "video"
	}
	switch kind {
	case DownloadVR:
		if job.VRPath != nil {
			return *job.VRPath, base + "_VR180.mp4"
		}
	case DownloadMobile:
		if job.MobileVRPath != nil {
			return *job.MobileVRPath, base + "_VR180_Mobile.mp4"
		}
	}
	return "", ""
}
