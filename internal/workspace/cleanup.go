package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/stage"
)

// DefaultMinAge keeps files written by a concurrent `vr180 process` run.
const DefaultMinAge = time.Hour

// Result lists what a cleanup removed and what it could not remove.
type Result struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a file path with its removal error.
type CleanupError struct {
	Path  string
	Error error
}

// CleanOrphans removes files in the upload and work directories that belong
// to no job and are older than minAge. Files of jobs still uploaded or
// processing are kept even when the job does not reference them yet.
func CleanOrphans(ctx context.Context, cfg *config.Config, store jobs.Store, minAge time.Duration, logger *slog.Logger) (Result, error) {
	if cfg == nil || store == nil {
		return Result{}, errors.New("workspace cleanup requires config and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	records, err := store.ListJobs(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list jobs: %w", err)
	}

	referenced := make(map[string]struct{})
	active := make(map[string]struct{})
	for _, job := range records {
		for _, path := range []string{job.OriginalPath, job.VRPath, job.MobileVRPath} {
			if strings.TrimSpace(path) != "" {
				referenced[filepath.Clean(path)] = struct{}{}
			}
		}
		if !job.IsTerminal() {
			active[job.ID] = struct{}{}
		}
	}

	cutoff := time.Now().Add(-minAge)
	var result Result
	sweep := func(dir string, owner func(name string) (string, bool)) {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, CleanupError{Path: dir, Error: err})
			}
			return
		}
		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			id, ok := owner(entry.Name())
			if !ok {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if _, keep := referenced[filepath.Clean(path)]; keep {
				continue
			}
			if _, keep := active[id]; keep {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				result.Errors = append(result.Errors, CleanupError{Path: path, Error: err})
				logger.Warn("failed to remove orphaned file",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check work_dir and upload_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
				continue
			}
			result.Removed = append(result.Removed, path)
			logger.Info("removed orphaned file",
				logging.String("path", path),
				logging.Int64("size_bytes", info.Size()),
				logging.Duration("age", time.Since(info.ModTime())),
				logging.String(logging.FieldEventType, "workspace_cleanup"),
			)
		}
	}

	sweep(cfg.Paths.UploadDir, uploadOwner)
	sweep(cfg.Paths.WorkDir, renderOwner)
	return result, nil
}

// uploadOwner recognises "<uuid><ext>" upload names. Uploads are not named
// after their job, so the returned ID never matches an active job.
func uploadOwner(name string) (string, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if _, err := uuid.Parse(stem); err != nil || len(stem) != 36 {
		return "", false
	}
	return stem, true
}

// renderOwner recognises "<jobID><suffix>" render names and returns the job ID.
func renderOwner(name string) (string, bool) {
	for _, suffix := range []string{stage.MobileSuffix, stage.VRSuffix} {
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		id := strings.TrimSuffix(name, suffix)
		if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
			return "", false
		}
		return id, true
	}
	return "", false
}
