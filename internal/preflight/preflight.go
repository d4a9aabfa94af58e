package preflight

import (
	"context"

	"vr180/internal/config"
	"vr180/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// freeSpaceUploads is the number of maximum-size uploads the work directory
// must be able to hold: the source plus both rendered outputs.
const freeSpaceUploads = 3

// RunAll executes the directory and free-space checks for cfg.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return []Result{{Name: "Preflight", Detail: err.Error()}}
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Upload.MaxBytes > 0 {
		results = append(results, CheckFreeSpace("Work directory space", cfg.Paths.WorkDir, uint64(cfg.Upload.MaxBytes)*freeSpaceUploads))
	}
	return results
}

// CheckSystemDeps evaluates the media tools named by cfg. Both the daemon and
// the CLI status command use this so the requirement list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.MediaRequirements(cfg))
}

// Failed filters results down to the checks that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}
