package stage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"vr180/internal/deps"
	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/media/ffmpeg"
	"vr180/internal/services"
)

// Output file suffixes appended to the job ID inside the work directory.
const (
	VRSuffix     = "_vr180.mp4"
	MobileSuffix = "_vr180_mobile.mp4"
)

// OutputPath returns the location a stage writes for jobID.
func OutputPath(workDir, jobID, suffix string) string {
	return filepath.Join(workDir, jobID+suffix)
}

// Transcode runs ffmpeg over Request.Input and writes <WorkDir>/<jobID><Suffix>.
type Transcode struct {
	Name      jobs.StageName
	Binary    string
	WorkDir   string
	Suffix    string
	Args      func(input, output string) []string
	Heartbeat Heartbeat
	Logger    *slog.Logger
}

// Execute runs the subprocess. The heartbeat loop starts once ffmpeg has
// spawned and is joined before Execute returns.
func (t *Transcode) Execute(ctx context.Context, req Request) (Result, error) {
	if req.Job == nil || strings.TrimSpace(req.Job.ID) == "" {
		return Result{}, services.Wrap(services.ErrValidation, string(t.Name), "execute", "job is required", nil)
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return Result{}, services.Wrap(services.ErrValidation, string(t.Name), "resolve input", "input path is empty", nil)
	}
	if err := os.MkdirAll(t.WorkDir, 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, string(t.Name), "create work dir", "work directory is not writable", err)
	}

	output := OutputPath(t.WorkDir, req.Job.ID, t.Suffix)
	logger := logging.WithContext(ctx, t.logger())
	logger.Debug("ffmpeg starting",
		logging.String("input", input),
		logging.String("output", output),
	)

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	err := ffmpeg.Run(ctx, t.Binary, t.Args(input, output), ffmpeg.RunOptions{
		OnStart: func() {
			hbWG.Add(1)
			go t.Heartbeat.StartLoop(hbCtx, &hbWG, req.Report, logger)
		},
	})
	hbCancel()
	hbWG.Wait()
	if err != nil {
		return Result{}, err
	}
	return Result{OutputPath: output}, nil
}

// HealthCheck verifies the ffmpeg binary resolves.
func (t *Transcode) HealthCheck(context.Context) Health {
	binary := strings.TrimSpace(t.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	status := deps.CheckBinaries([]deps.Requirement{{Name: "FFmpeg", Command: binary}})[0]
	if !status.Available {
		return Unhealthy(string(t.Name), status.Detail)
	}
	return Healthy(string(t.Name))
}

func (t *Transcode) logger() *slog.Logger {
	if t.Logger == nil {
		return logging.NewNop()
	}
	return t.Logger
}
