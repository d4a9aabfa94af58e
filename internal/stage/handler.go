package stage

import (
	"context"
	"log/slog"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/media/ffmpeg"
)

// ProgressFunc records the stage's current percentage.
type ProgressFunc func(ctx context.Context, percent int) error

// Request is the input to a single stage execution.
type Request struct {
	Job *jobs.Job
	// Input is the media file the stage consumes, when it consumes one.
	Input string
	// Report receives heartbeat progress. May be nil.
	Report ProgressFunc
}

// Result is what a stage produced.
type Result struct {
	OutputPath string
}

// Handler describes the contract the orchestrator needs from each stage.
type Handler interface {
	Execute(ctx context.Context, req Request) (Result, error)
	HealthCheck(ctx context.Context) Health
}

// Registry maps every pipeline stage to its handler.
type Registry map[jobs.StageName]Handler

// NewRegistry builds the handlers for all four stages from cfg.
func NewRegistry(cfg *config.Config, logger *slog.Logger) Registry {
	heartbeat := Heartbeat{Interval: cfg.HeartbeatInterval(), Step: cfg.Pipeline.HeartbeatStep}
	return Registry{
		jobs.StageDepthAnalysis: NewWait(jobs.StageDepthAnalysis, cfg.DepthAnalysisDuration()),
		jobs.StageStereoscopicGeneration: &Transcode{
			Name:      jobs.StageStereoscopicGeneration,
			Binary:    cfg.Tools.FFmpegBinary,
			WorkDir:   cfg.Paths.WorkDir,
			Suffix:    VRSuffix,
			Args:      ffmpeg.StereoscopicArgs,
			Heartbeat: heartbeat,
			Logger:    logger,
		},
		jobs.StageQualityEnhancement: NewWait(jobs.StageQualityEnhancement, cfg.QualityEnhancementDuration()),
		jobs.StageFinalRendering: &Transcode{
			Name:      jobs.StageFinalRendering,
			Binary:    cfg.Tools.FFmpegBinary,
			WorkDir:   cfg.Paths.WorkDir,
			Suffix:    MobileSuffix,
			Args:      ffmpeg.MobileArgs,
			Heartbeat: heartbeat,
			Logger:    logger,
		},
	}
}

// HealthCheck reports the readiness of every registered handler in pipeline order.
func (r Registry) HealthCheck(ctx context.Context) []Health {
	results := make([]Health, 0, len(r))
	for _, name := range jobs.AllStageNames() {
		handler, ok := r[name]
		if !ok {
			results = append(results, Unhealthy(string(name), "no handler registered"))
			continue
		}
		results = append(results, handler.HealthCheck(ctx))
	}
	return results
}
