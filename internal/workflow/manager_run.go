package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/services"
	"vr180/internal/stage"
)

// supervise runs the pipeline and converts an escaping panic into a failed job.
func (m *Manager) supervise(ctx context.Context, job *jobs.Job) (err error) {
	ctx = services.WithJobID(ctx, job.ID)
	if _, ok := services.RequestIDFromContext(ctx); !ok {
		ctx = services.WithRequestID(ctx, uuid.NewString())
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
			logging.WithContext(ctx, m.logger).Error("pipeline panicked",
				logging.String(logging.FieldEventType, "pipeline_panic"),
				logging.String("stack", string(debug.Stack())),
			)
			m.handleStageFailure(ctx, job, nil, err)
		}
		m.recordOutcome(err)
	}()
	return m.run(ctx, job)
}

func (m *Manager) run(ctx context.Context, job *jobs.Job) error {
	logger := logging.WithContext(ctx, m.logger)
	runStart := time.Now()
	logger.Info("pipeline started",
		logging.String(logging.FieldEventType, "pipeline_start"),
		logging.String("original_filename", job.OriginalFilename),
		logging.String("original_path", job.OriginalPath),
	)

	current, err := m.store.UpdateJob(ctx, job.ID, jobs.JobUpdate{
		Status:   jobs.Ptr(jobs.StatusProcessing),
		Progress: jobs.Ptr(0),
	})
	if err != nil {
		err = services.Wrap(services.ErrTransient, "workflow", "mark processing", "could not persist processing status", err)
		m.handleStageFailure(ctx, job, nil, err)
		return err
	}
	if current == nil {
		return fmt.Errorf("job %s: %w", job.ID, jobs.ErrJobNotFound)
	}
	job = current

	records, err := m.store.CreateStages(ctx, job.ID, jobs.AllStageNames()...)
	if err != nil {
		err = services.Wrap(services.ErrTransient, "workflow", "create stages", "could not create stage records", err)
		m.handleStageFailure(ctx, job, nil, err)
		return err
	}
	byName := make(map[jobs.StageName]*jobs.Stage, len(records))
	for _, record := range records {
		byName[record.Name] = record
	}

	input := job.OriginalPath
	for _, step := range pipelineSteps {
		record := byName[step.name]
		stageCtx := services.WithStage(ctx, string(step.name))
		result, err := m.executeStage(stageCtx, job, record, step, input)
		if err != nil {
			m.handleStageFailure(stageCtx, job, record, err)
			return err
		}

		patch := jobs.JobUpdate{Progress: jobs.Ptr(step.doneProgress)}
		switch step.name {
		case jobs.StageStereoscopicGeneration:
			patch.VRPath = jobs.Ptr(result.OutputPath)
			input = result.OutputPath
		case jobs.StageFinalRendering:
			patch.MobileVRPath = jobs.Ptr(result.OutputPath)
			patch.Status = jobs.Ptr(jobs.StatusCompleted)
		}
		updated, err := m.store.UpdateJob(ctx, job.ID, patch)
		if err != nil {
			err = services.Wrap(services.ErrTransient, string(step.name), "persist result", "could not record stage result", err)
			m.handleStageFailure(stageCtx, job, nil, err)
			return err
		}
		if updated != nil {
			job = updated
		}
	}

	logger.Info("pipeline completed",
		logging.String(logging.FieldEventType, "pipeline_complete"),
		logging.String("vr_path", job.VRPath),
		logging.String("mobile_vr_path", job.MobileVRPath),
		logging.Duration("pipeline_duration", time.Since(runStart)),
	)
	m.notifyCompleted(ctx, job)
	return nil
}

// executeStage moves record to processing, bumps the job to the step's start
// checkpoint, runs the handler and marks the record completed.
func (m *Manager) executeStage(ctx context.Context, job *jobs.Job, record *jobs.Stage, step pipelineStep, input string) (stage.Result, error) {
	if record == nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, string(step.name), "execute", "stage record missing", nil)
	}
	handler, ok := m.stages[step.name]
	if !ok || handler == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, string(step.name), "execute", "no handler registered", nil)
	}

	stageLogger := logging.WithContext(ctx, m.logger)
	stageStart := time.Now()
	if _, err := m.store.UpdateStage(ctx, record.ID, jobs.StageUpdate{Status: jobs.Ptr(jobs.StageProcessing)}); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, string(step.name), "mark processing", "could not persist stage status", err)
	}
	if _, err := m.store.UpdateJob(ctx, job.ID, jobs.JobUpdate{Progress: jobs.Ptr(step.startProgress)}); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, string(step.name), "update progress", "could not persist job progress", err)
	}
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("stage_label", stage.Label(step.name)),
		logging.Int("job_progress", step.startProgress),
		logging.String("input", strings.TrimSpace(input)),
	)

	result, err := handler.Execute(ctx, stage.Request{
		Job:    job,
		Input:  input,
		Report: m.stageProgressReporter(record.ID, stageLogger),
	})
	if err != nil {
		return stage.Result{}, err
	}

	if _, err := m.store.UpdateStage(ctx, record.ID, jobs.StageUpdate{
		Status:   jobs.Ptr(jobs.StageCompleted),
		Progress: jobs.Ptr(100),
	}); err != nil {
		return stage.Result{}, services.Wrap(services.ErrTransient, string(step.name), "mark completed", "could not persist stage completion", err)
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("stage_label", stage.Label(step.name)),
		logging.String("output", result.OutputPath),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	return result, nil
}

func (m *Manager) stageProgressReporter(stageID string, logger *slog.Logger) stage.ProgressFunc {
	return func(ctx context.Context, percent int) error {
		if _, err := m.store.UpdateStage(ctx, stageID, jobs.StageUpdate{Progress: jobs.Ptr(percent)}); err != nil {
			return err
		}
		logger.Debug("stage progress", logging.Int("progress", percent))
		return nil
	}
}
