package workflow

import (
	"context"
	"errors"
	"strings"

	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/services"
)

// handleStageFailure records stageErr on the in-flight stage and the job.
// When record is nil the stage currently processing, if any, is failed.
func (m *Manager) handleStageFailure(ctx context.Context, job *jobs.Job, record *jobs.Stage, stageErr error) {
	logger := logging.WithContext(ctx, m.logger)
	message := classifyStageFailure(stageErr)

	attrs := []logging.Attr{
		logging.String("resolved_status", string(jobs.StatusFailed)),
		logging.String(logging.FieldErrorHint, failureHint(stageErr)),
		logging.Error(stageErr),
	}
	attrs = append(attrs, logging.ErrorAttrs(stageErr)...)
	attrs = append(attrs, logging.String(logging.FieldEventType, "stage_failure"))
	logger.Error("stage failed", logging.Args(attrs...)...)

	if record == nil {
		record = m.inFlightStage(ctx, job.ID)
	}
	if record != nil {
		if _, err := m.store.UpdateStage(ctx, record.ID, jobs.StageUpdate{
			Status:       jobs.Ptr(jobs.StageFailed),
			ErrorMessage: jobs.Ptr(message),
		}); err != nil && !errors.Is(err, jobs.ErrInvalidTransition) {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	updated, err := m.store.UpdateJob(ctx, job.ID, jobs.JobUpdate{
		Status:       jobs.Ptr(jobs.StatusFailed),
		ErrorMessage: jobs.Ptr(message),
	})
	if err != nil {
		logger.Error("failed to persist job failure", logging.Error(err))
		return
	}
	if updated != nil {
		job = updated
	}
	m.notifyFailed(ctx, job, message)
}

func (m *Manager) inFlightStage(ctx context.Context, jobID string) *jobs.Stage {
	records, err := m.store.ListStages(ctx, jobID)
	if err != nil {
		return nil
	}
	for _, record := range records {
		if record.Status == jobs.StageProcessing {
			return record
		}
	}
	return nil
}

// classifyStageFailure produces the human-readable message stored on the job.
func classifyStageFailure(stageErr error) string {
	if stageErr == nil {
		return "pipeline failed without error detail"
	}
	message := strings.TrimSpace(services.Details(stageErr).Message)
	if message == "" {
		message = strings.TrimSpace(stageErr.Error())
	}
	if message == "" {
		message = "pipeline failed"
	}
	return message
}

func failureHint(stageErr error) string {
	if hint := services.Details(stageErr).Hint; hint != "" {
		return hint
	}
	switch services.KindOf(stageErr) {
	case services.KindExternalTool:
		return "check the ffmpeg output in the error message and the source file"
	case services.KindConfiguration:
		return "check vr180 configuration and directory permissions"
	default:
		return "check logs for details"
	}
}
