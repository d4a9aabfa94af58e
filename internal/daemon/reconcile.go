package daemon

import (
	"context"
	"errors"

	"vr180/internal/jobs"
	"vr180/internal/logging"
)

// InterruptedMessage is recorded on jobs a previous process left processing.
const InterruptedMessage = "Processing interrupted by daemon restart"

// failInterruptedJobs marks jobs left processing by a previous process as
// failed together with their in-flight stage. It must run while holding the
// daemon lock and before the API accepts uploads.
func (d *Daemon) failInterruptedJobs(ctx context.Context) error {
	records, err := d.store.ListJobs(ctx)
	if err != nil {
		return err
	}
	var errs []error
	for _, job := range records {
		if job.Status != jobs.StatusProcessing {
			continue
		}
		stages, err := d.store.ListStages(ctx, job.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, record := range stages {
			if record.Status != jobs.StageProcessing {
				continue
			}
			if _, err := d.store.UpdateStage(ctx, record.ID, jobs.StageUpdate{
				Status:       jobs.Ptr(jobs.StageFailed),
				ErrorMessage: jobs.Ptr(InterruptedMessage),
			}); err != nil {
				errs = append(errs, err)
			}
		}
		if _, err := d.store.UpdateJob(ctx, job.ID, jobs.JobUpdate{
			Status:       jobs.Ptr(jobs.StatusFailed),
			ErrorMessage: jobs.Ptr(InterruptedMessage),
		}); err != nil {
			errs = append(errs, err)
			continue
		}
		logging.WarnWithContext(d.logger, "interrupted job marked failed", "job_interrupted",
			logging.String(logging.FieldJobID, job.ID),
			logging.Int("progress", job.Progress),
			logging.String(logging.FieldImpact, "job must be uploaded again"),
		)
	}
	return errors.Join(errs...)
}
