package workflow

import (
	"context"

	"vr180/internal/jobs"
	"vr180/internal/logging"
	"vr180/internal/notifications"
)

func (m *Manager) notifyCompleted(ctx context.Context, job *jobs.Job) {
	m.publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"filename": job.OriginalFilename,
		"jobId":    job.ID,
	})
}

func (m *Manager) notifyFailed(ctx context.Context, job *jobs.Job, message string) {
	m.publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"filename": job.OriginalFilename,
		"jobId":    job.ID,
		"error":    message,
	})
}

// publish sends event; failures are logged and never affect the job.
func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job state is unaffected"),
		)
	}
}
