package workflow_test

import (
	"context"
	"sync"
	"testing"

	"vr180/internal/config"
	"vr180/internal/jobs"
	"vr180/internal/notifications"
	"vr180/internal/stage"
	"vr180/internal/testsupport"
	"vr180/internal/workflow"
)

type published struct {
	event   notifications.Event
	payload notifications.Payload
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []published
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{event: event, payload: payload})
	return nil
}

func (r *recordingNotifier) snapshot() []published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]published(nil), r.events...)
}

// progressStore records every job progress value written through UpdateJob.
type progressStore struct {
	jobs.Store
	mu       sync.Mutex
	progress []int
}

func (p *progressStore) UpdateJob(ctx context.Context, id string, patch jobs.JobUpdate) (*jobs.Job, error) {
	job, err := p.Store.UpdateJob(ctx, id, patch)
	if err == nil && job != nil {
		p.mu.Lock()
		p.progress = append(p.progress, job.Progress)
		p.mu.Unlock()
	}
	return job, err
}

type panicHandler struct{}

func (panicHandler) Execute(context.Context, stage.Request) (stage.Result, error) {
	panic("enhancement model exploded")
}

func (panicHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("panic")
}

type env struct {
	cfg      *config.Config
	store    jobs.Store
	notifier *recordingNotifier
	manager  *workflow.Manager
}

func newEnv(t *testing.T, store jobs.Store, cfg *config.Config) *env {
	t.Helper()
	if store == nil {
		store = testsupport.MustOpenStore(t, cfg)
	}
	notifier := &recordingNotifier{}
	manager := workflow.NewManagerWithDeps(cfg, store, nil, notifier, stage.NewRegistry(cfg, nil))
	return &env{cfg: cfg, store: store, notifier: notifier, manager: manager}
}

func (e *env) createJob(t *testing.T, name string) *jobs.Job {
	t.Helper()
	path := testsupport.WriteUpload(t, e.cfg.Paths.UploadDir, name, 1000)
	job, err := e.store.CreateJob(context.Background(), jobs.NewJob{
		OriginalFilename: name,
		OriginalPath:     path,
		FileSize:         1000,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func (e *env) job(t *testing.T, id string) *jobs.Job {
	t.Helper()
	job, err := e.store.GetJob(context.Background(), id)
	if err != nil || job == nil {
		t.Fatalf("GetJob(%s) = %v, %v", id, job, err)
	}
	return job
}

func (e *env) stages(t *testing.T, id string) map[jobs.StageName]*jobs.Stage {
	t.Helper()
	records, err := e.store.ListStages(context.Background(), id)
	if err != nil {
		t.Fatalf("ListStages: %v", err)
	}
	byName := make(map[jobs.StageName]*jobs.Stage, len(records))
	for _, record := range records {
		byName[record.Name] = record
	}
	if len(byName) != len(records) {
		t.Fatalf("duplicate stage names in %v", records)
	}
	return byName
}
