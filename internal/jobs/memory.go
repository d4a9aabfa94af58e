package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps jobs in process memory. Contents are lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	stages map[string]*Stage
	byJob  map[string][]string
	seq    int64
	now    func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]*Job),
		stages: make(map[string]*Stage),
		byJob:  make(map[string][]string),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateJob registers a new job in the uploaded state.
func (s *MemoryStore) CreateJob(_ context.Context, in NewJob) (*Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.seq++
	job := &Job{
		seq:              s.seq,
		ID:               uuid.NewString(),
		OriginalFilename: in.OriginalFilename,
		OriginalPath:     in.OriginalPath,
		FileSize:         in.FileSize,
		Status:           StatusUploaded,
		Resolution:       in.Resolution,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if in.Duration != nil {
		d := *in.Duration
		job.Duration = &d
	}
	s.jobs[job.ID] = job
	return job.Clone(), nil
}

// GetJob returns a copy of the job, or nil when absent.
func (s *MemoryStore) GetJob(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id].Clone(), nil
}

// UpdateJob merges patch into the job. Returns nil when the job is absent.
func (s *MemoryStore) UpdateJob(_ context.Context, id string, patch JobUpdate) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	next := current.Clone()
	if err := applyJobUpdate(next, patch, s.now()); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// ListJobs returns all jobs, newest first.
func (s *MemoryStore) ListJobs(context.Context) ([]*Job, error) {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	s.mu.RUnlock()
	sortJobs(out)
	return out, nil
}

// DeleteJob removes a job and its stage records.
func (s *MemoryStore) DeleteJob(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false, nil
	}
	for _, stageID := range s.byJob[id] {
		delete(s.stages, stageID)
	}
	delete(s.byJob, id)
	delete(s.jobs, id)
	return true, nil
}

// CreateStage adds one pending stage record for the job.
func (s *MemoryStore) CreateStage(ctx context.Context, jobID string, name StageName) (*Stage, error) {
	created, err := s.CreateStages(ctx, jobID, name)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateStages adds pending stage records in the given order. Either all are
// created or none.
func (s *MemoryStore) CreateStages(_ context.Context, jobID string, names ...StageName) ([]*Stage, error) {
	if err := validateStageNames(names); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, jobNotFound(jobID)
	}
	for _, stageID := range s.byJob[jobID] {
		existing := s.stages[stageID].Name
		for _, name := range names {
			if existing == name {
				return nil, duplicateStage(jobID, name)
			}
		}
	}

	out := make([]*Stage, 0, len(names))
	for _, name := range names {
		s.seq++
		stage := &Stage{
			ID:     uuid.NewString(),
			JobID:  jobID,
			Name:   name,
			Status: StagePending,
			seq:    s.seq,
		}
		s.stages[stage.ID] = stage
		s.byJob[jobID] = append(s.byJob[jobID], stage.ID)
		out = append(out, stage.Clone())
	}
	return out, nil
}

// ListStages returns the job's stage records ordered by start time.
func (s *MemoryStore) ListStages(_ context.Context, jobID string) ([]*Stage, error) {
	s.mu.RLock()
	ids := s.byJob[jobID]
	out := make([]*Stage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.stages[id].Clone())
	}
	s.mu.RUnlock()
	sortStages(out)
	return out, nil
}

// UpdateStage merges patch into the stage. Returns nil when the stage is absent.
func (s *MemoryStore) UpdateStage(_ context.Context, id string, patch StageUpdate) (*Stage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.stages[id]
	if !ok {
		return nil, nil
	}
	next := current.Clone()
	if err := applyStageUpdate(next, patch, s.now()); err != nil {
		return nil, err
	}
	s.stages[id] = next
	return next.Clone(), nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}
