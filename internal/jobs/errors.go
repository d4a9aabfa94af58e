package jobs

import (
	"errors"
	"fmt"

	"vr180/internal/services"
)

var (
	// ErrInvalidTransition is returned when a status change breaks the lifecycle order
	// or a terminal record is modified.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrProgressRegression is returned when an active job's progress would decrease.
	ErrProgressRegression = errors.New("job progress regression")
	// ErrDuplicateStage is returned when a stage name already exists for a job.
	ErrDuplicateStage = errors.New("duplicate stage")
	// ErrJobNotFound is returned when stages are created for an unknown job.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidInput is returned for malformed create or update requests.
	ErrInvalidInput = errors.New("invalid job input")
)

func transitionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, args...))
}

func regressionf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProgressRegression, fmt.Sprintf(format, args...))
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func jobNotFound(id string) error {
	return services.Wrap(services.ErrNotFound, "", "create stage", "job "+id, ErrJobNotFound)
}

func duplicateStage(jobID string, name StageName) error {
	return fmt.Errorf("%w: job %s already has %s", ErrDuplicateStage, jobID, name)
}
