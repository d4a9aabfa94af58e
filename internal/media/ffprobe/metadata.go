package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"vr180/internal/services"
)

// Metadata summarizes the source video recorded on a job.
type Metadata struct {
	Duration   int
	Resolution string
	Width      int
	Height     int
}

// MetadataError reports why a source video could not be described.
type MetadataError struct {
	Path   string
	Reason string
	Err    error
}

func (e *MetadataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("probe %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("probe %s: %s", e.Path, e.Reason)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

// Is matches services.ErrValidation so callers can classify probe failures.
func (e *MetadataError) Is(target error) bool {
	return target == services.ErrValidation
}

// Reasons reported by MetadataError.
const (
	ReasonProbeFailed   = "failed to get video metadata"
	ReasonNoVideoStream = "no video stream found"
	ReasonBadDuration   = "failed to parse video duration"
)

// Probe inspects path and returns its duration, rounded to whole seconds, and
// the resolution of the first video stream.
func Probe(ctx context.Context, binary, path string) (Metadata, error) {
	result, err := Inspect(ctx, binary, path)
	if err != nil {
		return Metadata{}, &MetadataError{Path: path, Reason: ReasonProbeFailed, Err: err}
	}

	stream, ok := result.FirstVideoStream()
	if !ok {
		return Metadata{}, &MetadataError{Path: path, Reason: ReasonNoVideoStream}
	}

	seconds, err := durationSeconds(result, stream)
	if err != nil {
		return Metadata{}, &MetadataError{Path: path, Reason: ReasonBadDuration, Err: err}
	}

	return Metadata{
		Duration:   int(math.Round(seconds)),
		Resolution: fmt.Sprintf("%dx%d", stream.Width, stream.Height),
		Width:      stream.Width,
		Height:     stream.Height,
	}, nil
}

// durationSeconds prefers the container duration and falls back to the video stream's.
func durationSeconds(result Result, stream Stream) (float64, error) {
	for _, raw := range []string{result.Format.Duration, stream.Duration} {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		value := parseFloat(raw)
		if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 {
			return 0, fmt.Errorf("invalid duration %q", raw)
		}
		return value, nil
	}
	return 0, errors.New("duration missing")
}
