package jobs

import (
	"database/sql"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job          Job
		status       string
		vrPath       sql.NullString
		mobilePath   sql.NullString
		duration     sql.NullInt64
		resolution   sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)
	if err := scanner.Scan(
		&job.seq,
		&job.ID,
		&job.OriginalFilename,
		&job.OriginalPath,
		&job.FileSize,
		&vrPath,
		&mobilePath,
		&status,
		&job.Progress,
		&duration,
		&resolution,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	job.VRPath = vrPath.String
	job.MobileVRPath = mobilePath.String
	job.Resolution = resolution.String
	job.ErrorMessage = errorMessage.String
	if duration.Valid {
		d := int(duration.Int64)
		job.Duration = &d
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func scanStage(scanner rowScanner) (*Stage, error) {
	var (
		stage        Stage
		name         string
		status       string
		startedRaw   sql.NullString
		completedRaw sql.NullString
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&stage.seq,
		&stage.ID,
		&stage.JobID,
		&name,
		&status,
		&stage.Progress,
		&startedRaw,
		&completedRaw,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	stage.Name = StageName(name)
	stage.Status = StageStatus(status)
	stage.ErrorMessage = errorMessage.String
	if startedRaw.Valid && startedRaw.String != "" {
		t := parseTime(startedRaw.String)
		stage.StartedAt = &t
	}
	if completedRaw.Valid && completedRaw.String != "" {
		t := parseTime(completedRaw.String)
		stage.CompletedAt = &t
	}
	return &stage, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value *int) any {
	if value == nil {
		return nil
	}
	return int64(*value)
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}
