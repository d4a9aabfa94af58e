package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists jobs in a local SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const jobColumns = "seq, id, original_filename, original_path, file_size, vr_path, mobile_vr_path, status, progress, duration, resolution, error_message, created_at, updated_at"

const stageColumns = "seq, id, job_id, name, status, progress, started_at, completed_at, error_message"

// OpenSQLite opens or creates the job database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Read-modify-write updates run in transactions; one connection keeps them serialized.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateJob registers a new job in the uploaded state.
func (s *SQLiteStore) CreateJob(ctx context.Context, in NewJob) (*Job, error) {
	ctx = ensureContext(ctx)
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := s.now()
	id := uuid.NewString()
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO jobs (id, original_filename, original_path, file_size, status, progress, duration, resolution, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?, ?)`,
			id, in.OriginalFilename, in.OriginalPath, in.FileSize, string(StatusUploaded),
			nullableInt(in.Duration), nullableString(in.Resolution),
			formatTime(now), formatTime(now),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob returns the job, or nil when absent.
func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// UpdateJob merges patch into the job. Returns nil when the job is absent.
func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, patch JobUpdate) (*Job, error) {
	ctx = ensureContext(ctx)
	var updated *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load job: %w", err)
		}
		if err := applyJobUpdate(job, patch, s.now()); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET vr_path = ?, mobile_vr_path = ?, status = ?, progress = ?, duration = ?,
             resolution = ?, error_message = ?, updated_at = ? WHERE id = ?`,
			nullableString(job.VRPath), nullableString(job.MobileVRPath), string(job.Status), job.Progress,
			nullableInt(job.Duration), nullableString(job.Resolution), nullableString(job.ErrorMessage),
			formatTime(job.UpdatedAt), id,
		)
		if err != nil {
			return fmt.Errorf("update job: %w", err)
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListJobs returns all jobs, newest first.
func (s *SQLiteStore) ListJobs(ctx context.Context) ([]*Job, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs")
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	sortJobs(out)
	return out, nil
}

// DeleteJob removes a job and its stage records.
func (s *SQLiteStore) DeleteJob(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	var removed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM stages WHERE job_id = ?", id); err != nil {
			return fmt.Errorf("delete stages: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("delete job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		removed = affected > 0
		return nil
	})
	return removed, err
}

// CreateStage adds one pending stage record for the job.
func (s *SQLiteStore) CreateStage(ctx context.Context, jobID string, name StageName) (*Stage, error) {
	created, err := s.CreateStages(ctx, jobID, name)
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateStages adds pending stage records in the given order. Either all are
// created or none.
func (s *SQLiteStore) CreateStages(ctx context.Context, jobID string, names ...StageName) ([]*Stage, error) {
	ctx = ensureContext(ctx)
	if err := validateStageNames(names); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		ids = ids[:0]
		var exists int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM jobs WHERE id = ?", jobID).Scan(&exists); err != nil {
			return fmt.Errorf("check job: %w", err)
		}
		if exists == 0 {
			return jobNotFound(jobID)
		}
		for _, name := range names {
			var dup int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM stages WHERE job_id = ? AND name = ?", jobID, string(name)).Scan(&dup); err != nil {
				return fmt.Errorf("check stage: %w", err)
			}
			if dup > 0 {
				return duplicateStage(jobID, name)
			}
			id := uuid.NewString()
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO stages (id, job_id, name, status, progress) VALUES (?, ?, ?, ?, 0)",
				id, jobID, string(name), string(StagePending),
			); err != nil {
				return fmt.Errorf("insert stage: %w", err)
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]*Stage, 0, len(ids))
	for _, id := range ids {
		stage, err := s.getStage(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, stage)
	}
	return out, nil
}

// ListStages returns the job's stage records ordered by start time.
func (s *SQLiteStore) ListStages(ctx context.Context, jobID string) ([]*Stage, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, "SELECT "+stageColumns+" FROM stages WHERE job_id = ?", jobID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	out := []*Stage{}
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		out = append(out, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	sortStages(out)
	return out, nil
}

// UpdateStage merges patch into the stage. Returns nil when the stage is absent.
func (s *SQLiteStore) UpdateStage(ctx context.Context, id string, patch StageUpdate) (*Stage, error) {
	ctx = ensureContext(ctx)
	var updated *Stage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, "SELECT "+stageColumns+" FROM stages WHERE id = ?", id)
		stage, err := scanStage(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load stage: %w", err)
		}
		if err := applyStageUpdate(stage, patch, s.now()); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE stages SET status = ?, progress = ?, started_at = ?, completed_at = ?, error_message = ? WHERE id = ?",
			string(stage.Status), stage.Progress, nullableTime(stage.StartedAt), nullableTime(stage.CompletedAt),
			nullableString(stage.ErrorMessage), id,
		)
		if err != nil {
			return fmt.Errorf("update stage: %w", err)
		}
		updated = stage
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLiteStore) getStage(ctx context.Context, id string) (*Stage, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+stageColumns+" FROM stages WHERE id = ?", id)
	stage, err := scanStage(row)
	if err != nil {
		return nil, fmt.Errorf("get stage: %w", err)
	}
	return stage, nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
