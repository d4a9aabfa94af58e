package api

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"vr180/internal/config"
	"vr180/internal/services"
)

// Reasons reported by UploadValidationError.
const (
	ReasonMissingFile = "No video file provided"
	ReasonBadType     = "Invalid file type. Only MP4, MOV, and AVI files are allowed."
	ReasonTooLarge    = "File too large"
)

// UploadValidationError reports an upload rejected before a job was created.
type UploadValidationError struct {
	Filename string
	Reason   string
	Detail   string
}

func (e *UploadValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%s)", e.Reason, e.Detail)
	}
	return e.Reason
}

// Is matches services.ErrValidation so callers can classify upload failures.
func (e *UploadValidationError) Is(target error) bool {
	return target == services.ErrValidation
}

// ValidateUpload checks filename against the extension whitelist and size
// against the configured cap. A negative size skips the size check.
func ValidateUpload(cfg *config.Config, filename string, size int64) error {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return &UploadValidationError{Reason: ReasonMissingFile}
	}
	if !cfg.IsAllowedExtension(filepath.Ext(filename)) {
		return &UploadValidationError{Filename: filename, Reason: ReasonBadType}
	}
	if size >= 0 && cfg.Upload.MaxBytes > 0 && size > cfg.Upload.MaxBytes {
		return tooLarge(filename, cfg.Upload.MaxBytes)
	}
	return nil
}

// SaveUpload validates filename and streams r into the upload directory under
// a random name that keeps the original extension. Uploads exceeding the size
// cap are removed and rejected.
func SaveUpload(cfg *config.Config, filename string, r io.Reader) (string, int64, error) {
	if r == nil {
		return "", 0, &UploadValidationError{Filename: filename, Reason: ReasonMissingFile}
	}
	if err := ValidateUpload(cfg, filename, -1); err != nil {
		return "", 0, err
	}
	if err := os.MkdirAll(cfg.Paths.UploadDir, 0o755); err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "upload", "create upload dir", "upload directory is not writable", err)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	target := filepath.Join(cfg.Paths.UploadDir, uuid.NewString()+ext)
	out, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "upload", "create file", "could not store upload", err)
	}

	src := r
	if cfg.Upload.MaxBytes > 0 {
		src = io.LimitReader(r, cfg.Upload.MaxBytes+1)
	}
	written, copyErr := io.Copy(out, src)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(target)
		return "", 0, services.Wrap(services.ErrTransient, "upload", "write file", "could not store upload", err)
	}
	if cfg.Upload.MaxBytes > 0 && written > cfg.Upload.MaxBytes {
		_ = os.Remove(target)
		return "", 0, tooLarge(filename, cfg.Upload.MaxBytes)
	}
	if written == 0 {
		_ = os.Remove(target)
		return "", 0, &UploadValidationError{Filename: filename, Reason: ReasonMissingFile, Detail: "empty file"}
	}
	return target, written, nil
}

func tooLarge(filename string, limit int64) error {
	return &UploadValidationError{
		Filename: filename,
		Reason:   ReasonTooLarge,
		Detail:   "limit " + humanize.IBytes(uint64(limit)),
	}
}
