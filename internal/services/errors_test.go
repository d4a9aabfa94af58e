package services_test

import (
	"errors"
	"strings"
	"testing"

	"vr180/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "stereoscopic_generation", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"stereoscopic_generation", "ffmpeg", "failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsExtractsFields(t *testing.T) {
	err := services.WithHint(
		services.Wrap(services.ErrValidation, "upload", "extension", "unsupported file type", nil),
		"use mp4, mov, or avi",
	)
	details := services.Details(err)
	if details.Kind != services.KindValidation {
		t.Fatalf("expected validation kind, got %s", details.Kind)
	}
	if details.Stage != "upload" || details.Operation != "extension" {
		t.Fatalf("unexpected stage/operation: %q %q", details.Stage, details.Operation)
	}
	if details.Message != "unsupported file type" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
	if details.Hint != "use mp4, mov, or avi" {
		t.Fatalf("unexpected hint: %q", details.Hint)
	}
}

func TestDetailsPlainError(t *testing.T) {
	details := services.Details(errors.New("plain failure"))
	if details.Kind != services.KindUnknown {
		t.Fatalf("expected unknown kind, got %s", details.Kind)
	}
	if details.Message != "plain failure" {
		t.Fatalf("unexpected message: %q", details.Message)
	}
	if services.Details(nil).Kind != services.KindUnknown {
		t.Fatal("expected unknown kind for nil error")
	}
}
