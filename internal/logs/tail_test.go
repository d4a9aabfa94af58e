package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"vr180/internal/logs"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vr180.log")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func appendLog(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestTailLastLines(t *testing.T) {
	path := writeLog(t, "a\nb\nc\nd\n")
	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{name: "fewer than file", limit: 2, want: []string{"c", "d"}},
		{name: "exact", limit: 4, want: []string{"a", "b", "c", "d"}},
		{name: "more than file", limit: 10, want: []string{"a", "b", "c", "d"}},
		{name: "none", limit: 0, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := logs.Tail(context.Background(), path, logs.Request{Offset: -1, Limit: tt.limit})
			if err != nil {
				t.Fatalf("Tail: %v", err)
			}
			if !reflect.DeepEqual(result.Lines, tt.want) {
				t.Fatalf("got %#v, want %#v", result.Lines, tt.want)
			}
			if result.Offset != 8 {
				t.Fatalf("expected offset at end of file, got %d", result.Offset)
			}
		})
	}
}

func TestTailResumesAndHoldsPartialLine(t *testing.T) {
	path := writeLog(t, "one\n")
	first, err := logs.Tail(context.Background(), path, logs.Request{Offset: -1, Limit: 5})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}

	appendLog(t, path, "two\nthr")
	second, err := logs.Tail(context.Background(), path, logs.Request{Offset: first.Offset})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(second.Lines, []string{"two"}) {
		t.Fatalf("expected only the complete line, got %#v", second.Lines)
	}

	appendLog(t, path, "ee\n")
	third, err := logs.Tail(context.Background(), path, logs.Request{Offset: second.Offset})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(third.Lines, []string{"three"}) {
		t.Fatalf("expected completed line, got %#v", third.Lines)
	}
}

func TestTailForwardLimit(t *testing.T) {
	path := writeLog(t, "a\nb\nc\n")
	page, err := logs.Tail(context.Background(), path, logs.Request{Offset: 0, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(page.Lines, []string{"a", "b"}) || page.Offset != 4 {
		t.Fatalf("unexpected first page %#v at %d", page.Lines, page.Offset)
	}
	page, err = logs.Tail(context.Background(), path, logs.Request{Offset: page.Offset, Limit: 2})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(page.Lines, []string{"c"}) {
		t.Fatalf("unexpected second page %#v", page.Lines)
	}
}

func TestTailRestartsAfterTruncation(t *testing.T) {
	path := writeLog(t, "old line one\nold line two\n")
	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatalf("truncate log: %v", err)
	}
	page, err := logs.Tail(context.Background(), path, logs.Request{Offset: 26})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(page.Lines, []string{"new"}) {
		t.Fatalf("expected reread after truncation, got %#v", page.Lines)
	}
}

func TestTailWaitsForNewLines(t *testing.T) {
	path := writeLog(t, "start\n")
	go func() {
		time.Sleep(50 * time.Millisecond)
		appendLog(t, path, "later\n")
	}()

	page, err := logs.Tail(context.Background(), path, logs.Request{Offset: 6, Wait: 5 * time.Second})
	if err != nil {
		t.Fatalf("Tail: %v", err)
	}
	if !reflect.DeepEqual(page.Lines, []string{"later"}) {
		t.Fatalf("expected appended line, got %#v", page.Lines)
	}
}

func TestTailWaitTimesOutAndHonoursContext(t *testing.T) {
	path := writeLog(t, "start\n")
	page, err := logs.Tail(context.Background(), path, logs.Request{Offset: 6, Wait: 300 * time.Millisecond})
	if err != nil || len(page.Lines) != 0 || page.Offset != 6 {
		t.Fatalf("expected empty page at 6, got %#v, %v", page, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := logs.Tail(ctx, path, logs.Request{Offset: 6, Wait: time.Second}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestTailMissingFile(t *testing.T) {
	page, err := logs.Tail(context.Background(), filepath.Join(t.TempDir(), "absent.log"), logs.Request{Offset: -1, Limit: 5})
	if err != nil || len(page.Lines) != 0 || page.Offset != 0 {
		t.Fatalf("expected empty page, got %#v, %v", page, err)
	}
}
