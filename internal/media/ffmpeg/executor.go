package ffmpeg

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// stderrTailBytes bounds the stderr retained for error reports.
const stderrTailBytes = 4096

// RunOptions tunes a single ffmpeg invocation.
type RunOptions struct {
	// OnStart is called once the process has been spawned.
	OnStart func()
	// Stderr, when set, also receives the live stderr stream.
	Stderr io.Writer
}

// Run executes binary with args and waits for it to exit. A non-zero exit or
// spawn failure is returned as *TranscodeError.
func Run(ctx context.Context, binary string, args []string, opts RunOptions) error {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	tail := &tailBuffer{limit: stderrTailBytes}
	cmd := exec.CommandContext(ctx, binary, args...)
	if opts.Stderr != nil {
		cmd.Stderr = io.MultiWriter(tail, opts.Stderr)
	} else {
		cmd.Stderr = tail
	}

	if err := cmd.Start(); err != nil {
		return &TranscodeError{Binary: binary, ExitCode: -1, Err: err}
	}
	if opts.OnStart != nil {
		opts.OnStart()
	}

	if err := cmd.Wait(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &TranscodeError{Binary: binary, ExitCode: code, StderrTail: tail.String(), Err: err}
	}
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
