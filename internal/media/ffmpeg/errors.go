package ffmpeg

import (
	"fmt"
	"strings"

	"vr180/internal/services"
)

// TranscodeError reports a failed ffmpeg invocation.
type TranscodeError struct {
	Binary     string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *TranscodeError) Error() string {
	var b strings.Builder
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, "%s exited with code %d", e.Binary, e.ExitCode)
	} else {
		fmt.Fprintf(&b, "%s failed to run", e.Binary)
		if e.Err != nil {
			fmt.Fprintf(&b, ": %v", e.Err)
		}
	}
	if tail := lastLine(e.StderrTail); tail != "" {
		b.WriteString(": ")
		b.WriteString(tail)
	}
	return b.String()
}

func (e *TranscodeError) Unwrap() error {
	return e.Err
}

// Is matches services.ErrExternalTool so failures classify as tool errors.
func (e *TranscodeError) Is(target error) bool {
	return target == services.ErrExternalTool
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
