package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// pollInterval is how often Tail re-reads the file while waiting for lines.
const pollInterval = 200 * time.Millisecond

// Request selects lines from a log file.
type Request struct {
	// Offset is a byte position returned by a previous call. Negative
	// offsets select the last Limit lines of the file.
	Offset int64
	// Limit caps the number of lines returned. Zero means no cap when
	// reading forward and no lines at all when Offset is negative.
	Limit int
	// Wait, when positive, blocks up to this long for new lines if none
	// are available yet.
	Wait time.Duration
}

// Result is a page of lines and the offset to pass to the next call.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads a page of complete lines from path. A missing file yields an
// empty page at offset zero. A file shorter than the requested offset is
// assumed truncated and read from the start.
func Tail(ctx context.Context, path string, req Request) (Result, error) {
	var (
		lines  []string
		offset int64
		err    error
	)
	if req.Offset < 0 {
		lines, offset, err = lastLines(path, req.Limit)
	} else {
		lines, offset, err = readFrom(path, req.Offset, req.Limit)
	}
	if err != nil || len(lines) > 0 || req.Wait <= 0 {
		return Result{Lines: lines, Offset: offset}, err
	}

	deadline := time.Now().Add(req.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return Result{Offset: offset}, ctx.Err()
		case <-ticker.C:
		}
		lines, next, err := readFrom(path, offset, req.Limit)
		if err != nil {
			return Result{Offset: offset}, err
		}
		offset = next
		if len(lines) > 0 {
			return Result{Lines: lines, Offset: offset}, nil
		}
	}
	return Result{Offset: offset}, nil
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// lastLines keeps the final limit lines in a ring while scanning the file.
func lastLines(path string, limit int) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	var ring []string
	if limit > 0 {
		ring = make([]string, 0, limit)
	}
	next := 0
	var offset int64
	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		if limit <= 0 {
			continue
		}
		if len(ring) < limit {
			ring = append(ring, trimLine(line))
			continue
		}
		ring[next] = trimLine(line)
		next = (next + 1) % limit
	}
	if len(ring) == 0 {
		return nil, offset, nil
	}
	return append(ring[next:], ring[:next]...), offset, nil
}

func readFrom(path string, offset int64, limit int) ([]string, int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReader(file)
	for limit <= 0 || len(lines) < limit {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, trimLine(line))
	}
	return lines, offset, nil
}

func trimLine(line string) string {
	return strings.TrimRight(line, "\r\n")
}
