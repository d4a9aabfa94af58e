package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vr180/internal/api"
)

// ErrDaemonUnavailable reports that no daemon answered at the configured address.
var ErrDaemonUnavailable = errors.New("daemon not reachable")

// requestTimeout bounds calls other than uploads and downloads.
const requestTimeout = 10 * time.Second

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("daemon returned %d", e.StatusCode)
	}
	return fmt.Sprintf("daemon returned %d: %s", e.StatusCode, e.Message)
}

// Client provides typed access to the daemon API.
type Client struct {
	baseURL string
	http    *http.Client
}

// BaseURL turns a listen address such as "127.0.0.1:7488" or ":7488" into
// the URL the CLI dials. Values that already carry a scheme are returned
// unchanged.
func BaseURL(bind string) string {
	bind = strings.TrimSpace(bind)
	if strings.HasPrefix(bind, "http://") || strings.HasPrefix(bind, "https://") {
		return strings.TrimRight(bind, "/")
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// New returns a client for the daemon at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// Status retrieves the daemon status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.getJSON(ctx, "/api/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListJobs returns every job, newest first.
func (c *Client) ListJobs(ctx context.Context) ([]api.Job, error) {
	var resp []api.Job
	if err := c.getJSON(ctx, "/api/videos", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Describe returns a job, or nil when the daemon does not know it.
func (c *Client) Describe(ctx context.Context, id string) (*api.Job, error) {
	var resp api.Job
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(id), &resp); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &resp, nil
}

// Steps returns the job's stage records.
func (c *Client) Steps(ctx context.Context, id string) ([]api.Stage, error) {
	var resp []api.Stage
	if err := c.getJSON(ctx, "/api/videos/"+url.PathEscape(id)+"/steps", &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Delete removes a job and its files. It reports false when the job is unknown.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	var resp api.Message
	if err := c.doJSON(ctx, http.MethodDelete, "/api/videos/"+url.PathEscape(id), nil, "", &resp); err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Upload streams the file at path to the daemon and returns the created job.
func (c *Client) Upload(ctx context.Context, path string) (*api.Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	go func() {
		part, err := writer.CreateFormFile("video", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, file)
		}
		if err == nil {
			err = writer.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	var resp api.Job
	if err := c.doJSON(ctx, http.MethodPost, "/api/videos/upload", pr, writer.FormDataContentType(), &resp); err != nil {
		_ = pr.CloseWithError(err)
		return nil, err
	}
	return &resp, nil
}

// Download writes the derivative of kind to w and returns the attachment
// filename announced by the daemon.
func (c *Client) Download(ctx context.Context, id string, kind api.Download, w io.Writer) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/videos/"+url.PathEscape(id)+"/download/"+url.PathEscape(string(kind)), nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	filename := ""
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		filename = params["filename"]
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return filename, fmt.Errorf("download: %w", err)
	}
	return filename, nil
}

// Logs fetches a page of daemon log lines. A negative offset asks for the
// last limit lines; wait lets the daemon hold the request until new lines
// arrive.
func (c *Client) Logs(ctx context.Context, offset int64, limit int, wait time.Duration) (*api.LogTail, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout+wait)
	defer cancel()
	query := url.Values{}
	query.Set("offset", strconv.FormatInt(offset, 10))
	query.Set("limit", strconv.Itoa(limit))
	if wait > 0 {
		query.Set("wait", wait.String())
	}
	var resp api.LogTail
	if err := c.doJSON(ctx, http.MethodGet, "/api/logs?"+query.Encode(), nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return c.doJSON(ctx, http.MethodGet, path, nil, "", out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// do sends the request and converts transport failures and non-2xx
// responses into errors. The caller closes the body on success.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) && opErr.Op == "dial" {
			return nil, fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.baseURL, err)
		}
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var msg api.Message
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&msg); err == nil {
		apiErr.Message = msg.Message
	}
	return nil, apiErr
}

func isNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
