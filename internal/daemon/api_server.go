package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"vr180/internal/api"
	"vr180/internal/config"
	"vr180/internal/logging"
	"vr180/internal/logs"
	"vr180/internal/media/ffprobe"
	"vr180/internal/services"
)

// uploadField is the multipart form field carrying the video.
const uploadField = "video"

// Log page bounds for /api/logs.
const (
	defaultLogLimit = 100
	maxLogLimit     = 1000
	maxLogWait      = 30 * time.Second
)

// multipartOverhead is the body allowance for multipart headers on top of the
// upload size cap.
const multipartOverhead = 1 << 20

type apiServer struct {
	bind    string
	cfg     *config.Config
	logger  *slog.Logger
	daemon  *Daemon
	svc     *api.Service
	handler http.Handler
	server  *http.Server

	mu       sync.Mutex
	listener net.Listener
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		svc:    d.svc,
	}

	mux := http.NewServeMux()
	route := func(pattern string, fn http.HandlerFunc) {
		mux.HandleFunc(pattern, srv.withRequestID(fn))
	}
	route("POST /api/videos/upload", srv.handleUpload)
	route("GET /api/videos", srv.handleList)
	route("GET /api/videos/{id}", srv.handleGet)
	route("GET /api/videos/{id}/steps", srv.handleSteps)
	route("GET /api/videos/{id}/download/{type}", srv.handleDownload)
	route("DELETE /api/videos/{id}", srv.handleDelete)
	route("GET /api/status", srv.handleStatus)
	route("GET /api/logs", srv.handleLogs)

	srv.handler = mux
	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		s.logger.Info("api server disabled", logging.String("reason", "paths.api_bind is empty"))
		return nil
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.bind)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "api listen", "cannot bind "+s.bind, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Args(logging.ErrorAttrs(err)...)...)
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop(ctx context.Context) {
	s.mu.Lock()
	listener := s.listener
	s.listener = nil
	s.mu.Unlock()
	if listener == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown incomplete", logging.Error(err))
		_ = s.server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}

func (s *apiServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Upload.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxBytes+multipartOverhead)
	}
	filename, path, size, err := s.receiveUpload(r)
	if err != nil {
		var uploadErr *api.UploadValidationError
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &uploadErr):
			s.writeError(w, http.StatusBadRequest, uploadErr.Reason)
		case errors.As(err, &tooBig):
			s.writeError(w, http.StatusBadRequest, api.ReasonTooLarge)
		default:
			s.internalError(w, r, "upload failed", "Failed to upload video", err)
		}
		return
	}

	job, err := s.svc.Submit(r.Context(), filename, path, size)
	if err != nil {
		var metaErr *ffprobe.MetadataError
		if errors.As(err, &metaErr) {
			if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				s.logger.Warn("failed to remove rejected upload", logging.String("path", path), logging.Error(rmErr))
			}
			s.writeError(w, http.StatusBadRequest, "Invalid video: "+metaErr.Reason)
			return
		}
		s.internalError(w, r, "upload failed", "Failed to upload video", err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// receiveUpload streams the first file part named uploadField to disk.
func (s *apiServer) receiveUpload(r *http.Request) (filename, path string, size int64, err error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return "", "", 0, &api.UploadValidationError{Reason: api.ReasonMissingFile, Detail: "expected multipart/form-data"}
	}
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return "", "", 0, &api.UploadValidationError{Reason: api.ReasonMissingFile}
		}
		if err != nil {
			return "", "", 0, fmt.Errorf("read multipart: %w", err)
		}
		if part.FormName() != uploadField || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		filename = part.FileName()
		path, size, err = api.SaveUpload(s.cfg, filename, part)
		_ = part.Close()
		return filename, path, size, err
	}
}

func (s *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.ListJobs(r.Context())
	if err != nil {
		s.internalError(w, r, "list jobs failed", "Failed to get videos", err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "get job failed", "Failed to get video", err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Video not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

func (s *apiServer) handleSteps(w http.ResponseWriter, r *http.Request) {
	steps, err := s.svc.ListStages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "list stages failed", "Failed to get processing steps", err)
		return
	}
	s.writeJSON(w, http.StatusOK, steps)
}

func (s *apiServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	job, err := s.svc.GetJob(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, r, "download lookup failed", "Failed to download video", err)
		return
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "Video not found")
		return
	}

	path, filename := api.DownloadTarget(job, api.Download(r.PathValue("type")))
	if path == "" {
		s.writeError(w, http.StatusNotFound, "VR video not found")
		return
	}
	file, err := os.Open(path)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "VR video not found")
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, http.StatusNotFound, "VR video not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, filename, info.ModTime(), file)
}

func (s *apiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	removed, err := s.svc.DeleteJob(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, api.ErrJobBusy):
		s.writeError(w, http.StatusConflict, "Video is still processing")
	case err != nil:
		s.internalError(w, r, "delete job failed", "Failed to delete video", err)
	case !removed:
		s.writeError(w, http.StatusNotFound, "Video not found")
	default:
		s.writeJSON(w, http.StatusOK, api.Message{Message: "Video deleted successfully"})
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		Bind:         status.Bind,
		StoreBackend: status.StoreBackend,
		LockFilePath: status.LockFilePath,
		Workflow:     api.FromWorkflowStatus(status.Workflow, status.StageHealth),
		Dependencies: api.FromDependencies(status.Dependencies),
		Checks:       api.FromChecks(status.Checks),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = api.FormatTime(status.StartedAt)
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := logs.Request{Offset: -1, Limit: defaultLogLimit}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		req.Offset = offset
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		req.Limit = min(limit, maxLogLimit)
	}
	if raw := query.Get("wait"); raw != "" {
		wait, err := time.ParseDuration(raw)
		if err != nil || wait < 0 {
			s.writeError(w, http.StatusBadRequest, "Invalid wait")
			return
		}
		req.Wait = min(wait, maxLogWait)
	}

	path := filepath.Join(s.cfg.Paths.LogDir, logging.LogFileName)
	result, err := logs.Tail(r.Context(), path, req)
	if err != nil && r.Context().Err() == nil {
		s.internalError(w, r, "log tail failed", "Failed to read logs", err)
		return
	}
	lines := result.Lines
	if lines == nil {
		lines = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.LogTail{Lines: lines, Offset: result.Offset})
}

func (s *apiServer) internalError(w http.ResponseWriter, r *http.Request, logMsg, message string, err error) {
	attrs := append([]logging.Attr{logging.String("path", r.URL.Path)}, logging.ErrorAttrs(err)...)
	logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), logMsg, "api_error", attrs...)
	s.writeError(w, http.StatusInternalServerError, message)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.Message{Message: message})
}
