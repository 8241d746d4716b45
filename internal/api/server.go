package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"stemsense/internal/artifacts"
	"stemsense/internal/config"
	"stemsense/internal/logging"
	"stemsense/internal/task"
)

// Launcher starts background processing for a created task.
type Launcher interface {
	Launch(taskID string)
}

// Server is the HTTP gateway for job submission, status, cancellation, and
// signed artifact delivery.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *task.Store
	engine Launcher
	bucket *artifacts.BucketStore

	listener net.Listener
	server   *http.Server
}

// NewServer builds the gateway.
func NewServer(cfg *config.Config, store *task.Store, engine Launcher, bucket *artifacts.BucketStore, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		logger: logger.With(logging.String(logging.FieldComponent, "api-server")),
		store:  store,
		engine: engine,
		bucket: bucket,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, wrapped with CORS for the configured
// frontend origin.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /tasks", s.handleListTasks)
	mux.HandleFunc("GET /tasks/{task_id}", s.handleGetTask)
	mux.HandleFunc("POST /cancel/{task_id}", s.handleCancel)
	mux.HandleFunc("GET /download/{filename}", s.handleDownload)
	mux.HandleFunc("GET /artifacts/{name}", s.handleArtifact)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return s.withCORS(mux)
}

// Start begins serving on the configured bind address and shuts down when
// ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	if bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		s.writeError(w, http.StatusBadRequest, "invalid form payload")
		return
	}
	input := strings.TrimSpace(r.FormValue("input"))
	if input == "" {
		s.writeError(w, http.StatusBadRequest, "form field 'input' is required")
		return
	}

	id := uuid.NewString()
	if _, err := s.store.Create(r.Context(), id, input); err != nil {
		s.logger.Error("task create failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	s.engine.Launch(id)

	s.logger.Info("job submitted",
		logging.String(logging.FieldTaskID, id),
		logging.String("input", input),
	)
	s.writeJSON(w, http.StatusOK, ProcessResponse{
		TaskID:  id,
		Message: "Job submitted successfully",
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")
	item, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, FromTask(item))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var statuses []task.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := task.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	items, err := s.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	records := make([]TaskRecord, 0, len(items))
	for _, item := range items {
		records = append(records, FromTask(item))
	}
	s.writeJSON(w, http.StatusOK, TaskListResponse{Tasks: records})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("task_id")
	transitioned, err := s.store.RequestCancel(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Task not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !transitioned {
		// Already terminal is a report, not an error.
		s.writeJSON(w, http.StatusOK, CancelResponse{
			TaskID:  id,
			Message: "Task already finished or cancelled",
		})
		return
	}

	s.logger.Info("cancellation requested", logging.String(logging.FieldTaskID, id))
	s.writeJSON(w, http.StatusOK, CancelResponse{
		TaskID:  id,
		Message: "Task cancellation requested",
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")
	exists, err := s.bucket.Exists(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	if !exists {
		s.writeError(w, http.StatusNotFound, "File not found")
		return
	}
	signed, err := s.bucket.SignedURL(name, 0)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.Redirect(w, r, signed, http.StatusFound)
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	query := r.URL.Query()
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusForbidden, "invalid or missing expiry")
		return
	}
	objectPath, err := s.bucket.VerifyRequest(name, expires, query.Get("signature"), time.Now())
	if err != nil {
		if errors.Is(err, artifacts.ErrExpiredURL) {
			s.writeError(w, http.StatusForbidden, "signed url expired")
			return
		}
		s.writeError(w, http.StatusForbidden, "invalid signature")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, objectPath)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.Health(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Running: true,
		TaskCounts: map[string]int{
			"total":      health.Total,
			"queued":     health.Queued,
			"processing": health.Processing,
			"completed":  health.Completed,
			"failed":     health.Failed,
			"cancelled":  health.Cancelled,
		},
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	origin := strings.TrimSpace(s.cfg.Gateway.FrontendOrigin)
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
