// Package api exposes the task agent over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"

	"taskagent/internal/domain"
	"taskagent/internal/metrics"
)

const (
	maxBodySize        = 1 << 20 // 1MB
	defaultTaskTimeout = 120 * time.Second
	requestIDHeader    = "X-Request-ID"
)

// TaskProcessor runs one task to completion.
type TaskProcessor interface {
	ProcessTask(ctx context.Context, in domain.TaskInput) domain.AgentResponse
}

// ToolCatalog lists the registered tools.
type ToolCatalog interface {
	ListMetadata() []domain.ToolMetadata
	Names() []string
}

// AgentInfo is reported by GET /status.
type AgentInfo struct {
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	MaxIterations int    `json:"max_iterations"`
}

type Config struct {
	Addr         string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TaskTimeout  time.Duration
	MetricsPath  string // empty disables the metrics endpoint
	Agent        TaskProcessor
	Tools        ToolCatalog
	Info         AgentInfo
	Metrics      *metrics.Collector
	Logger       *slog.Logger
}

// Server is the HTTP edge in front of the observation loop.
type Server struct {
	cfg    Config
	logger *slog.Logger
	server *http.Server
}

func NewServer(cfg Config) *Server {
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = defaultTaskTimeout
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// Leave room for the whole loop to finish before the write deadline.
		cfg.WriteTimeout = cfg.TaskTimeout + 30*time.Second
	}
	s := &Server{cfg: cfg, logger: cfg.Logger}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /tasks", s.handleTask)
	if s.cfg.MetricsPath != "" && s.cfg.Metrics != nil {
		mux.Handle("GET "+s.cfg.MetricsPath, s.cfg.Metrics.Handler())
	}

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
	})
	return c.Handler(s.withRequestID(mux))
}

// ListenAndServe blocks until the server stops; a clean Shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("api server started", "addr", s.cfg.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down api server")
	return s.server.Shutdown(ctx)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		rw.Header().Set(requestIDHeader, id)
		start := time.Now()
		next.ServeHTTP(rw, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "request_id", id, "duration", time.Since(start))
	})
}

func (s *Server) handleHealth(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(rw http.ResponseWriter, _ *http.Request) {
	names := s.cfg.Tools.Names()
	writeJSON(rw, http.StatusOK, map[string]any{
		"status": "ok",
		"agent":  s.cfg.Info,
		"tools": map[string]any{
			"available": names,
			"count":     len(names),
		},
		"uptime_seconds": int64(s.cfg.Metrics.Uptime().Seconds()),
	})
}

func (s *Server) handleTools(rw http.ResponseWriter, _ *http.Request) {
	writeJSON(rw, http.StatusOK, s.cfg.Tools.ListMetadata())
}

type taskRequest struct {
	Task    *string        `json:"task"`
	Context map[string]any `json:"context"`
}

func (s *Server) handleTask(rw http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(rw, r.Body, maxBodySize)

	var req taskRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(rw, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(rw, http.StatusUnprocessableEntity, "invalid JSON body: "+err.Error())
		return
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		writeError(rw, http.StatusUnprocessableEntity, "request body must be a single JSON object")
		return
	}
	if req.Task == nil {
		writeError(rw, http.StatusUnprocessableEntity, "field 'task' is required")
		return
	}

	in := domain.TaskInput{Task: *req.Task, Context: req.Context}
	if err := in.Validate(); err != nil {
		writeError(rw, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	resp := s.cfg.Agent.ProcessTask(ctx, in)
	s.logger.Info("task processed",
		"request_id", rw.Header().Get(requestIDHeader),
		"status", resp.Status,
		"duration", time.Since(start),
	)
	writeJSON(rw, http.StatusOK, resp)
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	writeJSON(rw, status, map[string]string{"error": msg})
}
