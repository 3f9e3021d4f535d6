// Package server exposes a FileMesh runtime over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hupe1980/filemesh/config"
	"github.com/hupe1980/filemesh/engine"
	"github.com/hupe1980/filemesh/history"
	"github.com/hupe1980/filemesh/logging"
)

// RunIDHeader carries the run identifier of an /agent response.
const RunIDHeader = "X-Run-ID"

// Executor runs one request to completion.
type Executor interface {
	Execute(ctx context.Context, text string) *engine.Result
}

// RunLookup serves finished runs.
type RunLookup interface {
	Get(runID string) (history.Record, error)
	Search(query string, limit int) []history.Record
}

// AgentRequest is the body of POST /agent.
type AgentRequest struct {
	Msg *string `json:"msg"`
}

// AgentResponse is the body returned by POST /agent. Msg mirrors Answer on
// success for clients expecting a {"msg": ...} reply.
type AgentResponse struct {
	Msg    string `json:"msg,omitempty"`
	Answer string `json:"answer,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status"`
	RunID  string `json:"run_id,omitempty"`
}

// Options configures the HTTP handler.
type Options struct {
	Logger logging.Logger
	// MaxBodyBytes caps the request body. 0 = unlimited.
	MaxBodyBytes int64
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// Graph renders the topology for /graph when set.
	Graph func() string
	// Runs serves /runs and /runs/{runID} when set.
	Runs RunLookup
}

// NewHandler creates the router for exec.
func NewHandler(exec Executor, optFns ...func(o *Options)) http.Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{exec: exec, opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/agent", h.agent)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	if opts.Graph != nil {
		r.Get("/graph", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(opts.Graph()))
		})
	}

	if opts.Runs != nil {
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{runID}", h.getRun)
	}

	return r
}

type handler struct {
	exec Executor
	opts Options
}

func (h *handler) agent(w http.ResponseWriter, r *http.Request) {
	body := r.Body
	if h.opts.MaxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	}

	var req AgentRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.opts.Logger.Warn("agent: invalid request body", "error", err)
		writeJSON(w, status, AgentResponse{Error: "invalid request body", Status: status})
		return
	}

	if req.Msg == nil || strings.TrimSpace(*req.Msg) == "" {
		writeJSON(w, http.StatusUnprocessableEntity, AgentResponse{
			Error:  "field 'msg' is required",
			Status: http.StatusUnprocessableEntity,
		})
		return
	}

	res := h.exec.Execute(r.Context(), *req.Msg)

	resp := AgentResponse{Status: res.Status, RunID: res.RunID}
	if res.OK() {
		resp.Msg = res.Answer
		resp.Answer = res.Answer
	} else {
		resp.Error = res.Message()
	}

	if res.RunID != "" {
		w.Header().Set(RunIDHeader, res.RunID)
	}

	writeJSON(w, res.Status, resp)
}

func (h *handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, AgentResponse{Error: "invalid limit", Status: http.StatusBadRequest})
			return
		}
		limit = n
	}

	writeJSON(w, http.StatusOK, h.opts.Runs.Search(r.URL.Query().Get("q"), limit))
}

func (h *handler) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rec, err := h.opts.Runs.Get(runID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, history.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, AgentResponse{Error: err.Error(), Status: status, RunID: runID})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Server wraps http.Server with the configured timeouts.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	logger          logging.Logger
}

// New creates a server for handler.
func New(handler http.Handler, cfg config.ServerConfig, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Server{
		srv: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.srv.Addr }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully,
// giving outstanding requests the configured deadline to complete.
func (s *Server) ListenAndServe(ctx context.Context) error {
	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server listening", "addr", s.srv.Addr)
		serverErrors <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down", "timeout", s.shutdownTimeout)

		shutdownCtx := context.Background()
		if s.shutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.shutdownTimeout)
			defer cancel()
		}

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("graceful shutdown did not complete", "error", err)
			return s.srv.Close()
		}

		return nil
	}
}
