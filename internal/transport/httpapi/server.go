// Package httpapi is the minimal REST surface over an Engine: register
// a workflow, start/status/resume/cancel an execution, list executions.
//
// Grounded on the teacher's internal/infrastructure/api/rest package
// (ServerConfig with CORS/rate-limit toggles, API-key middleware,
// health/ready endpoints), narrowed to the handful of routes
// SPEC_FULL.md actually names — FlowScript does not carry the
// teacher's rate limiter or REST API's broader surface (pagination,
// webhooks, templates), which are out of scope per spec §1.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/flowscript-dev/flowscript/internal/domain"
	"github.com/flowscript-dev/flowscript/internal/manager"
)

// ServerConfig toggles optional middleware, mirroring the teacher's
// rest.ServerConfig shape minus the rate limiter (no SPEC_FULL.md
// component needs request throttling for a single-process engine).
type ServerConfig struct {
	EnableCORS bool
	APIKeys    []string
}

// Server is the root http.Handler for the REST surface.
type Server struct {
	mgr    *manager.Manager
	engine *engineAdapter
	log    zerolog.Logger
	cfg    ServerConfig
	mux    *http.ServeMux
}

// engineAdapter narrows flowscript.Engine to the one method this
// package calls (workflow registration from JSON), avoiding an import
// cycle with the root flowscript package.
type engineAdapter struct {
	registerJSON func(raw []byte) (*domain.Workflow, error)
}

// NewServer builds the REST surface. register is typically
// (*flowscript.Engine).RegisterWorkflowJSON.
func NewServer(mgr *manager.Manager, register func(raw []byte) (*domain.Workflow, error), log zerolog.Logger, cfg ServerConfig) *Server {
	s := &Server{
		mgr:    mgr,
		engine: &engineAdapter{registerJSON: register},
		log:    log,
		cfg:    cfg,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /ready", s.handleReady)
	s.mux.HandleFunc("POST /api/v1/workflows", s.handleCreateWorkflow)
	s.mux.HandleFunc("POST /api/v1/executions", s.handleStartExecution)
	s.mux.HandleFunc("GET /api/v1/executions", s.handleListExecutions)
	s.mux.HandleFunc("GET /api/v1/executions/{id}", s.handleGetExecution)
	s.mux.HandleFunc("POST /api/v1/executions/{id}/resume/{nodeId}", s.handleResume)
	s.mux.HandleFunc("POST /api/v1/executions/{id}/cancel", s.handleCancel)
	s.mux.HandleFunc("GET /api/v1/metrics/workflows", s.handleWorkflowMetrics)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.cfg.EnableCORS {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}
	if len(s.cfg.APIKeys) > 0 && !s.isHealthPath(r.URL.Path) && !s.authorized(r) {
		writeError(w, http.StatusUnauthorized, domain.NewError(domain.CodeInvalidInput, "missing or invalid api key"))
		return
	}
	s.log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
	s.mux.ServeHTTP(w, r)
}

func (s *Server) isHealthPath(path string) bool {
	return path == "/health" || path == "/ready"
}

func (s *Server) authorized(r *http.Request) bool {
	got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	for _, key := range s.cfg.APIKeys {
		if got == key {
			return true
		}
	}
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	wf, err := s.engine.registerJSON(body)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": wf.ID, "name": wf.Name})
}

type startExecutionRequest struct {
	WorkflowID string         `json:"workflowId"`
	Input      map[string]any `json:"input"`
}

func (s *Server) handleStartExecution(w http.ResponseWriter, r *http.Request) {
	var req startExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.WrapError(domain.CodeInvalidInput, "malformed request body", err))
		return
	}
	id, err := s.mgr.Start(r.Context(), req.WorkflowID, req.Input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"executionId": id})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := manager.Filter{
		WorkflowID: r.URL.Query().Get("workflowId"),
		Status:     domain.ExecutionStatus(r.URL.Query().Get("status")),
	}
	writeJSON(w, http.StatusOK, s.mgr.List(filter))
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	rec, err := s.mgr.Status(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type resumeRequest struct {
	Data any `json:"data"`
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, domain.WrapError(domain.CodeInvalidInput, "malformed request body", err))
			return
		}
	}
	if err := s.mgr.Resume(r.PathValue("id"), r.PathValue("nodeId"), req.Data); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resumed"})
}

// handleWorkflowMetrics reports the running execution-duration
// aggregates SPEC_FULL.md's "Metrics summary" names. Empty if the
// Manager was built without a Collector.
func (s *Server) handleWorkflowMetrics(w http.ResponseWriter, r *http.Request) {
	collector := s.mgr.Metrics()
	if collector == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, collector.AllWorkflows())
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.mgr.Cancel(r.PathValue("id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, domain.WrapError(domain.CodeInvalidInput, "failed to read request body", err)
	}
	return body, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeDomainError maps a domain.Error's code to an HTTP status,
// mirroring the teacher's rest error-mapping middleware.
func writeDomainError(w http.ResponseWriter, err error) {
	var derr *domain.Error
	status := http.StatusInternalServerError
	if asError(err, &derr) {
		switch derr.Code {
		case domain.CodeUnknownWorkflow, domain.CodeUnknownExecution, domain.CodeUnknownNode, domain.CodeUnknownPause:
			status = http.StatusNotFound
		case domain.CodeConfigInvalid, domain.CodeInvalidPath, domain.CodeTypeMismatch, domain.CodeInvalidInput, domain.CodeUnroutedEdge:
			status = http.StatusBadRequest
		case domain.CodeNotPaused, domain.CodeAlreadyResumed, domain.CodeInvalidState:
			status = http.StatusConflict
		}
	}
	writeError(w, status, err)
}

func asError(err error, target **domain.Error) bool {
	for err != nil {
		if de, ok := err.(*domain.Error); ok {
			*target = de
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
