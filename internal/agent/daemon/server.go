// Package daemon implements the automation daemon the overlay delegates
// search-intent questions to. It exposes a tiny HTTP API: GET /health
// and POST /agent/run.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"orbit/internal/agent"
	"orbit/internal/logging"
)

// Searcher resolves a task to a result, typically by driving a browser.
type Searcher interface {
	Search(ctx context.Context, query string) (*agent.TaskResult, error)
}

// Server routes daemon requests to a Searcher.
type Server struct {
	searcher Searcher
	mux      *http.ServeMux
}

// NewServer creates a daemon server.
func NewServer(searcher Searcher) *Server {
	s := &Server{searcher: searcher, mux: http.NewServeMux()}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/agent/run", s.handleRun)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe blocks serving on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	logging.Agent("daemon listening on %s", addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "orbit-agent-daemon",
	})
}

type runRequest struct {
	Task       string `json:"task"`
	UseBrowser bool   `json:"use_browser"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, agent.TaskResponse{
			Status: "error",
			Error:  fmt.Sprintf("invalid request: %v", err),
		})
		return
	}
	if req.Task == "" {
		writeJSON(w, http.StatusBadRequest, agent.TaskResponse{
			Status: "error",
			Error:  "task is required",
		})
		return
	}

	logging.Agent("running task: %s (use_browser=%v)", req.Task, req.UseBrowser)

	if !req.UseBrowser {
		// No browsing requested: acknowledge without driving the browser.
		writeJSON(w, http.StatusOK, agent.TaskResponse{
			Status: "success",
			Result: &agent.TaskResult{Summary: "Task acknowledged: " + req.Task},
		})
		return
	}

	result, err := s.searcher.Search(r.Context(), req.Task)
	if err != nil {
		logging.AgentDebug("search failed: %v", err)
		writeJSON(w, http.StatusOK, agent.TaskResponse{
			Status: "failure",
			Error:  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, agent.TaskResponse{
		Status: "success",
		Result: result,
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
