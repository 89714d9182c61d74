// Package agent talks to the local automation daemon. The daemon is
// optional: callers treat any failure here as "not available" and fall
// back to direct completion.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"orbit/internal/config"
	"orbit/internal/logging"
)

// TaskResult is the payload the daemon returns for a completed task.
type TaskResult struct {
	Summary     string `json:"summary"`
	URL         string `json:"url,omitempty"`
	SearchQuery string `json:"search_query,omitempty"`
}

// TaskResponse is the daemon's envelope for /agent/run.
type TaskResponse struct {
	Status string      `json:"status"`
	Result *TaskResult `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Client calls the automation daemon over HTTP. Availability is cached
// between calls and refreshed on demand, so a daemon that comes up
// mid-session gets picked up.
type Client struct {
	baseURL       string
	healthTimeout http.Client
	taskTimeout   http.Client

	mu        sync.Mutex
	available bool
	checked   bool
}

// NewClient creates a client from config.
func NewClient(cfg *config.Config) *Client {
	baseURL := cfg.Agent.DaemonURL
	if baseURL == "" {
		baseURL = "http://localhost:4823"
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		healthTimeout: http.Client{Timeout: cfg.GetAgentHealthTimeout()},
		taskTimeout:   http.Client{Timeout: cfg.GetAgentTaskTimeout()},
	}
}

// CheckAvailability probes /health and caches the outcome.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return c.setAvailable(false)
	}
	resp, err := c.healthTimeout.Do(req)
	if err != nil {
		logging.AgentDebug("daemon not available at %s: %v", c.baseURL, err)
		return c.setAvailable(false)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	ok := resp.StatusCode == http.StatusOK
	logging.Agent("daemon availability at %s: %v", c.baseURL, ok)
	return c.setAvailable(ok)
}

func (c *Client) setAvailable(v bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = v
	c.checked = true
	return v
}

// IsAvailable reports the cached availability, probing once if the
// daemon has never been checked.
func (c *Client) IsAvailable(ctx context.Context) bool {
	c.mu.Lock()
	checked, available := c.checked, c.available
	c.mu.Unlock()
	if !checked {
		return c.CheckAvailability(ctx)
	}
	return available
}

// RunTask submits a task to the daemon and waits for its result within
// the task timeout. A down daemon is re-probed once before giving up.
func (c *Client) RunTask(ctx context.Context, task string, useBrowser bool) (*TaskResponse, error) {
	if !c.IsAvailable(ctx) {
		if !c.CheckAvailability(ctx) {
			return nil, fmt.Errorf("agent daemon is not available")
		}
	}

	payload, err := json.Marshal(map[string]interface{}{
		"task":        task,
		"use_browser": useBrowser,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/agent/run", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	logging.Agent("sending task to daemon: %s (use_browser=%v)", task, useBrowser)

	resp, err := c.taskTimeout.Do(req)
	if err != nil {
		c.setAvailable(false)
		return nil, fmt.Errorf("agent daemon error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read daemon response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("agent daemon returned status %d: %s", resp.StatusCode, string(body))
	}

	var out TaskResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse daemon response: %w", err)
	}
	return &out, nil
}
