// Package ask owns the single-flight lifecycle of answering one user
// question: delegation decision, streaming with cancellation,
// persistence hand-off, and detached best-effort enhancement.
package ask

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"orbit/internal/agent"
	"orbit/internal/bus"
	"orbit/internal/config"
	"orbit/internal/llm"
	"orbit/internal/logging"
)

// ConversationStore is the persistence surface the coordinator needs.
// All calls are fire-and-forget from the response path's perspective.
type ConversationStore interface {
	GetOrCreateActive(kind string) (string, error)
	AddMessage(sessionID, role, content string) error
	UpdateLastAssistantMessage(sessionID, content string) error
}

// Delegator runs browser tasks on the external agent daemon.
type Delegator interface {
	RunTask(ctx context.Context, task string, useBrowser bool) (*agent.TaskResponse, error)
}

// Capturer grabs a base64 JPEG screenshot, best effort.
type Capturer interface {
	Capture(ctx context.Context) (string, error)
}

// Coordinator drives ask requests. At most one session is active at a
// time; a new submit supersedes and cancels the previous one.
type Coordinator struct {
	cfg      *config.Config
	provider llm.StreamingProvider
	delegate Delegator
	store    ConversationStore
	capturer Capturer
	enhancer *Enhancer
	events   *bus.Bus
	onUpdate func(Update)

	mu       sync.Mutex
	current  *session
	response string
	state    State
	lastErr  string
}

// Options carries the optional collaborators. Any field may be nil;
// the corresponding behavior is skipped.
type Options struct {
	Delegate Delegator
	Store    ConversationStore
	Capturer Capturer
	Enhancer *Enhancer
	Events   *bus.Bus
	OnUpdate func(Update)
}

// NewCoordinator creates a coordinator.
func NewCoordinator(cfg *config.Config, provider llm.StreamingProvider, opts Options) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		provider: provider,
		delegate: opts.Delegate,
		store:    opts.Store,
		capturer: opts.Capturer,
		enhancer: opts.Enhancer,
		events:   opts.Events,
		onUpdate: opts.OnUpdate,
		state:    StateIdle,
	}
}

// Submit starts answering question, superseding any in-flight session.
// Empty questions (after trimming) reset the state and do nothing else.
// The work runs detached; progress is observed through OnUpdate.
func (c *Coordinator) Submit(question string, history []string) {
	question = strings.TrimSpace(question)

	c.mu.Lock()
	if c.current != nil {
		c.current.cancel(ErrSuperseded)
		c.current = nil
	}

	if question == "" {
		c.state = StateIdle
		c.response = ""
		c.mu.Unlock()
		c.broadcast(nil)
		return
	}

	sess := newSession(context.Background(), question)
	c.current = sess
	c.state = StateLoading
	c.response = ""
	c.mu.Unlock()

	if c.events != nil {
		c.events.Emit(bus.VisibilityIntent{Target: bus.WindowAsk, Visible: true})
	}
	c.broadcast(sess)

	logging.Ask("processing question: %.50s", question)

	go c.run(sess, question, history)
}

// Close cancels any in-flight session and resets to idle. The user
// closing the response surface is not an error.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.current != nil {
		c.current.cancel(ErrClosed)
		c.current = nil
	}
	c.state = StateIdle
	c.response = ""
	c.mu.Unlock()

	c.broadcast(nil)
	if c.events != nil {
		c.events.Emit(bus.VisibilityIntent{Target: bus.WindowAsk, Visible: false})
	}
}

// State returns the current state and accumulated response.
func (c *Coordinator) State() (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.response
}

// broadcast sends the current state to the UI listener. When sess is
// non-nil the broadcast is dropped if the session was superseded, so a
// stale reader can never overwrite the active session's state.
func (c *Coordinator) broadcast(sess *session) {
	c.mu.Lock()
	if sess != nil && c.current != sess {
		c.mu.Unlock()
		return
	}
	u := Update{State: c.state, Response: c.response}
	if sess != nil {
		u.Question = sess.question
	}
	if c.state == StateError {
		u.Err = c.lastErr
	}
	cb := c.onUpdate
	c.mu.Unlock()

	if cb != nil {
		cb(u)
	}
}

// apply mutates coordinator state on behalf of sess, dropping the
// mutation if sess is no longer current.
func (c *Coordinator) apply(sess *session, fn func()) bool {
	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return false
	}
	fn()
	c.mu.Unlock()
	c.broadcast(sess)
	return true
}

func (c *Coordinator) run(sess *session, question string, history []string) {
	sessionID := c.persistUserTurn(question)

	if c.tryDelegate(sess, question, sessionID) {
		return
	}

	if !c.cfg.IsLLMConfigured() {
		logging.AskError("no completion model configured")
		c.fail(sess, ErrNotConfigured)
		return
	}

	imageB64 := ""
	if c.capturer != nil && c.cfg.Screenshot.Enabled {
		img, err := c.capturer.Capture(sess.ctx)
		if err != nil {
			logging.AskDebug("screenshot unavailable, proceeding text-only: %v", err)
		} else {
			imageB64 = img
		}
	}

	messages := buildMessages(question, history, imageB64)

	body, err := c.provider.StreamChat(sess.ctx, messages)
	if err != nil && imageB64 != "" && isMultimodalError(err) {
		logging.Ask("multimodal request failed, retrying text-only: %v", err)
		body, err = c.provider.StreamChat(sess.ctx, buildMessages(question, history, ""))
	}
	if err != nil {
		if cancelled, cause := sess.cancelled(); cancelled {
			logging.AskDebug("stream open cancelled: %v", cause)
			return
		}
		c.fail(sess, err)
		return
	}
	defer body.Close()

	c.processStream(sess, body, sessionID)
}

// tryDelegate routes search-intent questions to the agent daemon. Any
// failure falls through to the normal completion path and reports false.
func (c *Coordinator) tryDelegate(sess *session, question, sessionID string) bool {
	if c.delegate == nil || !c.cfg.Agent.Enabled || !IsSearchQuery(question) {
		return false
	}

	logging.Ask("search intent detected, delegating: %.50s", question)

	ctx, cancel := context.WithTimeout(sess.ctx, c.cfg.GetAgentTaskTimeout())
	defer cancel()

	resp, err := c.delegate.RunTask(ctx, question, true)
	if err != nil {
		logging.Ask("delegation failed, falling back to completion: %v", err)
		return false
	}
	if resp.Status != "success" || resp.Result == nil {
		logging.Ask("delegation unsuccessful (%s), falling back to completion", resp.Status)
		return false
	}

	summary := resp.Result.Summary
	if summary == "" {
		summary = "Search completed successfully"
	}

	if !c.apply(sess, func() {
		c.state = StateDone
		c.response = summary
	}) {
		return true // superseded; swallow the late result
	}

	c.persistAssistantTurn(sessionID, summary)
	return true
}

func (c *Coordinator) processStream(sess *session, body io.Reader, sessionID string) {
	c.apply(sess, func() { c.state = StateStreaming })

	streamErr := consumeStream(body, func(token string) {
		c.apply(sess, func() { c.response += token })
	})

	cancelled, cause := sess.cancelled()
	if streamErr != nil {
		if cancelled {
			logging.AskDebug("stream cancelled: %v", cause)
		} else {
			logging.AskError("stream error: %v", streamErr)
		}
	}

	c.mu.Lock()
	accumulated := ""
	if c.current == sess {
		accumulated = c.response
	}
	c.mu.Unlock()

	// Whatever accumulated is persisted, even after a mid-stream error.
	if accumulated != "" {
		c.persistAssistantTurn(sessionID, accumulated)
	}

	switch {
	case cancelled:
		return
	case streamErr != nil:
		c.fail(sess, streamErr)
		return
	default:
		c.apply(sess, func() { c.state = StateDone })
	}

	if accumulated != "" && c.enhancer != nil && c.cfg.Enhancement.Enabled {
		go c.enhance(sess, accumulated, sessionID)
	}
}

// enhance runs the detached enrichment pipeline. A superseded session
// discards the result.
func (c *Coordinator) enhance(sess *session, response, sessionID string) {
	enhanced := c.enhancer.Enhance(sess.ctx, response)
	if enhanced == "" || enhanced == response {
		return
	}
	if cancelled, _ := sess.cancelled(); cancelled {
		return
	}

	if !c.apply(sess, func() { c.response = enhanced }) {
		return
	}

	if c.store != nil && sessionID != "" {
		if err := c.store.UpdateLastAssistantMessage(sessionID, enhanced); err != nil {
			logging.StoreError("failed to persist enhanced response: %v", err)
		}
	}
}

func (c *Coordinator) fail(sess *session, err error) {
	c.mu.Lock()
	if c.current == sess {
		c.state = StateError
		c.lastErr = err.Error()
	}
	c.mu.Unlock()
	c.broadcast(sess)
}

func (c *Coordinator) persistUserTurn(question string) string {
	if c.store == nil {
		return ""
	}
	sessionID, err := c.store.GetOrCreateActive("ask")
	if err != nil {
		logging.StoreError("failed to open ask session: %v", err)
		return ""
	}
	if err := c.store.AddMessage(sessionID, "user", question); err != nil {
		logging.StoreError("failed to persist user turn: %v", err)
	}
	return sessionID
}

func (c *Coordinator) persistAssistantTurn(sessionID, content string) {
	if c.store == nil || sessionID == "" {
		return
	}
	if err := c.store.AddMessage(sessionID, "assistant", content); err != nil {
		logging.StoreError("failed to persist assistant turn: %v", err)
	}
}

const systemPrompt = `You are a helpful desktop assistant. Answer the user's question clearly and concisely using the conversation context and, when provided, the attached screenshot of their screen.`

// buildMessages assembles the multimodal chat request. History is
// clipped to the most recent 30 lines.
func buildMessages(question string, history []string, imageB64 string) []llm.ChatMessage {
	historyText := "No conversation history available."
	if len(history) > 0 {
		if len(history) > 30 {
			history = history[len(history)-30:]
		}
		historyText = strings.Join(history, "\n")
	}

	return []llm.ChatMessage{
		{Role: "system", Content: systemPrompt + "\n\nConversation history:\n" + historyText},
		{Role: "user", Content: fmt.Sprintf("User Request: %s", question), ImageB64: imageB64},
	}
}
