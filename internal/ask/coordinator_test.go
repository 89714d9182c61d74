package ask

import (
	"encoding/base64"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orbit/internal/agent"
	"orbit/internal/config"
)

func configuredConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = "test-key"
	cfg.Enhancement.Enabled = false
	cfg.Screenshot.Enabled = false
	return cfg
}

func waitState(t *testing.T, c *Coordinator, want State) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, _ := c.State()
		return got == want
	}, 2*time.Second, 5*time.Millisecond, "never reached state %v", want)
}

func TestSubmit_ConfigurationErrorWithoutNetworkCall(t *testing.T) {
	cfg := configuredConfig()
	cfg.LLM.APIKey = ""
	provider := &scriptedProvider{}
	rec := newRecorder()

	c := NewCoordinator(cfg, provider, Options{OnUpdate: rec.record})
	c.Submit("Explain blockchain technology", nil)

	waitState(t, c, StateError)
	assert.Equal(t, 0, provider.callCount(), "no network call may be attempted")

	updates := rec.all()
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, StateError, last.State)
	assert.Contains(t, last.Err, "not configured")
}

func TestSubmit_AgentSuccessBypassesStreaming(t *testing.T) {
	provider := &scriptedProvider{}
	store := &memStore{}
	delegate := &fakeDelegate{resp: &agent.TaskResponse{
		Status: "success",
		Result: &agent.TaskResult{Summary: "X"},
	}}
	rec := newRecorder()

	c := NewCoordinator(configuredConfig(), provider, Options{
		Delegate: delegate,
		Store:    store,
		OnUpdate: rec.record,
	})
	c.Submit("latest news today", nil)

	waitState(t, c, StateDone)
	_, response := c.State()
	assert.Equal(t, "X", response)
	assert.Equal(t, 0, provider.callCount(), "streaming path must be bypassed")
	assert.Equal(t, 1, delegate.callCount())

	require.Eventually(t, func() bool { return len(store.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"user:latest news today", "assistant:X"}, store.all())
}

func TestSubmit_DelegationFailureFallsThroughToCompletion(t *testing.T) {
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("fallback ", "answer"))
	delegate := &fakeDelegate{err: errors.New("daemon timed out")}

	c := NewCoordinator(configuredConfig(), provider, Options{Delegate: delegate})
	c.Submit("latest news today", nil)

	waitState(t, c, StateDone)
	_, response := c.State()
	assert.Equal(t, "fallback answer", response)
	assert.Equal(t, 1, delegate.callCount())
	assert.Equal(t, 1, provider.callCount())
}

func TestSubmit_DelegationTimeoutBounded(t *testing.T) {
	cfg := configuredConfig()
	cfg.Agent.TaskTimeout = "50ms"
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("direct"))
	delegate := &fakeDelegate{block: true}

	c := NewCoordinator(cfg, provider, Options{Delegate: delegate})
	c.Submit("latest news today", nil)

	waitState(t, c, StateDone)
	_, response := c.State()
	assert.Equal(t, "direct", response)
}

func TestSubmit_NonSearchQuerySkipsDelegation(t *testing.T) {
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("an answer"))
	delegate := &fakeDelegate{resp: &agent.TaskResponse{Status: "success", Result: &agent.TaskResult{Summary: "nope"}}}

	c := NewCoordinator(configuredConfig(), provider, Options{Delegate: delegate})
	c.Submit("Explain blockchain technology", nil)

	waitState(t, c, StateDone)
	assert.Equal(t, 0, delegate.callCount())
}

func TestStreaming_MonotonicAccumulation(t *testing.T) {
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("The ", "answer ", "grows ", "monotonically."))
	rec := newRecorder()

	c := NewCoordinator(configuredConfig(), provider, Options{OnUpdate: rec.record})
	c.Submit("tell me something", nil)

	waitState(t, c, StateDone)

	prev := 0
	for _, u := range rec.all() {
		if u.State != StateStreaming && u.State != StateDone {
			continue
		}
		require.GreaterOrEqual(t, len(u.Response), prev, "response shrank between broadcasts")
		prev = len(u.Response)
	}
	_, response := c.State()
	assert.Equal(t, "The answer grows monotonically.", response)
}

func TestSubmit_SingleFlightSupersession(t *testing.T) {
	provider := &scriptedProvider{}
	pr, pw := io.Pipe()
	provider.queueReader(pr)
	provider.queueBody(sseBody("B answer"))
	rec := newRecorder()

	c := NewCoordinator(configuredConfig(), provider, Options{OnUpdate: rec.record})

	c.Submit("question A", nil)
	pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"A chunk\"}}]}\n"))
	require.Eventually(t, func() bool {
		_, r := c.State()
		return strings.Contains(r, "A chunk")
	}, 2*time.Second, 5*time.Millisecond)

	c.Submit("question B", nil)
	waitState(t, c, StateDone)

	// Late chunks from the superseded stream must be discarded.
	pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"A late chunk\"}}]}\n"))
	pw.Close()
	time.Sleep(50 * time.Millisecond)

	_, response := c.State()
	assert.Equal(t, "B answer", response)

	sawB := false
	for _, u := range rec.all() {
		if u.Question == "question B" {
			sawB = true
		}
		if sawB && strings.Contains(u.Response, "A chunk") {
			t.Fatalf("superseded session's text appeared after B started: %+v", u)
		}
	}
	require.True(t, sawB)
}

func TestSubmit_MultimodalErrorRetriesTextOnly(t *testing.T) {
	cfg := configuredConfig()
	cfg.Screenshot.Enabled = true
	provider := &scriptedProvider{}
	provider.queueError(errors.New("image_url is not supported by this model"))
	provider.queueBody(sseBody("text only answer"))
	capturer := &fakeCapturer{b64: base64.StdEncoding.EncodeToString([]byte("img"))}

	c := NewCoordinator(cfg, provider, Options{Capturer: capturer})
	c.Submit("what is on my screen", nil)

	waitState(t, c, StateDone)
	_, response := c.State()
	assert.Equal(t, "text only answer", response)

	require.Equal(t, 2, provider.callCount())
	assert.True(t, provider.call(0).hasImage(), "first attempt carries the screenshot")
	assert.False(t, provider.call(1).hasImage(), "retry must be text-only")
}

func TestSubmit_NonMultimodalErrorIsTerminal(t *testing.T) {
	provider := &scriptedProvider{}
	provider.queueError(errors.New("connection refused"))

	c := NewCoordinator(configuredConfig(), provider, Options{})
	c.Submit("anything at all", nil)

	waitState(t, c, StateError)
	assert.Equal(t, 1, provider.callCount())
}

func TestSubmit_ScreenshotFailureProceedsTextOnly(t *testing.T) {
	cfg := configuredConfig()
	cfg.Screenshot.Enabled = true
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("fine without image"))
	capturer := &fakeCapturer{err: errors.New("screencapture failed")}

	c := NewCoordinator(cfg, provider, Options{Capturer: capturer})
	c.Submit("describe my screen", nil)

	waitState(t, c, StateDone)
	require.Equal(t, 1, provider.callCount())
	assert.False(t, provider.call(0).hasImage())
}

func TestClose_CancelsWithoutError(t *testing.T) {
	provider := &scriptedProvider{}
	pr, pw := io.Pipe()
	provider.queueReader(pr)
	rec := newRecorder()

	c := NewCoordinator(configuredConfig(), provider, Options{OnUpdate: rec.record})
	c.Submit("long question", nil)

	require.Eventually(t, func() bool {
		s, _ := c.State()
		return s == StateStreaming
	}, 2*time.Second, 5*time.Millisecond)

	c.Close()
	pw.Close()
	waitState(t, c, StateIdle)

	time.Sleep(50 * time.Millisecond)
	for _, u := range rec.all() {
		assert.NotEqual(t, StateError, u.State, "user close must not surface an error")
	}
}

func TestSubmit_EmptyQuestionClearsState(t *testing.T) {
	provider := &scriptedProvider{}
	rec := newRecorder()

	c := NewCoordinator(configuredConfig(), provider, Options{OnUpdate: rec.record})
	c.Submit("   ", nil)

	s, response := c.State()
	assert.Equal(t, StateIdle, s)
	assert.Empty(t, response)
	assert.Equal(t, 0, provider.callCount())
}

func TestSubmit_UserTurnPersistedBeforeCompletion(t *testing.T) {
	provider := &scriptedProvider{}
	provider.queueBody(sseBody("reply"))
	store := &memStore{}

	c := NewCoordinator(configuredConfig(), provider, Options{Store: store})
	c.Submit("remember me", nil)

	waitState(t, c, StateDone)
	require.Eventually(t, func() bool { return len(store.all()) == 2 }, time.Second, 5*time.Millisecond)
	entries := store.all()
	assert.Equal(t, "user:remember me", entries[0])
	assert.Equal(t, "assistant:reply", entries[1])
}

func TestSubmit_PartialResponsePersistedAfterStreamError(t *testing.T) {
	provider := &scriptedProvider{}
	pr, pw := io.Pipe()
	provider.queueReader(pr)
	store := &memStore{}

	c := NewCoordinator(configuredConfig(), provider, Options{Store: store})
	c.Submit("fail midway", nil)

	pw.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"partial text\"}}]}\n"))
	require.Eventually(t, func() bool {
		_, r := c.State()
		return r == "partial text"
	}, 2*time.Second, 5*time.Millisecond)
	pw.CloseWithError(errors.New("connection reset"))

	waitState(t, c, StateError)
	require.Eventually(t, func() bool { return len(store.all()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "assistant:partial text", store.all()[1])
}

func TestEnhancement_RunsDetachedAndPersists(t *testing.T) {
	cfg := configuredConfig()
	cfg.Enhancement.Enabled = true
	provider := &scriptedProvider{}
	long := strings.Repeat("a detailed answer about programming ", 3)
	provider.queueBody(sseBody(long))
	store := &memStore{}
	completer := &fakeCompleter{responses: map[string]string{
		"Extract 1-3 key topics": "Programming",
		"TL;DR":                  "• short version",
	}}

	c := NewCoordinator(cfg, provider, Options{
		Store:    store,
		Enhancer: NewEnhancer(completer, 50),
	})
	c.Submit("explain it all", nil)

	waitState(t, c, StateDone)
	require.Eventually(t, func() bool {
		_, r := c.State()
		return strings.Contains(r, "## AI Overview")
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(store.updatedWith()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, store.updatedWith()[0], "## TL;DR")
}

func TestEnhancement_DiscardedWhenSuperseded(t *testing.T) {
	cfg := configuredConfig()
	cfg.Enhancement.Enabled = true
	provider := &scriptedProvider{}
	long := strings.Repeat("first answer about technology ", 3)
	provider.queueBody(sseBody(long))
	provider.queueBody(sseBody("second answer"))
	store := &memStore{}

	// Completer that stalls until the test releases it, keeping the
	// enhancement in flight while a new submit supersedes the session.
	release := make(chan struct{})
	completer := &gatedCompleter{release: release}

	c := NewCoordinator(cfg, provider, Options{
		Store:    store,
		Enhancer: NewEnhancer(completer, 50),
	})
	c.Submit("first question", nil)
	waitState(t, c, StateDone)

	c.Submit("second question", nil)
	waitState(t, c, StateDone)
	close(release)

	time.Sleep(100 * time.Millisecond)
	_, response := c.State()
	assert.Equal(t, "second answer", response, "stale enhancement must not replace the active response")
	assert.Empty(t, store.updatedWith())
}
