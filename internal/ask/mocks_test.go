package ask

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"orbit/internal/agent"
	"orbit/internal/llm"
)

// sseBody builds a well-formed SSE stream delivering the given tokens.
func sseBody(tokens ...string) string {
	var b strings.Builder
	for _, tok := range tokens {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n", tok)
	}
	b.WriteString("data: [DONE]\n")
	return b.String()
}

// streamCall records one StreamChat invocation.
type streamCall struct {
	messages []llm.ChatMessage
}

func (c streamCall) hasImage() bool {
	for _, m := range c.messages {
		if m.ImageB64 != "" {
			return true
		}
	}
	return false
}

// scriptedProvider serves a queue of scripted stream responses. Each
// entry is either a body string or an error; bodies are wrapped so a
// cancelled request context unblocks the reader, like a real HTTP body.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts []scriptEntry
	calls   []streamCall
}

type scriptEntry struct {
	body string
	r    io.Reader // used instead of body when set
	err  error
}

func (p *scriptedProvider) queueBody(body string)     { p.queue(scriptEntry{body: body}) }
func (p *scriptedProvider) queueReader(r io.Reader)   { p.queue(scriptEntry{r: r}) }
func (p *scriptedProvider) queueError(err error)      { p.queue(scriptEntry{err: err}) }

func (p *scriptedProvider) queue(e scriptEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, e)
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *scriptedProvider) call(i int) streamCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[i]
}

func (p *scriptedProvider) StreamChat(ctx context.Context, messages []llm.ChatMessage) (io.ReadCloser, error) {
	p.mu.Lock()
	p.calls = append(p.calls, streamCall{messages: messages})
	if len(p.scripts) == 0 {
		p.mu.Unlock()
		return nil, fmt.Errorf("no scripted response")
	}
	entry := p.scripts[0]
	p.scripts = p.scripts[1:]
	p.mu.Unlock()

	if entry.err != nil {
		return nil, entry.err
	}
	r := entry.r
	if r == nil {
		r = strings.NewReader(entry.body)
	}
	return &ctxReader{ctx: ctx, r: r}, nil
}

// ctxReader mimics an HTTP response body: reads fail once the request
// context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = c.r.Read(p)
		close(done)
	}()
	select {
	case <-c.ctx.Done():
		return 0, c.ctx.Err()
	case <-done:
		if c.ctx.Err() != nil {
			return 0, c.ctx.Err()
		}
		return n, err
	}
}

func (c *ctxReader) Close() error {
	if closer, ok := c.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// memStore records persistence calls in order.
type memStore struct {
	mu       sync.Mutex
	entries  []string // "role:content"
	updates  []string
	failOpen bool
}

func (s *memStore) GetOrCreateActive(kind string) (string, error) {
	if s.failOpen {
		return "", fmt.Errorf("store unavailable")
	}
	return "session-1", nil
}

func (s *memStore) AddMessage(sessionID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, role+":"+content)
	return nil
}

func (s *memStore) UpdateLastAssistantMessage(sessionID, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, content)
	return nil
}

func (s *memStore) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.entries...)
}

func (s *memStore) updatedWith() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.updates...)
}

// fakeDelegate scripts the agent daemon.
type fakeDelegate struct {
	mu    sync.Mutex
	resp  *agent.TaskResponse
	err   error
	block bool
	calls int
}

func (d *fakeDelegate) RunTask(ctx context.Context, task string, useBrowser bool) (*agent.TaskResponse, error) {
	d.mu.Lock()
	d.calls++
	resp, err, block := d.resp, d.err, d.block
	d.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return resp, err
}

func (d *fakeDelegate) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// fakeCapturer scripts screenshot capture.
type fakeCapturer struct {
	b64 string
	err error
}

func (c *fakeCapturer) Capture(ctx context.Context) (string, error) {
	return c.b64, c.err
}

// gatedCompleter blocks every Complete call until released or the
// request context is cancelled.
type gatedCompleter struct {
	release chan struct{}
}

func (g *gatedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-g.release:
		return "released", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// recorder collects state updates as they are broadcast.
type recorder struct {
	mu      sync.Mutex
	updates []Update
	signal  chan struct{}
}

func newRecorder() *recorder {
	return &recorder{signal: make(chan struct{}, 256)}
}

func (r *recorder) record(u Update) {
	r.mu.Lock()
	r.updates = append(r.updates, u)
	r.mu.Unlock()
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

func (r *recorder) all() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}
