package ask

import (
	"context"
	"errors"
)

// State names the phases of answering one question.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateStreaming
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateStreaming:
		return "streaming"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Cancellation reasons. The stream loop suppresses error reporting for
// both; a transport failure carries neither.
var (
	ErrSuperseded = errors.New("superseded by a new request")
	ErrClosed     = errors.New("closed by user")
)

// ErrNotConfigured is the terminal configuration error: no completion
// model or credentials are set up.
var ErrNotConfigured = errors.New("completion model or API key not configured")

// session is one in-flight question. Its context doubles as the
// cancellation token: superseding or closing cancels it with a
// distinguishable cause.
type session struct {
	ctx      context.Context
	cancel   context.CancelCauseFunc
	question string
}

func newSession(parent context.Context, question string) *session {
	ctx, cancel := context.WithCancelCause(parent)
	return &session{ctx: ctx, cancel: cancel, question: question}
}

// cancelled reports whether the session's token was invalidated, and
// why.
func (s *session) cancelled() (bool, error) {
	if s.ctx.Err() == nil {
		return false, nil
	}
	return true, context.Cause(s.ctx)
}

// Update is one state broadcast. Response grows monotonically while
// streaming and is replaced wholesale by the enhancement pipeline.
type Update struct {
	State    State
	Question string
	Response string
	Err      string
}
