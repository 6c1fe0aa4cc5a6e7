// Package generation drives the article generator through its session
// lifecycle and falls back to a stateless completion when the session path
// fails.
package generation

import (
	"context"
	"time"
)

// State is a step of the session lifecycle.
type State string

const (
	StateCreated     State = "CREATED"
	StateSessionOpen State = "SESSION_OPEN"
	StateMessageSent State = "MESSAGE_SENT"
	StateRunning     State = "RUNNING"
	StateCompleted   State = "COMPLETED"
	StateFailed      State = "FAILED"
	StateTimedOut    State = "TIMED_OUT"
)

// RunState is the status reported by the generation service for a run.
type RunState string

const (
	RunQueued         RunState = "queued"
	RunInProgress     RunState = "in_progress"
	RunRequiresAction RunState = "requires_action"
	RunCancelling     RunState = "cancelling"
	RunCompleted      RunState = "completed"
	RunFailed         RunState = "failed"
	RunCancelled      RunState = "cancelled"
	RunExpired        RunState = "expired"
	RunIncomplete     RunState = "incomplete"
)

// Terminal reports whether no further polling can change the run.
func (s RunState) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled, RunExpired, RunIncomplete:
		return true
	}
	return false
}

// RunStatus is one poll result.
type RunStatus struct {
	State RunState
	Error string
}

// Message is a conversation turn returned by the service.
type Message struct {
	Role string
	Text string
}

// Service is a stateful generation backend with sessions and runs.
type Service interface {
	CreateSession(ctx context.Context) (string, error)
	SendMessage(ctx context.Context, sessionID, text string) error
	StartRun(ctx context.Context, sessionID, personaID string) (string, error)
	GetRunStatus(ctx context.Context, sessionID, runID string) (RunStatus, error)
	// ListMessages returns the session messages oldest first.
	ListMessages(ctx context.Context, sessionID string) ([]Message, error)
}

// Completer produces text from a single prompt without any session.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Path names the route that produced a result.
type Path string

const (
	PathSession    Path = "session"
	PathCompletion Path = "completion"
)

// Request is one generation request.
type Request struct {
	Prompt    string
	ImageURLs []string
}

// Result is the generated text and how it was obtained.
type Result struct {
	Text      string
	Path      Path
	SessionID string
	RunID     string
	Polls     int
	Trace     []State
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
