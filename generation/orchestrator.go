package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Options configures an Orchestrator.
type Options struct {
	PersonaID    string
	PollInterval time.Duration
	MaxPolls     int
	Sleep        SleepFunc
	// ImageLine formats each image reference appended to the prompt. It
	// receives the image number and URL.
	ImageLine string
}

// DefaultImageLine is used when Options.ImageLine is empty or malformed.
const DefaultImageLine = "Bild %d: %s"

// Orchestrator runs the session state machine and the stateless fallback.
type Orchestrator struct {
	svc      Service
	fallback Completer
	opts     Options
}

// NewOrchestrator returns an Orchestrator. svc may be nil, in which case
// every request goes straight to fallback.
func NewOrchestrator(svc Service, fallback Completer, opts Options) (*Orchestrator, error) {
	if svc != nil && strings.TrimSpace(opts.PersonaID) == "" {
		return nil, ErrPersonaRequired
	}
	if svc == nil && fallback == nil {
		return nil, fmt.Errorf("generation: no service and no fallback configured")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.MaxPolls <= 0 {
		opts.MaxPolls = 30
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	return &Orchestrator{svc: svc, fallback: fallback, opts: opts}, nil
}

// Generate produces article text for req.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (Result, error) {
	prompt := buildPrompt(req, o.opts.ImageLine)

	var primaryErr error
	if o.svc != nil {
		res, err := o.runSession(ctx, prompt)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		primaryErr = err
		log.Warn().Err(err).Str("session", res.SessionID).Msg("Session generation failed, using stateless completion")
	} else {
		primaryErr = errors.New("no session service configured")
	}

	if o.fallback == nil {
		return Result{}, &UnavailableError{Primary: primaryErr, Fallback: errors.New("no fallback configured")}
	}
	text, err := o.fallback.Complete(ctx, prompt)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyOutput
	}
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Error().Err(err).Msg("Stateless completion failed")
		return Result{}, &UnavailableError{Primary: primaryErr, Fallback: err}
	}
	return Result{Text: text, Path: PathCompletion}, nil
}

type machine struct {
	res Result
}

func (m *machine) to(s State) {
	m.res.Trace = append(m.res.Trace, s)
	log.Debug().Str("state", string(s)).Str("session", m.res.SessionID).Str("run", m.res.RunID).Msg("Generation state")
}

// runSession walks CREATED -> SESSION_OPEN -> MESSAGE_SENT -> RUNNING and
// polls until a terminal state or the poll budget is spent.
func (o *Orchestrator) runSession(ctx context.Context, prompt string) (Result, error) {
	m := &machine{res: Result{Path: PathSession}}
	m.to(StateCreated)

	sessionID, err := o.svc.CreateSession(ctx)
	if err != nil {
		return m.res, fmt.Errorf("create session: %w", err)
	}
	m.res.SessionID = sessionID
	m.to(StateSessionOpen)

	if err := o.svc.SendMessage(ctx, sessionID, prompt); err != nil {
		return m.res, fmt.Errorf("send message: %w", err)
	}
	m.to(StateMessageSent)

	runID, err := o.svc.StartRun(ctx, sessionID, o.opts.PersonaID)
	if err != nil {
		return m.res, fmt.Errorf("start run: %w", err)
	}
	m.res.RunID = runID
	m.to(StateRunning)

	for m.res.Polls < o.opts.MaxPolls {
		if err := o.opts.Sleep(ctx, o.opts.PollInterval); err != nil {
			return m.res, err
		}
		m.res.Polls++
		status, err := o.svc.GetRunStatus(ctx, sessionID, runID)
		if err != nil {
			return m.res, fmt.Errorf("poll run: %w", err)
		}
		switch status.State {
		case RunCompleted:
			text, err := o.lastAssistantMessage(ctx, sessionID)
			if err != nil {
				m.to(StateFailed)
				return m.res, err
			}
			m.res.Text = text
			m.to(StateCompleted)
			return m.res, nil
		case RunFailed, RunCancelled, RunExpired, RunIncomplete:
			m.to(StateFailed)
			reason := status.Error
			if reason == "" {
				reason = string(status.State)
			}
			return m.res, fmt.Errorf("%w: %s", ErrGenerationFailed, reason)
		}
	}
	m.to(StateTimedOut)
	return m.res, fmt.Errorf("%w after %d polls", ErrGenerationTimeout, m.res.Polls)
}

func (o *Orchestrator) lastAssistantMessage(ctx context.Context, sessionID string) (string, error) {
	msgs, err := o.svc.ListMessages(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("%w: list messages: %v", ErrGenerationFailed, err)
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "assistant" && strings.TrimSpace(msgs[i].Text) != "" {
			return msgs[i].Text, nil
		}
	}
	return "", fmt.Errorf("%w: %v", ErrGenerationFailed, ErrEmptyOutput)
}

func buildPrompt(req Request, line string) string {
	if len(req.ImageURLs) == 0 {
		return req.Prompt
	}
	if strings.Count(line, "%") != 2 {
		line = DefaultImageLine
	}
	var sb strings.Builder
	sb.WriteString(req.Prompt)
	sb.WriteString("\n\n=== IMAGES ===\n")
	for i, u := range req.ImageURLs {
		fmt.Fprintf(&sb, line+"\n", i+1, u)
	}
	return strings.TrimRight(sb.String(), "\n")
}
