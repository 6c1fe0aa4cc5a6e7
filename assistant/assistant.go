// Package assistant implements the session-based generation service on an
// OpenAI-compatible Assistants API: a thread is a session, a run executes the
// configured assistant persona.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/eringen/autoblog/generation"
)

type api interface {
	CreateThread(ctx context.Context, request openai.ThreadRequest) (openai.Thread, error)
	CreateMessage(ctx context.Context, threadID string, request openai.MessageRequest) (openai.Message, error)
	CreateRun(ctx context.Context, threadID string, request openai.RunRequest) (openai.Run, error)
	RetrieveRun(ctx context.Context, threadID string, runID string) (openai.Run, error)
	ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Client talks to the Assistants API.
type Client struct {
	api   api
	model string
}

// New returns a Client. baseURL may be empty for the public endpoint; model
// is used for stateless completions.
func New(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

var (
	_ generation.Service   = (*Client)(nil)
	_ generation.Completer = (*Client)(nil)
)

func (c *Client) CreateSession(ctx context.Context) (string, error) {
	thread, err := c.api.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (c *Client) SendMessage(ctx context.Context, sessionID, text string) error {
	_, err := c.api.CreateMessage(ctx, sessionID, openai.MessageRequest{
		Role:    "user",
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (c *Client) StartRun(ctx context.Context, sessionID, personaID string) (string, error) {
	run, err := c.api.CreateRun(ctx, sessionID, openai.RunRequest{AssistantID: personaID})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

func (c *Client) GetRunStatus(ctx context.Context, sessionID, runID string) (generation.RunStatus, error) {
	run, err := c.api.RetrieveRun(ctx, sessionID, runID)
	if err != nil {
		return generation.RunStatus{}, fmt.Errorf("retrieve run: %w", err)
	}
	status := generation.RunStatus{State: generation.RunState(run.Status)}
	if run.LastError != nil {
		status.Error = strings.TrimSpace(string(run.LastError.Code) + " " + run.LastError.Message)
	}
	return status, nil
}

func (c *Client) ListMessages(ctx context.Context, sessionID string) ([]generation.Message, error) {
	limit := 20
	order := "asc"
	list, err := c.api.ListMessage(ctx, sessionID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	msgs := make([]generation.Message, 0, len(list.Messages))
	for _, m := range list.Messages {
		var parts []string
		for _, content := range m.Content {
			if content.Text != nil && content.Text.Value != "" {
				parts = append(parts, content.Text.Value)
			}
		}
		msgs = append(msgs, generation.Message{Role: m.Role, Text: strings.Join(parts, "\n")})
	}
	return msgs, nil
}

// Complete sends prompt as a single chat completion.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
