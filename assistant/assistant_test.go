package assistant

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/eringen/autoblog/generation"
)

type fakeAPI struct {
	run      openai.Run
	messages openai.MessagesList
	order    string
	request  openai.ChatCompletionRequest
	choices  []openai.ChatCompletionChoice
}

func (f *fakeAPI) CreateThread(ctx context.Context, r openai.ThreadRequest) (openai.Thread, error) {
	return openai.Thread{ID: "thread_abc"}, nil
}

func (f *fakeAPI) CreateMessage(ctx context.Context, threadID string, r openai.MessageRequest) (openai.Message, error) {
	if r.Role != "user" {
		return openai.Message{}, errors.New("unexpected role " + r.Role)
	}
	return openai.Message{}, nil
}

func (f *fakeAPI) CreateRun(ctx context.Context, threadID string, r openai.RunRequest) (openai.Run, error) {
	return openai.Run{ID: "run_" + r.AssistantID}, nil
}

func (f *fakeAPI) RetrieveRun(ctx context.Context, threadID, runID string) (openai.Run, error) {
	return f.run, nil
}

func (f *fakeAPI) ListMessage(ctx context.Context, threadID string, limit *int, order *string, after *string, before *string, runID *string) (openai.MessagesList, error) {
	f.order = *order
	return f.messages, nil
}

func (f *fakeAPI) CreateChatCompletion(ctx context.Context, r openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.request = r
	return openai.ChatCompletionResponse{Choices: f.choices}, nil
}

func TestSessionLifecycle(t *testing.T) {
	fake := &fakeAPI{
		run: openai.Run{Status: openai.RunStatusFailed, LastError: &openai.RunLastError{Code: "rate_limit_exceeded", Message: "slow down"}},
		messages: openai.MessagesList{Messages: []openai.Message{
			{Role: "user", Content: []openai.MessageContent{{Type: "text", Text: &openai.MessageText{Value: "prompt"}}}},
			{Role: "assistant", Content: []openai.MessageContent{{Type: "text", Text: &openai.MessageText{Value: "Titel: Hallo"}}}},
		}},
	}
	c := &Client{api: fake, model: "gpt-4o-mini"}
	ctx := context.Background()

	session, err := c.CreateSession(ctx)
	if err != nil || session != "thread_abc" {
		t.Fatalf("CreateSession() = %q, %v", session, err)
	}
	if err := c.SendMessage(ctx, session, "hallo"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	run, err := c.StartRun(ctx, session, "asst_1")
	if err != nil || run != "run_asst_1" {
		t.Fatalf("StartRun() = %q, %v", run, err)
	}
	status, err := c.GetRunStatus(ctx, session, run)
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if status.State != generation.RunFailed || status.Error != "rate_limit_exceeded slow down" {
		t.Errorf("GetRunStatus() = %+v", status)
	}
	msgs, err := c.ListMessages(ctx, session)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if fake.order != "asc" || len(msgs) != 2 || msgs[1].Role != "assistant" || msgs[1].Text != "Titel: Hallo" {
		t.Errorf("ListMessages() = %+v, order %q", msgs, fake.order)
	}
}

func TestComplete(t *testing.T) {
	fake := &fakeAPI{choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "Artikel"}}}}
	c := &Client{api: fake, model: "gpt-4o-mini"}
	got, err := c.Complete(context.Background(), "Schreibe")
	if err != nil || got != "Artikel" {
		t.Fatalf("Complete() = %q, %v", got, err)
	}
	if fake.request.Model != "gpt-4o-mini" || fake.request.Messages[0].Content != "Schreibe" {
		t.Errorf("request = %+v", fake.request)
	}

	empty := &Client{api: &fakeAPI{}, model: "m"}
	if _, err := empty.Complete(context.Background(), "x"); err == nil {
		t.Error("Complete() without choices returned nil error")
	}
}
