package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGateway implements Gateway on top of the OpenAI assistants API.
// A nil client (no API key configured) is valid: Available reports false and
// the orchestrator degrades to its fallback reply.
type OpenAIGateway struct {
	client *openai.Client
}

// NewOpenAIGateway builds a gateway from an API key. Empty key yields an
// unavailable gateway rather than an error so the pipeline stays exercisable
// without credentials.
func NewOpenAIGateway(apiKey, baseURL string) *OpenAIGateway {
	if apiKey == "" {
		slog.Warn("openai api key not configured; assistant features disabled")
		return &OpenAIGateway{}
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client := openai.NewClientWithConfig(cfg)
	return &OpenAIGateway{client: client}
}

func (g *OpenAIGateway) Available() bool { return g.client != nil }

func (g *OpenAIGateway) CreateThread(ctx context.Context) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("openai client not configured")
	}
	thread, err := g.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return thread.ID, nil
}

func (g *OpenAIGateway) ThreadExists(ctx context.Context, threadID string) bool {
	if g.client == nil || threadID == "" {
		return false
	}
	_, err := g.client.RetrieveThread(ctx, threadID)
	if err != nil {
		slog.Debug("cached thread no longer valid upstream", "thread", threadID, "error", err)
		return false
	}
	return true
}

func (g *OpenAIGateway) StartTurn(ctx context.Context, threadID, assistantID, message, instructions string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("openai client not configured")
	}

	_, err := g.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    string(openai.ThreadMessageRoleUser),
		Content: message,
	})
	if err != nil {
		return "", fmt.Errorf("append user message: %w", err)
	}

	run, err := g.client.CreateRun(ctx, threadID, openai.RunRequest{
		AssistantID:  assistantID,
		Instructions: instructions,
	})
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return run.ID, nil
}

func (g *OpenAIGateway) PollRun(ctx context.Context, threadID, runID string) (*RunState, error) {
	if g.client == nil {
		return nil, fmt.Errorf("openai client not configured")
	}
	run, err := g.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("retrieve run: %w", err)
	}
	return runToState(&run), nil
}

func (g *OpenAIGateway) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*RunState, error) {
	if g.client == nil {
		return nil, fmt.Errorf("openai client not configured")
	}

	req := openai.SubmitToolOutputsRequest{}
	for _, out := range outputs {
		req.ToolOutputs = append(req.ToolOutputs, openai.ToolOutput{
			ToolCallID: out.CallID,
			Output:     out.Output,
		})
	}

	run, err := g.client.SubmitToolOutputs(ctx, threadID, runID, req)
	if err != nil {
		return nil, fmt.Errorf("submit tool outputs: %w", err)
	}
	return runToState(&run), nil
}

func (g *OpenAIGateway) LatestMessage(ctx context.Context, threadID string) (string, error) {
	if g.client == nil {
		return "", fmt.Errorf("openai client not configured")
	}

	limit := 1
	order := "desc"
	msgs, err := g.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}

	for _, msg := range msgs.Messages {
		if msg.Role != string(openai.ThreadMessageRoleAssistant) {
			continue
		}
		var parts []string
		for _, c := range msg.Content {
			if c.Text != nil && c.Text.Value != "" {
				parts = append(parts, c.Text.Value)
			}
		}
		if len(parts) > 0 {
			return strings.TrimSpace(strings.Join(parts, "\n")), nil
		}
	}
	return "", nil
}

// runToState translates an upstream run into the gateway poll shape. Tool
// call arguments are decoded here so the router only sees structured maps;
// undecodable payloads keep the raw string for error reporting.
func runToState(run *openai.Run) *RunState {
	state := &RunState{
		RunID:  run.ID,
		Status: RunStatus(run.Status),
	}

	if run.Status != openai.RunStatusRequiresAction ||
		run.RequiredAction == nil ||
		run.RequiredAction.SubmitToolOutputs == nil {
		return state
	}

	for _, tc := range run.RequiredAction.SubmitToolOutputs.ToolCalls {
		call := ToolCall{
			ID:           tc.ID,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
		}
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
			call.Arguments = args
		} else {
			slog.Warn("tool call arguments did not parse", "tool", tc.Function.Name, "error", err)
		}
		state.ToolCalls = append(state.ToolCalls, call)
	}
	return state
}
