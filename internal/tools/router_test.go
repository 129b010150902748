package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/crm"
)

type fakeActionExecutor struct {
	gotPath  string
	gotToken string
	err      error
}

func (f *fakeActionExecutor) DoAction(_ context.Context, a crm.RenderedAction, token string) (map[string]interface{}, error) {
	f.gotPath = a.Path
	f.gotToken = token
	if f.err != nil {
		return nil, f.err
	}
	return map[string]interface{}{"status": "ok"}, nil
}

type echoTool struct{ name string }

func (t *echoTool) Name() string                       { return t.name }
func (t *echoTool) Description() string                { return "echo" }
func (t *echoTool) Parameters() map[string]interface{} { return map[string]interface{}{} }
func (t *echoTool) Execute(_ context.Context, args map[string]interface{}) *Result {
	return JSONResult(map[string]interface{}{"echo": args["value"]})
}

func TestDispatchBuiltinTool(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{name: "echo"})
	router := NewRouter(reg, &fakeActionExecutor{}, "tok")

	outputs := router.Dispatch(context.Background(), &bots.Bot{}, []assistant.ToolCall{
		{ID: "call_1", Name: "echo", Arguments: map[string]interface{}{"value": "hola"}},
	})
	if len(outputs) != 1 || outputs[0].CallID != "call_1" {
		t.Fatalf("outputs = %+v", outputs)
	}
	if !strings.Contains(outputs[0].Output, `"echo":"hola"`) {
		t.Errorf("output = %q", outputs[0].Output)
	}
}

func TestDispatchActionTemplateWinsOverBuiltin(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{name: "get_quote"})
	exec := &fakeActionExecutor{}
	router := NewRouter(reg, exec, "default-tok")

	bot := &bots.Bot{
		CRMToken: "bot-tok",
		Actions:  []crm.ActionTemplate{{Name: "get_quote", Path: "/api/quotes/{id}/"}},
	}
	outputs := router.Dispatch(context.Background(), bot, []assistant.ToolCall{
		{ID: "c1", Name: "get_quote", Arguments: map[string]interface{}{"id": "q9"}},
	})
	if exec.gotPath != "/api/quotes/q9/" {
		t.Errorf("action path = %q", exec.gotPath)
	}
	if exec.gotToken != "bot-tok" {
		t.Errorf("token = %q, want per-bot override", exec.gotToken)
	}
	if !strings.Contains(outputs[0].Output, `"status":"ok"`) {
		t.Errorf("output = %q", outputs[0].Output)
	}
}

func TestDispatchUnknownFunction(t *testing.T) {
	router := NewRouter(NewRegistry(), &fakeActionExecutor{}, "")

	outputs := router.Dispatch(context.Background(), &bots.Bot{}, []assistant.ToolCall{
		{ID: "c1", Name: "mystery"},
	})
	var payload map[string]string
	if err := json.Unmarshal([]byte(outputs[0].Output), &payload); err != nil {
		t.Fatalf("output should be JSON: %v", err)
	}
	if !strings.Contains(payload["error"], "mystery") {
		t.Errorf("error = %q", payload["error"])
	}
}

func TestDispatchDisabledFunction(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{name: "echo"})
	router := NewRouter(reg, &fakeActionExecutor{}, "")

	bot := &bots.Bot{Functions: []string{"other"}}
	outputs := router.Dispatch(context.Background(), bot, []assistant.ToolCall{
		{ID: "c1", Name: "echo"},
	})
	if !strings.Contains(outputs[0].Output, "not enabled") {
		t.Errorf("output = %q", outputs[0].Output)
	}
}

func TestDispatchRawArgumentsFallback(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&echoTool{name: "echo"})
	router := NewRouter(reg, &fakeActionExecutor{}, "")

	outputs := router.Dispatch(context.Background(), &bots.Bot{}, []assistant.ToolCall{
		{ID: "c1", Name: "echo", RawArguments: `{"value":"desde raw"}`},
	})
	if !strings.Contains(outputs[0].Output, "desde raw") {
		t.Errorf("output = %q", outputs[0].Output)
	}
}

func TestDispatchOneOutputPerCall(t *testing.T) {
	exec := &fakeActionExecutor{err: errors.New("crm down")}
	router := NewRouter(NewRegistry(), exec, "")

	bot := &bots.Bot{Actions: []crm.ActionTemplate{{Name: "act", Path: "/x/"}}}
	outputs := router.Dispatch(context.Background(), bot, []assistant.ToolCall{
		{ID: "c1", Name: "act"},
		{ID: "c2", Name: "unknown"},
	})
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	for i, out := range outputs {
		if out.Output == "" {
			t.Errorf("output %d is empty", i)
		}
	}
	if outputs[0].CallID != "c1" || outputs[1].CallID != "c2" {
		t.Errorf("call ids out of order: %+v", outputs)
	}
}
