package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/turnero/internal/assistant"
	"github.com/nextlevelbuilder/turnero/internal/bots"
	"github.com/nextlevelbuilder/turnero/internal/crm"
)

// actionExecutor is the slice of the CRM client the router needs for
// bot-defined action templates.
type actionExecutor interface {
	DoAction(ctx context.Context, a crm.RenderedAction, token string) (map[string]interface{}, error)
}

// Router resolves assistant tool calls to outputs. Resolution order: the
// bot's CRM action templates win over built-in tools with the same name, so
// a bot can override a built-in with its own CRM endpoint. Every call gets
// exactly one output; a missing handler becomes a structured error output so
// the run can still complete.
type Router struct {
	registry     *Registry
	crm          actionExecutor
	defaultToken string
}

func NewRouter(registry *Registry, crm actionExecutor, defaultToken string) *Router {
	return &Router{registry: registry, crm: crm, defaultToken: defaultToken}
}

// Dispatch executes every tool call and returns one output per call id, in
// call order.
func (r *Router) Dispatch(ctx context.Context, bot *bots.Bot, calls []assistant.ToolCall) []assistant.ToolOutput {
	ctx = WithBot(ctx, bot)

	outputs := make([]assistant.ToolOutput, 0, len(calls))
	for _, call := range calls {
		result := r.dispatchOne(ctx, bot, call)
		if result.IsError {
			slog.Warn("tool call failed",
				"tool", call.Name, "call", call.ID, "error", result.Err)
		} else {
			slog.Debug("tool call handled", "tool", call.Name, "call", call.ID)
		}
		outputs = append(outputs, assistant.ToolOutput{
			CallID: call.ID,
			Output: result.ForLLM,
		})
	}
	return outputs
}

func (r *Router) dispatchOne(ctx context.Context, bot *bots.Bot, call assistant.ToolCall) *Result {
	if bot != nil {
		if tmpl, ok := bot.ActionByName(call.Name); ok {
			return r.runAction(ctx, tmpl, call)
		}
	}

	if tool, ok := r.registry.Get(call.Name); ok {
		if bot != nil && !bot.HasFunction(call.Name) {
			return JSONError(fmt.Sprintf("function %q is not enabled for this bot", call.Name))
		}
		return tool.Execute(ctx, r.arguments(call))
	}

	return JSONError(fmt.Sprintf("no handler found for function %q", call.Name))
}

func (r *Router) runAction(ctx context.Context, tmpl crm.ActionTemplate, call assistant.ToolCall) *Result {
	rendered, err := tmpl.Render(r.arguments(call))
	if err != nil {
		return JSONError(err.Error()).WithError(err)
	}
	out, err := r.crm.DoAction(ctx, rendered, crmToken(ctx, r.defaultToken))
	if err != nil {
		return JSONError(fmt.Sprintf("action %q failed", tmpl.Name)).WithError(err)
	}
	return JSONResult(out)
}

// arguments prefers the decoded map, re-parsing the raw JSON when decoding
// failed upstream. Undecodable arguments degrade to an empty map so the tool
// itself reports what is missing.
func (r *Router) arguments(call assistant.ToolCall) map[string]interface{} {
	if call.Arguments != nil {
		return call.Arguments
	}
	if call.RawArguments != "" {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(call.RawArguments), &args); err == nil {
			return args
		}
	}
	return map[string]interface{}{}
}
