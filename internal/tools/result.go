package tools

import "encoding/json"

// Result is the unified return type from tool execution. ForLLM is the exact
// string submitted back to the assistant as the tool output.
type Result struct {
	ForLLM  string `json:"for_llm"`  // content sent back to the assistant
	IsError bool   `json:"is_error"` // marks error
	Err     error  `json:"-"`        // internal error (not serialized)
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

// JSONResult marshals v as the assistant-facing output. Marshal failures
// degrade to an error result rather than panicking mid-run.
func JSONResult(v interface{}) *Result {
	raw, err := json.Marshal(v)
	if err != nil {
		return ErrorResult(`{"error":"failed to encode tool output"}`).WithError(err)
	}
	return &Result{ForLLM: string(raw)}
}

// JSONError builds a structured {"error": ...} output so the assistant can
// recover in-conversation instead of seeing an opaque failure.
func JSONError(message string) *Result {
	raw, _ := json.Marshal(map[string]string{"error": message})
	return &Result{ForLLM: string(raw), IsError: true}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}
