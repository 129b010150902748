// Package assistant wraps the upstream assistants API behind a small gateway
// interface: thread continuity, run lifecycle, tool-output submission and
// message retrieval. The orchestrator only ever talks to Gateway, so tests
// swap in a fake and the rest of the pipeline runs unchanged.
package assistant

import "context"

// Message is one entry in a conversation session.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant" or "tool"
	Name    string `json:"name,omitempty"`
	Content string `json:"content"`
}

// RunStatus is the lifecycle state of one upstream run.
type RunStatus string

const (
	StatusQueued         RunStatus = "queued"
	StatusInProgress     RunStatus = "in_progress"
	StatusRequiresAction RunStatus = "requires_action"
	StatusCompleted      RunStatus = "completed"
	StatusFailed         RunStatus = "failed"
	StatusCancelled      RunStatus = "cancelled"
	StatusExpired        RunStatus = "expired"
)

// Terminal reports whether the run has reached a final state.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// ToolCall is one tool invocation requested by a requires_action run.
// Arguments is nil when the raw payload did not parse; RawArguments always
// carries the original string.
type ToolCall struct {
	ID           string
	Name         string
	Arguments    map[string]interface{}
	RawArguments string
}

// ToolOutput pairs a tool result with the call that requested it. Every
// pending ToolCall.ID must receive exactly one output; the upstream run
// blocks until all are present.
type ToolOutput struct {
	CallID string
	Output string
}

// RunState is the poll shape shared by PollRun and SubmitToolOutputs.
type RunState struct {
	RunID     string
	Status    RunStatus
	ToolCalls []ToolCall // populated only for requires_action
}

// Gateway is the language-model collaborator boundary.
type Gateway interface {
	// Available reports whether the upstream client is configured. When
	// false the orchestrator synthesizes a deterministic fallback reply.
	Available() bool

	// CreateThread creates a fresh upstream thread and returns its id.
	CreateThread(ctx context.Context) (string, error)

	// ThreadExists re-validates a cached thread id against upstream.
	ThreadExists(ctx context.Context, threadID string) bool

	// StartTurn appends the user message to the thread and starts a run.
	StartTurn(ctx context.Context, threadID, assistantID, message, instructions string) (runID string, err error)

	// PollRun fetches the current state of a run.
	PollRun(ctx context.Context, threadID, runID string) (*RunState, error)

	// SubmitToolOutputs sends one output per pending tool call and returns
	// the resulting run state (which may itself be requires_action again).
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []ToolOutput) (*RunState, error)

	// LatestMessage returns the newest assistant message text on the thread,
	// or "" when none is extractable.
	LatestMessage(ctx context.Context, threadID string) (string, error)
}
