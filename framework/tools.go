package framework

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownTool is returned when the decision step requests a tool name the
// registry has never seen.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is a single action the decision step can request. Tools read the
// authoritative conversation state directly; whatever arguments the model
// attached to the call are ignored.
//
// Execute returns an error only for programming mistakes. Business refusals
// and transport failures are expressed as a ToolResult with Success=false so
// the decision step can read the refusal and steer the conversation.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, state *ConversationState) (*ToolResult, error)
}

// ToolResult is the single result shape every tool funnels into. The JSON
// field names are what the decision step sees in the transcript.
type ToolResult struct {
	Success bool                   `json:"Success"`
	Data    map[string]interface{} `json:"Data,omitempty"`
	Message string                 `json:"Message,omitempty"`

	// Pending, when set, suspends the turn: the transport must put Prompt to
	// the human and the engine resumes only when an answer arrives carrying
	// the same call id. Not serialized into the transcript.
	Pending *PendingToolRequest `json:"-"`

	// Attempted marks a result produced by an actual API round trip, as
	// opposed to a gate refusal that stopped the tool before it ran. The
	// reducer records completion flags only for attempted calls. Not
	// serialized into the transcript.
	Attempted bool `json:"-"`
}

// SoftFail builds a refused result with a formatted message.
func SoftFail(format string, args ...interface{}) *ToolResult {
	return &ToolResult{Success: false, Message: fmt.Sprintf(format, args...)}
}

// PendingToolRequest is the signal that a tool needs a human answer before
// the turn can continue. Its JSON shape is the user_input_required event
// payload on the wire.
type PendingToolRequest struct {
	ToolName string `json:"tool_name"`
	CallID   string `json:"tool_call_id"`
	Prompt   string `json:"message"`
}

// ToolRegistry is the set of tools offered to the decision step.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewToolRegistry creates an empty registry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any previous tool of the same name.
func (r *ToolRegistry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

// Get looks up a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns the registered tools sorted by name, for a stable schema order
// in decision requests.
func (r *ToolRegistry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Names returns the sorted tool names.
func (r *ToolRegistry) Names() []string {
	all := r.All()
	names := make([]string, len(all))
	for i, tool := range all {
		names[i] = tool.Name()
	}
	return names
}
