package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/lexcodex/leadline/framework"
)

// ToolExecutor dispatches a requested tool call against current state. The
// decision step's own arguments are untrusted and discarded: tools read the
// authoritative conversation state directly, so a hallucinated argument can
// never leak into an API payload.
type ToolExecutor struct {
	Registry *framework.ToolRegistry
	Timeout  time.Duration
}

// Execute runs one tool call. An unknown tool name is an error the caller
// surfaces back to the decision step; everything else funnels into the
// soft-fail result shape.
func (e *ToolExecutor) Execute(ctx context.Context, call framework.ToolCall, state *framework.ConversationState) (*framework.ToolResult, error) {
	tool, ok := e.Registry.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", framework.ErrUnknownTool, call.Name)
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	res, err := tool.Execute(ctx, state)
	if err != nil {
		// tools report business failures through the result; an error here is
		// unexpected, but it still must not crash the turn
		return framework.SoftFail("tool %s failed: %v", call.Name, err), nil
	}
	if res == nil {
		return framework.SoftFail("tool %s returned no result", call.Name), nil
	}
	if res.Pending != nil {
		res.Pending.CallID = call.ID
	}
	return res, nil
}
