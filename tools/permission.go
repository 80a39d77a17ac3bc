package tools

import (
	"context"

	"github.com/lexcodex/leadline/framework"
)

// askPermissionTool puts a consent question to the human. It never answers
// anything itself: when the gate allows the question, the result carries a
// PendingToolRequest and the turn suspends until the human replies.
type askPermissionTool struct {
	kind framework.PermissionKind
	name string
	desc string
}

// NewAskContactPermissionTool asks for permission to contact the customer.
func NewAskContactPermissionTool() framework.Tool {
	return &askPermissionTool{
		kind: framework.PermissionContact,
		name: framework.ToolAskContactPermission,
		desc: "Asks the customer for permission to contact them through the email and phone " +
			"number provided. Requires all customer information to be collected first.",
	}
}

// NewAskCreditPullPermissionTool asks for permission to run a soft credit
// pull.
func NewAskCreditPullPermissionTool() framework.Tool {
	return &askPermissionTool{
		kind: framework.PermissionCreditPull,
		name: framework.ToolAskCreditPullPermission,
		desc: "Asks the customer for permission to perform a soft credit pull. Requires " +
			"contact permission to be granted first.",
	}
}

func (t *askPermissionTool) Name() string        { return t.name }
func (t *askPermissionTool) Description() string { return t.desc }

func (t *askPermissionTool) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	gate := framework.CanAsk(t.kind, state)
	if !gate.Allowed {
		return framework.SoftFail("%s", gate.BlockingReason), nil
	}
	return &framework.ToolResult{
		Success: true,
		Pending: &framework.PendingToolRequest{
			ToolName: t.name,
			Prompt:   framework.PromptFor(t.kind),
		},
	}, nil
}
