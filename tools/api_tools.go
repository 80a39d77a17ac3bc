package tools

import (
	"context"

	"github.com/lexcodex/leadline/framework"
)

// CreditPullTool performs the soft credit pull once the customer has granted
// credit-pull permission.
type CreditPullTool struct {
	API *CarbonClient
}

func (t *CreditPullTool) Name() string { return framework.ToolCreditPull }

func (t *CreditPullTool) Description() string {
	return "Performs a soft credit pull to retrieve the customer's total eligible debt. " +
		"Requires the customer's credit pull permission."
}

func (t *CreditPullTool) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	if state.CreditPullPermission == nil || !*state.CreditPullPermission {
		return framework.SoftFail("Please obtain credit pull permission first."), nil
	}
	if !state.Slots.Complete() {
		return framework.SoftFail("Must collect the list of required customer information first."), nil
	}
	return t.API.CreditPull(ctx, state.Slots), nil
}

// LeadCreateTool registers the customer as a lead after the credit-pull step
// has been resolved one way or the other.
type LeadCreateTool struct {
	API *CarbonClient
}

func (t *LeadCreateTool) Name() string { return framework.ToolLeadCreate }

func (t *LeadCreateTool) Description() string {
	return "Creates a lead for the customer in the program. Requires contact permission " +
		"and a resolved credit pull step."
}

func (t *LeadCreateTool) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	if state.ContactPermission == nil || !*state.ContactPermission {
		return framework.SoftFail("Obtain contact permission first."), nil
	}
	// nil means the credit pull was neither performed nor declined yet
	if state.CreditPullComplete == nil {
		return framework.SoftFail("Ask for credit pull permission first."), nil
	}
	return t.API.LeadCreate(ctx, state.Slots), nil
}

// WebFormSubmitTool files the intake form for an accepted lead.
type WebFormSubmitTool struct {
	API *CarbonClient
}

func (t *WebFormSubmitTool) Name() string { return framework.ToolWebFormSubmit }

func (t *WebFormSubmitTool) Description() string {
	return "Submits the customer's intake web form. Requires a successfully created lead."
}

func (t *WebFormSubmitTool) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	if state.LeadCreateComplete == nil || !*state.LeadCreateComplete {
		return framework.SoftFail("Create the lead first."), nil
	}
	return t.API.WebFormSubmit(ctx, state.Slots), nil
}
