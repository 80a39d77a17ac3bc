package framework

import "strings"

// PermissionKind names one of the two customer consents the program needs.
type PermissionKind string

const (
	PermissionContact    PermissionKind = "contact"
	PermissionCreditPull PermissionKind = "credit_pull"
)

// Tool names the decision step may request. The two Ask tools suspend the
// turn and hand the question to the human.
const (
	ToolAskContactPermission    = "AskContactPermissionTool"
	ToolAskCreditPullPermission = "AskCreditPullPermissionTool"
	ToolCreditPull              = "CreditPullAPI"
	ToolLeadCreate              = "LeadCreateAPI"
	ToolWebFormSubmit           = "WebFormSubmitAPI"
	ToolSavingsEstimate         = "SavingsEstimateTool"
)

// Consent question copy shown verbatim to the customer. Answers must be the
// literal tokens yes or no.
const (
	ContactPermissionPrompt = "Do you give permission for us to contact you through the email and phone number provided? (Please type: yes or no)"

	CreditPullPermissionPrompt = "Do you give permission for us to perform a soft credit pull? " +
		"This will not affect your credit score. (Please type: yes or no)"
)

// PermissionKindForTool maps an ask-tool name to the consent it gathers.
func PermissionKindForTool(toolName string) (PermissionKind, bool) {
	switch toolName {
	case ToolAskContactPermission:
		return PermissionContact, true
	case ToolAskCreditPullPermission:
		return PermissionCreditPull, true
	default:
		return "", false
	}
}

// PromptFor returns the question text for a consent.
func PromptFor(kind PermissionKind) string {
	if kind == PermissionCreditPull {
		return CreditPullPermissionPrompt
	}
	return ContactPermissionPrompt
}

// GateDecision is the outcome of asking the gate whether a consent question
// may be put to the customer right now.
type GateDecision struct {
	Allowed        bool
	BlockingReason string
}

func blocked(reason string) GateDecision {
	return GateDecision{BlockingReason: reason}
}

// CanAsk enforces the consent ordering: all slots filled before any consent,
// contact consent granted before the credit-pull question, and each consent
// asked at most once regardless of the earlier answer.
func CanAsk(kind PermissionKind, state *ConversationState) GateDecision {
	if !state.Slots.Complete() {
		return blocked("Must collect the list of required customer information first.")
	}
	switch kind {
	case PermissionContact:
		if state.ContactPermission != nil {
			return blocked("Contact permission already obtained.")
		}
	case PermissionCreditPull:
		if state.ContactPermission == nil || !*state.ContactPermission {
			return blocked("Obtain the contact permission first.")
		}
		if state.CreditPullPermission != nil {
			return blocked("Credit pull permission already obtained.")
		}
	default:
		return blocked("Unknown permission kind.")
	}
	return GateDecision{Allowed: true}
}

// ConsentOutcome is the parsed result of a human answer to a consent
// question. Exactly one of Granted, Invalid, or Blocked is meaningful.
type ConsentOutcome struct {
	Kind     PermissionKind
	Granted  *bool  // set when the answer was a literal yes or no
	Invalid  bool   // answer was neither token; reprompt with Reprompt
	Reprompt string // question to re-ask on invalid input
	Blocked  string // non-empty when the gate refuses the question outright
}

// ApplyConsentResponse interprets a raw human answer. The gate is re-checked
// first: an already-recorded consent is immutable, so a stray second answer
// is refused instead of overwriting the first. The answer itself must be the
// literal token yes or no after trimming and lowercasing; anything else asks
// the same question again without touching state.
func ApplyConsentResponse(kind PermissionKind, raw string, state *ConversationState) ConsentOutcome {
	out := ConsentOutcome{Kind: kind}
	if !state.Slots.Complete() {
		out.Blocked = "Must collect the list of required customer information first."
		return out
	}
	switch kind {
	case PermissionContact:
		if state.ContactPermission != nil {
			out.Blocked = "Contact permission already obtained."
			return out
		}
	case PermissionCreditPull:
		if state.CreditPullPermission != nil {
			out.Blocked = "Credit pull permission already obtained."
			return out
		}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes":
		granted := true
		out.Granted = &granted
	case "no":
		granted := false
		out.Granted = &granted
	default:
		out.Invalid = true
		out.Reprompt = "Invalid input. " + PromptFor(kind)
	}
	return out
}
