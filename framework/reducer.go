package framework

import (
	"encoding/json"
	"strconv"
)

// Reducer folds tool results and consent answers back into conversation
// state. Application is idempotent per tool-call id: replaying a delivery
// cannot double-apply an overwrite. A reducer instance covers one turn.
type Reducer struct {
	applied map[string]bool
}

// NewReducer creates a reducer with an empty applied set.
func NewReducer() *Reducer {
	return &Reducer{applied: make(map[string]bool)}
}

func (r *Reducer) seen(callID string) bool {
	if r.applied[callID] {
		return true
	}
	r.applied[callID] = true
	return false
}

// ApplyToolResult folds one tool result into state, keyed on the identity of
// the tool that produced it. Returns false when the call id was already
// applied or the result carries nothing to fold.
//
//   - credit pull: CreditPullComplete records the outcome of every attempted
//     pull, failures included, so a transport error never leaves the flag
//     unset. On success the authoritative TotalEligibleDebt figure overwrites
//     Debt, the one sanctioned overwrite of a filled slot.
//   - lead create: LeadCreateComplete records every attempted outcome; a
//     duplicate declines the customer with the API's message.
//   - savings estimate: the quote is stored once.
//
// Results that never ran (gate refusals, Attempted unset) fold nothing: a
// pull refused for a missing consent was not attempted and must not resolve
// the credit pull step.
func (r *Reducer) ApplyToolResult(state *ConversationState, callID, toolName string, res *ToolResult) bool {
	if res == nil || r.seen(callID) {
		return false
	}
	switch toolName {
	case ToolCreditPull:
		if !res.Success && !res.Attempted {
			return false
		}
		if res.Success {
			if debt, ok := toFloat(res.Data["TotalEligibleDebt"]); ok {
				state.Slots.Debt = &debt
			}
		}
		outcome := res.Success
		state.CreditPullComplete = &outcome
		return true
	case ToolLeadCreate:
		if !res.Success && !res.Attempted {
			return false
		}
		outcome := res.Success
		state.LeadCreateComplete = &outcome
		if dup, _ := res.Data["IsDuplicate"].(bool); dup {
			state.DeclineReason = res.Message
		}
		return true
	case ToolSavingsEstimate:
		if !res.Success {
			return false
		}
		data, err := json.Marshal(res.Data)
		if err != nil {
			return false
		}
		var est SavingsEstimate
		if err := json.Unmarshal(data, &est); err != nil {
			return false
		}
		state.SavingsEstimate = &est
		return true
	default:
		return false
	}
}

// ApplyConsent records a parsed consent answer. A denied contact permission
// declines the customer outright. A denied credit-pull permission marks the
// credit pull as not completed so lead creation can still proceed with the
// self-reported debt figure.
func (r *Reducer) ApplyConsent(state *ConversationState, callID string, out ConsentOutcome) bool {
	if out.Granted == nil || r.seen(callID) {
		return false
	}
	switch out.Kind {
	case PermissionContact:
		state.ContactPermission = out.Granted
		if !*out.Granted {
			state.DeclineReason = "User did not give contact permission."
		}
	case PermissionCreditPull:
		state.CreditPullPermission = out.Granted
		if !*out.Granted {
			notPulled := false
			state.CreditPullComplete = &notPulled
		}
	default:
		return false
	}
	return true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
