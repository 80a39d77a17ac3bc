package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/lexcodex/leadline/framework"
	"github.com/lexcodex/leadline/llm"
)

// Emitter receives everything the assistant wants the customer to see.
// Transports implement it: the websocket gateway pushes events, the chat TUI
// prints, tests buffer.
type Emitter interface {
	BotResponse(sessionID, message string)
	UserInputRequired(sessionID string, req framework.PendingToolRequest)
}

// retryNudge is appended as a synthetic user message when the decision step
// returns neither text nor tool calls.
const retryNudge = "Respond with a real output."

// turnFailureApology is what the customer sees when a turn is abandoned.
const turnFailureApology = "I'm sorry, something went wrong on our end. Could you say that again?"

// defaultGreeting opens the conversation when the model cannot.
const defaultGreeting = "Hello! I'm Claire, a debt resolution specialist at ClearOne Advantage. How can I assist you today?"

// ErrDecisionRetriesExhausted means the decision step kept returning empty
// output past the retry ceiling and the turn was rolled back.
var ErrDecisionRetriesExhausted = errors.New("decision step retries exhausted")

// ErrTooManyToolHops means a single turn chained more tool rounds than the
// ceiling allows, which almost always indicates the model is looping.
var ErrTooManyToolHops = errors.New("too many tool rounds in one turn")

// Assistant is the turn orchestrator. One instance serves all sessions; all
// per-conversation data lives in the ConversationState it is handed.
type Assistant struct {
	Model       llm.DecisionClient
	Collector   *InfoCollector
	Executor    *ToolExecutor
	System      string
	MaxRetries  int // empty-decision retries per turn; 0 means default 3
	MaxToolHops int // decision/tool rounds per turn; 0 means default 8
	Logger      *log.Logger
}

func (a *Assistant) retries() int {
	if a.MaxRetries > 0 {
		return a.MaxRetries
	}
	return 3
}

func (a *Assistant) hops() int {
	if a.MaxToolHops > 0 {
		return a.MaxToolHops
	}
	return 8
}

// Greet opens a new conversation with a model-generated greeting, falling
// back to fixed copy when the model has nothing to say.
func (a *Assistant) Greet(ctx context.Context, state *framework.ConversationState, emit Emitter) {
	seed := []framework.Message{framework.UserMessage("Hello")}
	greeting := defaultGreeting
	decision, err := a.Model.Decide(ctx, a.System, seed, nil)
	if err != nil {
		a.logf("greeting generation failed for session %s: %v", state.SessionID, err)
	} else if !decision.Empty() && strings.TrimSpace(decision.Text) != "" {
		greeting = decision.Text
	}
	state.Append(framework.AssistantMessage(greeting))
	emit.BotResponse(state.SessionID, greeting)
}

// HandleUserMessage runs one full turn for an inbound chat message. While a
// consent question is suspended the question is repeated instead: the
// transcript holds an unanswered tool call, so a decision request over it
// would be rejected, and the only move that closes it is the human's answer.
// On return the state is either the completed turn or, after a fatal decision
// failure, the restored pre-turn snapshot.
func (a *Assistant) HandleUserMessage(ctx context.Context, state *framework.ConversationState, text string, emit Emitter) error {
	if call, kind, open := state.OpenConsentCall(); open {
		emit.UserInputRequired(state.SessionID, framework.PendingToolRequest{
			ToolName: call.Name,
			CallID:   call.ID,
			Prompt:   framework.PromptFor(kind),
		})
		return nil
	}
	snapshot := state.Clone()
	state.LastUserInput = text
	state.Append(framework.UserMessage(text))
	return a.runTurn(ctx, state, snapshot, emit, framework.NewReducer(), true)
}

// Resume re-enters a turn suspended on a consent question. The answer is
// matched to the suspended tool call by id; an unmatched id cannot resolve
// anything and is reported without touching state.
func (a *Assistant) Resume(ctx context.Context, state *framework.ConversationState, toolName, callID, response string, emit Emitter) error {
	call, ok := state.PendingToolCall(callID)
	if !ok || call.Name != toolName {
		emit.BotResponse(state.SessionID, "Unknown tool called.")
		return nil
	}
	kind, ok := framework.PermissionKindForTool(toolName)
	if !ok {
		emit.BotResponse(state.SessionID, "Unknown tool called.")
		return nil
	}

	snapshot := state.Clone()
	out := framework.ApplyConsentResponse(kind, response, state)
	if out.Invalid {
		// same question again; the suspension stays open under the same id
		emit.UserInputRequired(state.SessionID, framework.PendingToolRequest{
			ToolName: toolName,
			CallID:   callID,
			Prompt:   out.Reprompt,
		})
		return nil
	}
	state.LastUserInput = response
	if out.Blocked != "" {
		state.Append(framework.ToolMessage(callID, map[string]interface{}{"message": out.Blocked}))
		return a.runTurn(ctx, state, snapshot, emit, framework.NewReducer(), false)
	}

	red := framework.NewReducer()
	red.ApplyConsent(state, callID, out)
	state.Append(framework.ToolMessage(callID, consentDelta(kind, *out.Granted)))
	return a.runTurn(ctx, state, snapshot, emit, red, false)
}

func consentDelta(kind framework.PermissionKind, granted bool) map[string]interface{} {
	if kind == framework.PermissionCreditPull {
		return map[string]interface{}{"credit_pull_permission": granted}
	}
	return map[string]interface{}{"contact_permission": granted}
}

// runTurn drives the decision/tool loop until a final answer, a suspension,
// or a failure. The snapshot taken at turn entry is restored on failure so no
// partially reduced state survives.
func (a *Assistant) runTurn(ctx context.Context, state *framework.ConversationState, snapshot *framework.ConversationState, emit Emitter, red *framework.Reducer, extract bool) error {
	if extract {
		a.Collector.Collect(ctx, state)
	}

	retriesLeft := a.retries()
	for hop := 0; hop < a.hops(); hop++ {
		decision, err := a.Model.Decide(ctx, a.System, state.Messages, a.Executor.Registry.All())
		if err != nil {
			return a.failTurn(state, snapshot, emit, fmt.Errorf("decision step: %w", err))
		}
		if decision.Empty() {
			if retriesLeft == 0 {
				return a.failTurn(state, snapshot, emit, ErrDecisionRetriesExhausted)
			}
			retriesLeft--
			state.Append(framework.UserMessage(retryNudge))
			continue
		}

		state.Append(framework.AssistantMessage(decision.Text, decision.ToolCalls...))
		if strings.TrimSpace(decision.Text) != "" {
			// text is shown immediately even when tool calls follow
			emit.BotResponse(state.SessionID, decision.Text)
		}
		if len(decision.ToolCalls) == 0 {
			return nil
		}

		for _, call := range decision.ToolCalls {
			res, err := a.Executor.Execute(ctx, call, state)
			if err != nil {
				// unknown tool: answer the call with an error payload so the
				// decision step can correct itself on the next round
				state.Append(framework.ToolMessage(call.ID, map[string]interface{}{
					"error": fmt.Sprintf("Error: %v. Please fix your mistakes.", err),
				}))
				continue
			}
			if res.Pending != nil {
				emit.UserInputRequired(state.SessionID, *res.Pending)
				return nil
			}
			state.Append(framework.ToolMessage(call.ID, res))
			red.ApplyToolResult(state, call.ID, call.Name, res)
		}
	}
	return a.failTurn(state, snapshot, emit, ErrTooManyToolHops)
}

func (a *Assistant) failTurn(state *framework.ConversationState, snapshot *framework.ConversationState, emit Emitter, err error) error {
	a.logf("turn failed for session %s: %v", state.SessionID, err)
	*state = *snapshot
	emit.BotResponse(state.SessionID, turnFailureApology)
	return err
}

func (a *Assistant) logf(format string, args ...interface{}) {
	if a.Logger != nil {
		a.Logger.Printf(format, args...)
	}
}
