// Package llm contains the decision-step clients. The engine treats the
// language model as an opaque collaborator: transcript and tool schemas in,
// assistant text and/or tool calls out. Two providers are supported, OpenAI
// and Ollama, behind the same pair of interfaces.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lexcodex/leadline/framework"
)

// Decision is one decision-step output: free text for the customer, tool
// calls, or both. An empty decision (no text, no calls) is malformed and the
// orchestrator retries it.
type Decision struct {
	Text      string
	ToolCalls []framework.ToolCall
}

// Empty reports whether the decision carries neither text nor tool calls.
func (d *Decision) Empty() bool {
	return d == nil || (strings.TrimSpace(d.Text) == "" && len(d.ToolCalls) == 0)
}

// DecisionClient produces the next assistant decision from the transcript.
type DecisionClient interface {
	Decide(ctx context.Context, system string, history []framework.Message, tools []framework.Tool) (*Decision, error)
}

// Extractor pulls a candidate slot record out of the latest user input,
// given the record collected so far. Implementations return raw candidates;
// sanitization and monotonic merging happen in the engine.
type Extractor interface {
	ExtractSlots(ctx context.Context, history []framework.Message, current framework.Slots, userInput string) (framework.Slots, error)
}

const extractionSystemPrompt = `You extract customer intake fields from a debt-resolution chat.
Return ONLY a JSON object. Include a key only when the latest user message states its value.
Keys: Debt (number, total unsecured debt in dollars), FirstName, LastName, Zip (5 digits),
Phone, Email, City, State (2-letter code), Address, DateOfBirth (YYYY-MM-DD).
Never guess. Never repeat values already collected unless the user restates them.`

// historyTail returns the last n conversational entries as plain text, enough
// context to resolve references like "same as my billing address".
func historyTail(history []framework.Message, n int) string {
	start := len(history) - n
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	for _, msg := range history[start:] {
		if msg.Role != framework.RoleUser && msg.Role != framework.RoleAssistant {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}

func extractionUserPrompt(current framework.Slots, history []framework.Message, userInput string) string {
	known, _ := json.Marshal(current)
	var b strings.Builder
	b.WriteString("Collected so far:\n")
	b.Write(known)
	b.WriteString("\n\nRecent conversation:\n")
	b.WriteString(historyTail(history, 6))
	b.WriteString("\nLatest user message:\n")
	b.WriteString(userInput)
	return b.String()
}

// decodeSlots parses a model-produced JSON object into a candidate record.
// Unknown keys are ignored; a non-object payload yields an error.
func decodeSlots(raw string) (framework.Slots, error) {
	raw = strings.TrimSpace(raw)
	// some models wrap JSON in a markdown fence despite instructions
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	var slots framework.Slots
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &slots); err != nil {
		return framework.Slots{}, fmt.Errorf("decode extraction output: %w", err)
	}
	return slots, nil
}

// emptyObjectSchema is the parameter schema advertised for every tool: the
// executor rebuilds arguments from state, so the model has nothing to fill in.
func emptyObjectSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
